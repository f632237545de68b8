package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gogpu/gg"

	"scratchcard/internal/card"
	"scratchcard/internal/config"
	"scratchcard/internal/handlers"
	"scratchcard/internal/prize"
)

func main() {
	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		gg.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	catalog, err := prize.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal(err)
	}
	store := card.NewStore(catalog, card.Settings{
		FadeAfter: cfg.Session.FadeAfter,
		IdleTTL:   cfg.Session.IdleTTL,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		log.Fatal(err)
	}

	r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))

	homeHandler := handlers.NewHomeHandler(store, cfg)
	cardHandler := handlers.NewCardHandler(store, cfg)

	homeHandler.RegisterRoutes(r)
	cardHandler.RegisterRoutes(r)

	// No WriteTimeout: card streams are long-lived. Other routes carry
	// middleware.Timeout.
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		// Close card streams first so Shutdown does not wait on them.
		log.Printf("shutting down cards=%d", store.Shutdown())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("listening on http://localhost%s tiers=%d threshold=%.2f mode=%s", cfg.Addr(), catalog.Len(), cfg.Card.RevealThreshold, cfg.Card.EraseMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

//go:embed static/*
var embeddedStatic embed.FS

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scratchcard/internal/card"
	"scratchcard/internal/config"
	"scratchcard/internal/scratch"
	"scratchcard/internal/viewmodel"
	"scratchcard/views/components"
	"scratchcard/views/pages"
)

const (
	maxPointerBody   = 64 << 10
	maxPointerEvents = 512
	requestTimeout   = 15 * time.Second
)

type CardHandler struct {
	store *card.Store
	cfg   *config.Config
}

func NewCardHandler(store *card.Store, cfg *config.Config) *CardHandler {
	return &CardHandler{store: store, cfg: cfg}
}

func (h *CardHandler) RegisterRoutes(r chi.Router) {
	r.Route("/card/{id}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/", h.cardPage)
			r.Get("/mask.png", h.mask)
			r.Get("/progress", h.progressFragment)
			r.Get("/prize", h.prizeFragment)
			r.Post("/pointer", h.pointer)
			r.Post("/teardown", h.teardown)
		})
		r.Get("/stream", h.stream)
	})
}

type pointerRequest struct {
	Viewport scratch.Viewport       `json:"viewport"`
	Events   []scratch.PointerEvent `json:"events"`
}

type pointerResponse struct {
	ClearedRatio float64 `json:"clearedRatio"`
	Percent      int     `json:"percent"`
	Revealed     bool    `json:"revealed"`
	Faded        bool    `json:"faded"`
}

func (h *CardHandler) cardPage(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")
	instance, ok := h.store.GetCard(cardID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	snapshot := instance.Snapshot()
	data := viewmodel.CardPage{
		Title:        "Scratch Card",
		CardID:       cardID,
		ShareURL:     h.buildShareURL(r, cardID),
		MaskURL:      "/card/" + cardID + "/mask.png",
		Width:        snapshot.Width,
		Height:       snapshot.Height,
		PixelRatio:   snapshot.PixelRatio,
		BrushRadius:  snapshot.BrushRadius,
		EraseMode:    string(snapshot.EraseMode),
		ThresholdPct: thresholdPercent(snapshot.Threshold),
		Progress:     buildProgressFragment(snapshot),
		Prize:        buildPrizeFragment(snapshot),
	}
	render(w, r, pages.CardPage(data))
}

func (h *CardHandler) mask(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")
	instance, ok := h.store.GetCard(cardID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	if err := instance.WriteMask(&buf); err != nil {
		if errors.Is(err, card.ErrCardClosed) {
			http.NotFound(w, r)
			return
		}
		log.Printf("encode mask error card=%s err=%v", cardID, err)
		http.Error(w, "failed to encode mask", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *CardHandler) progressFragment(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.store.GetCard(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	render(w, r, components.ProgressFragment(buildProgressFragment(instance.Snapshot())))
}

func (h *CardHandler) prizeFragment(w http.ResponseWriter, r *http.Request) {
	instance, ok := h.store.GetCard(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	render(w, r, components.PrizeFragment(buildPrizeFragment(instance.Snapshot())))
}

func (h *CardHandler) pointer(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")
	instance, ok := h.store.GetCard(cardID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	var req pointerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPointerBody)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Events) > maxPointerEvents {
		http.Error(w, "too many events", http.StatusBadRequest)
		return
	}
	if err := req.Viewport.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, ev := range req.Events {
		if err := ev.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	snapshot, revealedNow := instance.Apply(req.Events, req.Viewport, time.Now().UTC())
	h.store.Publish(cardID, card.EventProgress)
	if revealedNow {
		log.Printf("card revealed id=%s ratio=%.3f prize=%d", cardID, snapshot.ClearedRatio, snapshot.Prize.ID)
		h.store.Publish(cardID, card.EventPrize)
		h.store.ScheduleFade(cardID)
	}
	writeJSON(w, pointerResponse{
		ClearedRatio: snapshot.ClearedRatio,
		Percent:      snapshot.Percent,
		Revealed:     snapshot.Revealed,
		Faded:        snapshot.Faded,
	})
}

func (h *CardHandler) teardown(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")
	if !h.store.RemoveCard(cardID) {
		http.NotFound(w, r)
		return
	}
	log.Printf("card torn down id=%s", cardID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CardHandler) stream(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")
	instance, ok := h.store.GetCard(cardID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	hub, ok := h.store.Broadcaster(cardID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := hub.Subscribe()
	log.Printf("stream open id=%s subscribers=%d", cardID, hub.Subscribers())
	defer func() {
		hub.Unsubscribe(sub)
		log.Printf("stream closed id=%s subscribers=%d", cardID, hub.Subscribers())
	}()

	send := func(event string) {
		snapshot := instance.Snapshot()
		switch event {
		case card.EventProgress:
			writeSSE(w, event, renderToString(r, components.ProgressFragment(buildProgressFragment(snapshot))))
		case card.EventPrize, card.EventFade:
			writeSSE(w, event, renderToString(r, components.PrizeFragment(buildPrizeFragment(snapshot))))
		}
		flusher.Flush()
	}

	send(card.EventProgress)
	send(card.EventPrize)

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub:
			if !open {
				return
			}
			send(event)
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *CardHandler) buildShareURL(r *http.Request, cardID string) string {
	if h.cfg.Server.BaseURL != "" {
		return h.cfg.Server.BaseURL + "/card/" + cardID + "/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/card/" + cardID + "/"
}

func buildProgressFragment(snapshot card.Snapshot) viewmodel.ProgressFragment {
	return viewmodel.ProgressFragment{
		CardID:       snapshot.ID,
		Percent:      snapshot.Percent,
		ThresholdPct: thresholdPercent(snapshot.Threshold),
		Revealed:     snapshot.Revealed,
	}
}

func buildPrizeFragment(snapshot card.Snapshot) viewmodel.PrizeFragment {
	tier := snapshot.VisiblePrize()
	return viewmodel.PrizeFragment{
		CardID:      snapshot.ID,
		Revealed:    snapshot.Revealed,
		Faded:       snapshot.Faded,
		Name:        tier.Name,
		Description: tier.Description,
		Color:       tier.Color,
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func renderToString(r *http.Request, component templ.Component) string {
	var buf bytes.Buffer
	_ = component.Render(r.Context(), &buf)
	return buf.String()
}

func writeSSE(w http.ResponseWriter, event string, data string) {
	_, _ = w.Write([]byte("event: " + event + "\n"))
	for _, line := range strings.Split(data, "\n") {
		_, _ = w.Write([]byte("data: " + line + "\n"))
	}
	_, _ = w.Write([]byte("\n"))
}

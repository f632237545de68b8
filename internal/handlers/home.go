package handlers

import (
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"scratchcard/internal/card"
	"scratchcard/internal/config"
	"scratchcard/internal/viewmodel"
	"scratchcard/views/pages"
)

type HomeHandler struct {
	store *card.Store
	cfg   *config.Config
}

func NewHomeHandler(store *card.Store, cfg *config.Config) *HomeHandler {
	return &HomeHandler{store: store, cfg: cfg}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Post("/cards", h.createCard)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	odds := h.store.Catalog().Odds()
	rows := make([]viewmodel.OddsRow, 0, len(odds))
	for _, o := range odds {
		rows = append(rows, viewmodel.OddsRow{
			Name:    o.Name,
			Color:   o.Color,
			Percent: formatPercent(o.Probability),
		})
	}
	render(w, r, pages.HomePage(viewmodel.HomePage{
		Title:           "Scratch Card",
		ThresholdPct:    thresholdPercent(h.cfg.Card.RevealThreshold),
		Odds:            rows,
		MaxPixelRatio:   h.cfg.Card.MaxPixelRatio,
		ActiveCardCount: h.store.Len(),
	}))
}

func (h *HomeHandler) createCard(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	dpr := parseFloat(r.FormValue("dpr"), 1)
	scratchCfg, err := h.cfg.Card.Scratch(dpr)
	if err != nil {
		log.Printf("create card config error dpr=%v err=%v", dpr, err)
		http.Error(w, "invalid card config", http.StatusInternalServerError)
		return
	}
	c, err := h.store.CreateCard(scratchCfg)
	if err != nil {
		log.Printf("create card error err=%v", err)
		http.Error(w, "failed to create card", http.StatusInternalServerError)
		return
	}
	log.Printf("card created id=%s dpr=%v prize=%d", c.ID, scratchCfg.PixelRatio, c.Snapshot().Prize.ID)
	http.Redirect(w, r, "/card/"+c.ID+"/", http.StatusSeeOther)
}

func parseFloat(value string, fallback float64) float64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return fallback
	}
	return parsed
}

func thresholdPercent(threshold float64) int {
	return int(math.Round(threshold * 100))
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 2, 64) + "%"
}

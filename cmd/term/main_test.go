package main

import (
	"strings"
	"testing"

	"scratchcard/internal/card"
	"scratchcard/internal/prize"
	"scratchcard/internal/scratch"
)

func TestViewportMapsCellCentres(t *testing.T) {
	cfg := scratch.DefaultConfig()
	got := viewport().ToCard(originX+32+0.5, originY+9+0.5, cfg)
	if got != (scratch.Point{X: 162.5, Y: 95}) {
		t.Errorf("got %v, want (162.5,95)", got)
	}
	corner := viewport().ToCard(originX, originY, cfg)
	if corner != (scratch.Point{}) {
		t.Errorf("card origin maps to %v", corner)
	}
}

func TestInsideCard(t *testing.T) {
	if !insideCard(originX, originY) || !insideCard(originX+cardCols-1, originY+cardRows-1) {
		t.Error("corners should be inside")
	}
	if insideCard(originX-1, originY) || insideCard(originX, originY+cardRows) {
		t.Error("cells past the edge should be outside")
	}
}

func TestPanelLines(t *testing.T) {
	grid := panelLines(prize.Tier{Name: "1st", Description: strings.Repeat("long ", 40)})
	row := string(grid[cardRows/2-1][:])
	if !strings.Contains(row, "1st") {
		t.Errorf("name row %q", row)
	}
	desc := string(grid[cardRows/2+1][:])
	if !strings.Contains(desc, "…") {
		t.Errorf("long description should be truncated: %q", desc)
	}
}

func TestPrizePanelHidesTierUntilReveal(t *testing.T) {
	tier := prize.Tier{ID: 4, Name: "4th", Description: "Good news", Color: "#fca5a5"}
	nameRow := func(grid [cardRows][cardCols]rune) string { return string(grid[cardRows/2-1][:]) }

	grid, _ := prizePanel(card.Snapshot{Prize: tier})
	if row := nameRow(grid); strings.Contains(row, "4th") || !strings.Contains(row, card.HiddenPrize.Name) {
		t.Errorf("masked card shows %q", row)
	}
	grid, _ = prizePanel(card.Snapshot{Prize: tier, Revealed: true})
	if row := nameRow(grid); !strings.Contains(row, "4th") {
		t.Errorf("revealed card shows %q", row)
	}
}

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"scratchcard/internal/card"
	"scratchcard/internal/config"
	"scratchcard/internal/prize"
	"scratchcard/internal/scratch"
)

const (
	cardCols = 64
	cardRows = 18
	originX  = 2
	originY  = 2
)

var (
	coverStyle   = tcell.StyleDefault.Foreground(tcell.NewRGBColor(156, 163, 175)).Background(tcell.NewRGBColor(75, 85, 99))
	panelStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.NewRGBColor(31, 27, 58))
	statusStyle  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	revealStyle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	headingStyle = tcell.StyleDefault.Foreground(tcell.NewRGBColor(167, 139, 250)).Bold(true)
)

type app struct {
	screen  tcell.Screen
	store   *card.Store
	cfg     *config.Config
	card    *card.Card
	events  chan string
	chime   *chime
	pressed bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		f, err := os.OpenFile("scratch-term.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}

	catalog, err := prize.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal(err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "screen init: %v\n", err)
		os.Exit(1)
	}
	screen.EnableMouse()
	screen.HideCursor()

	a := &app{
		screen: screen,
		store:  card.NewStore(catalog, card.Settings{FadeAfter: cfg.Session.FadeAfter}),
		cfg:    cfg,
		events: make(chan string, 16),
		chime:  newChime(),
	}
	if err := a.newCard(); err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "card: %v\n", err)
		os.Exit(1)
	}
	a.run()
	screen.Fini()
}

func (a *app) newCard() error {
	if a.card != nil {
		a.store.RemoveCard(a.card.ID)
	}
	scratchCfg, err := a.cfg.Card.Scratch(1)
	if err != nil {
		return err
	}
	c, err := a.store.CreateCard(scratchCfg)
	if err != nil {
		return err
	}
	hub, ok := a.store.Broadcaster(c.ID)
	if !ok {
		return fmt.Errorf("no broadcaster for card %s", c.ID)
	}
	sub := hub.Subscribe()
	go func() {
		for ev := range sub {
			a.events <- ev
		}
	}()
	a.card = c
	a.pressed = false
	log.Printf("card created id=%s prize=%d", c.ID, c.Snapshot().Prize.ID)
	return nil
}

// viewport maps the card's cell rectangle onto the logical card.
func viewport() scratch.Viewport {
	return scratch.Viewport{Left: originX, Top: originY, Width: cardCols, Height: cardRows}
}

func insideCard(x, y int) bool {
	return x >= originX && x < originX+cardCols && y >= originY && y < originY+cardRows
}

func (a *app) run() {
	tcellEvents := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				close(tcellEvents)
				return
			}
			tcellEvents <- ev
		}
	}()

	a.draw()
	for {
		select {
		case ev, ok := <-tcellEvents:
			if !ok || !a.handle(ev) {
				return
			}
		case name := <-a.events:
			if name == card.EventFade {
				log.Printf("card faded id=%s", a.card.ID)
			}
		}
		a.draw()
	}
}

func (a *app) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case 'n':
				if err := a.newCard(); err != nil {
					log.Printf("new card error err=%v", err)
				}
			}
		}
	case *tcell.EventMouse:
		a.handleMouse(ev)
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

func (a *app) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	down := ev.Buttons()&tcell.Button1 != 0
	pe := scratch.PointerEvent{X: float64(x) + 0.5, Y: float64(y) + 0.5}
	switch {
	case down && !a.pressed:
		if !insideCard(x, y) {
			return
		}
		a.pressed = true
		pe.Kind = scratch.EventStart
	case down && a.pressed:
		if !insideCard(x, y) {
			a.pressed = false
			pe.Kind = scratch.EventLeave
		} else {
			pe.Kind = scratch.EventMove
		}
	case !down && a.pressed:
		a.pressed = false
		pe.Kind = scratch.EventEnd
	default:
		return
	}

	snap, revealedNow := a.card.Apply([]scratch.PointerEvent{pe}, viewport(), time.Now().UTC())
	a.store.Publish(a.card.ID, card.EventProgress)
	if revealedNow {
		log.Printf("card revealed id=%s ratio=%.3f", snap.ID, snap.ClearedRatio)
		a.store.Publish(a.card.ID, card.EventPrize)
		a.store.ScheduleFade(a.card.ID)
		a.chime.Play()
	}
}

func (a *app) draw() {
	a.screen.Clear()
	snap := a.card.Snapshot()

	drawText(a.screen, originX, 0, headingStyle, "Today's Scratch Card")

	panel, prizeStyle := prizePanel(snap)
	var coverage [][]float64
	if !snap.Faded {
		coverage = a.card.Coverage(cardCols, cardRows)
	}
	for row := 0; row < cardRows; row++ {
		for col := 0; col < cardCols; col++ {
			ch, style := panel[row][col], panelStyle
			if row == cardRows/2-1 {
				style = prizeStyle
			}
			if coverage != nil {
				switch c := coverage[row][col]; {
				case c >= 0.999:
					ch, style = '░', coverStyle
				case c > 0.5:
					ch, style = '▒', coverStyle
				}
			}
			a.screen.SetContent(originX+col, originY+row, ch, nil, style)
		}
	}

	statusY := originY + cardRows + 1
	status := fmt.Sprintf("Scratched: %d%%   reveal at %d%%", snap.Percent, int(snap.Threshold*100+0.5))
	drawText(a.screen, originX, statusY, statusStyle, status)
	if snap.Revealed {
		drawText(a.screen, originX+runewidth.StringWidth(status)+3, statusY, revealStyle, "Revealed!")
	}
	drawText(a.screen, originX, statusY+1, statusStyle, "drag to scratch · n new card · q quit")
	a.screen.Show()
}

// prizePanel is the grid under the cover. The drawn tier only shows once the
// card is revealed.
func prizePanel(snap card.Snapshot) ([cardRows][cardCols]rune, tcell.Style) {
	shown := snap.VisiblePrize()
	return panelLines(shown), panelStyle.Foreground(tcell.GetColor(shown.Color)).Bold(true)
}

// panelLines lays the prize out on the card grid: label, name, description.
func panelLines(t prize.Tier) [cardRows][cardCols]rune {
	var grid [cardRows][cardCols]rune
	for r := range grid {
		for c := range grid[r] {
			grid[r][c] = ' '
		}
	}
	place := func(row int, s string) {
		s = runewidth.Truncate(s, cardCols-2, "…")
		col := (cardCols - runewidth.StringWidth(s)) / 2
		for _, ch := range s {
			if col >= cardCols {
				return
			}
			grid[row][col] = ch
			col += runewidth.RuneWidth(ch)
		}
	}
	mid := cardRows / 2
	place(mid-3, "TODAY'S RESULT")
	place(mid-1, t.Name)
	place(mid+1, t.Description)
	return grid
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, ch := range text {
		s.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
}

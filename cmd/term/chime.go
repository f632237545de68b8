package main

import (
	"log"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const chimeRate = beep.SampleRate(44100)

// chime plays a short rising arpeggio on reveal. Without an audio device it
// stays silent.
type chime struct {
	ready bool
}

func newChime() *chime {
	if err := speaker.Init(chimeRate, chimeRate.N(100*time.Millisecond)); err != nil {
		log.Printf("audio disabled err=%v", err)
		return &chime{}
	}
	return &chime{ready: true}
}

func (c *chime) Play() {
	if !c.ready {
		return
	}
	notes := []float64{523.25, 659.25, 783.99, 1046.5}
	parts := make([]beep.Streamer, 0, len(notes))
	for _, freq := range notes {
		tone, err := generators.SineTone(chimeRate, freq)
		if err != nil {
			log.Printf("chime tone freq=%v err=%v", freq, err)
			return
		}
		parts = append(parts, beep.Take(chimeRate.N(110*time.Millisecond), tone))
	}
	speaker.Play(&effects.Volume{
		Streamer: beep.Seq(parts...),
		Base:     2,
		Volume:   -3,
	})
}

package scratch

import (
	"errors"
	"fmt"
	"math"
)

// EraseMode selects the shape laid down between sampled pointer positions.
type EraseMode string

const (
	// EraseLine joins successive positions with round-capped capsules.
	EraseLine EraseMode = "line"
	// EraseDab erases a disc at each sampled position only.
	EraseDab EraseMode = "dab"
)

const (
	DefaultWidth           = 320
	DefaultHeight          = 180
	DefaultBrushRadius     = 24
	DefaultRevealThreshold = 0.6
	DefaultPixelRatio      = 1
)

var ErrInvalidConfig = errors.New("invalid card config")

// Config is fixed when a card is created. Width, Height and BrushRadius are
// logical pixels; the mask is allocated at PixelRatio times that size.
type Config struct {
	Width           int
	Height          int
	BrushRadius     float64
	RevealThreshold float64
	EraseMode       EraseMode
	PixelRatio      float64
}

// DefaultConfig returns the 320x180 card with a 24px brush and a 60% threshold.
func DefaultConfig() Config {
	return Config{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		BrushRadius:     DefaultBrushRadius,
		RevealThreshold: DefaultRevealThreshold,
		EraseMode:       EraseLine,
		PixelRatio:      DefaultPixelRatio,
	}
}

// Validate reports the first field that cannot be used to build an engine.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if !(c.BrushRadius > 0) || math.IsInf(c.BrushRadius, 0) {
		return fmt.Errorf("%w: brush radius %v", ErrInvalidConfig, c.BrushRadius)
	}
	if !(c.RevealThreshold > 0 && c.RevealThreshold <= 1) {
		return fmt.Errorf("%w: reveal threshold %v", ErrInvalidConfig, c.RevealThreshold)
	}
	switch c.EraseMode {
	case EraseLine, EraseDab:
	default:
		return fmt.Errorf("%w: erase mode %q", ErrInvalidConfig, c.EraseMode)
	}
	if !(c.PixelRatio >= 1) || math.IsInf(c.PixelRatio, 0) {
		return fmt.Errorf("%w: pixel ratio %v", ErrInvalidConfig, c.PixelRatio)
	}
	return nil
}

// MaskSize returns the mask dimensions in device pixels.
func (c Config) MaskSize() (int, int) {
	return int(math.Ceil(float64(c.Width) * c.PixelRatio)), int(math.Ceil(float64(c.Height) * c.PixelRatio))
}

// ParseEraseMode maps a config string onto an EraseMode, defaulting to line.
func ParseEraseMode(s string) (EraseMode, error) {
	switch EraseMode(s) {
	case "", EraseLine:
		return EraseLine, nil
	case EraseDab:
		return EraseDab, nil
	}
	return "", fmt.Errorf("%w: erase mode %q", ErrInvalidConfig, s)
}

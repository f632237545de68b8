// Package prize holds the tier catalog and the weighted draw.
package prize

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyCatalog  = errors.New("prize catalog is empty")
	ErrInvalidWeight = errors.New("prize weight must be finite and positive")
	ErrDuplicateTier = errors.New("duplicate prize tier id")
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Tier is one prize level. Color is a CSS hex colour used for the name.
type Tier struct {
	ID          int     `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Weight      float64 `yaml:"weight" json:"weight"`
	Color       string  `yaml:"color" json:"color"`
}

type catalogFile struct {
	Tiers []Tier `yaml:"tiers"`
}

// Catalog is an immutable, validated list of tiers in display order.
type Catalog struct {
	tiers []Tier
	total float64
}

// Odds is a tier with its probability of being drawn.
type Odds struct {
	Tier
	Probability float64
}

// NewCatalog validates tiers and copies them.
func NewCatalog(tiers []Tier) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[int]bool, len(tiers))
	total := 0.0
	for _, t := range tiers {
		if !(t.Weight > 0) || math.IsInf(t.Weight, 0) {
			return nil, fmt.Errorf("tier %d: %w", t.ID, ErrInvalidWeight)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("tier %d: %w", t.ID, ErrDuplicateTier)
		}
		seen[t.ID] = true
		total += t.Weight
	}
	return &Catalog{tiers: append([]Tier(nil), tiers...), total: total}, nil
}

// ParseCatalog decodes a YAML document with a top-level tiers list.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewCatalog(f.Tiers)
}

// LoadCatalog reads a catalog file. An empty path yields the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// DefaultCatalog is the built-in ten-tier table.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// Tiers returns a copy of the tiers.
func (c *Catalog) Tiers() []Tier {
	return append([]Tier(nil), c.tiers...)
}

func (c *Catalog) Len() int { return len(c.tiers) }

// TotalWeight is the sum of all weights.
func (c *Catalog) TotalWeight() float64 { return c.total }

// Odds reports each tier's draw probability in catalog order.
func (c *Catalog) Odds() []Odds {
	out := make([]Odds, len(c.tiers))
	for i, t := range c.tiers {
		out[i] = Odds{Tier: t, Probability: t.Weight / c.total}
	}
	return out
}

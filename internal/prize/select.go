package prize

// Select draws one tier with probability weight/total: r is uniform in
// [0, total) and the first tier whose cumulative weight reaches r wins.
//
// tiers must be non-empty with positive weights; NewCatalog enforces that.
// A value that lands past the last boundary through rounding falls back to
// the last tier.
func Select(tiers []Tier, rng RandomSource) Tier {
	total := 0.0
	for _, t := range tiers {
		total += t.Weight
	}
	r := rng.Float64() * total

	acc := 0.0
	for _, t := range tiers {
		acc += t.Weight
		if acc >= r {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Draw selects from the catalog.
func (c *Catalog) Draw(rng RandomSource) Tier {
	return Select(c.tiers, rng)
}

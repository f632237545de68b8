package viewmodel

// OddsRow is one line of the odds table on the home page.
type OddsRow struct {
	Name    string
	Color   string
	Percent string
}

// HomePage holds data for the landing page.
type HomePage struct {
	Title           string
	ThresholdPct    int
	Odds            []OddsRow
	MaxPixelRatio   float64
	ActiveCardCount int
}

// CardPage holds data for the scratch card page template.
type CardPage struct {
	Title        string
	CardID       string
	ShareURL     string
	MaskURL      string
	Width        int
	Height       int
	PixelRatio   float64
	BrushRadius  float64
	EraseMode    string
	ThresholdPct int
	Progress     ProgressFragment
	Prize        PrizeFragment
}

// ProgressFragment holds data for the cleared-area readout.
type ProgressFragment struct {
	CardID       string
	Percent      int
	ThresholdPct int
	Revealed     bool
}

// PrizeFragment holds data for the prize panel under the mask.
type PrizeFragment struct {
	CardID      string
	Revealed    bool
	Faded       bool
	Name        string
	Description string
	Color       string
}

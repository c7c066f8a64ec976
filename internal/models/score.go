package models

// Matches are the per-factor match percentages (0-100) of a live reading
// against the window's best occurrence.
type Matches struct {
	Occupancy int `json:"occupancy"`
	Sound     int `json:"sound"`
	Light     int `json:"light"`
	Genre     int `json:"genre"`
}

// ScoreResult is the outcome of scoring a live reading.
type ScoreResult struct {
	VenueID     string     `json:"venue_id"`
	Window      TimeWindow `json:"window"`
	Score       int        `json:"score"`
	StatusLabel string     `json:"status_label"`
	Matches     Matches    `json:"per_factor_matches"`
	Baseline    bool       `json:"baseline"` // true when no learned target was available
}

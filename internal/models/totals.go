package models

// Totals are cumulative figures over a set of sessions.
type Totals struct {
	Count    int     `json:"count"`
	Distance float64 `json:"distance"`
	Duration int64   `json:"duration"`
	Calories float64 `json:"calories"`
}

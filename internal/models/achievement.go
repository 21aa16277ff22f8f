package models

import "fmt"

// Category selects how an achievement accumulates progress.
type Category string

const (
	CategoryDistance Category = "distance"
	CategoryDuration Category = "duration"
	CategorySpeed    Category = "speed"
	CategoryCount    Category = "count"
	CategoryCalories Category = "calories"
)

var categories = []Category{
	CategoryDistance,
	CategoryDuration,
	CategorySpeed,
	CategoryCount,
	CategoryCalories,
}

func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown achievement category %q", s)
}

// Achievement merges the static definition with its progress. For the speed
// category Progress holds the best (lowest) pace in minutes per kilometer.
type Achievement struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Category    Category `json:"category"`
	Target      float64  `json:"target"`
	Progress    float64  `json:"progress"`
	Unlocked    bool     `json:"unlocked"`
	UnlockedAt  int64    `json:"unlocked_at,omitempty"`
}

// SameDefinition reports whether a and b describe the same goal, ignoring progress.
func (a Achievement) SameDefinition(b Achievement) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.Icon == b.Icon &&
		a.Category == b.Category &&
		a.Target == b.Target
}

package models

const (
	minuteMs = 60 * 1000
)

var defaultCatalog = []Achievement{
	{ID: 1, Name: "First Steps", Description: "Complete your first run", Icon: "compass", Category: CategoryCount, Target: 1},
	{ID: 2, Name: "1K Runner", Description: "Run 1 km", Icon: "directions", Category: CategoryDistance, Target: 1000},
	{ID: 3, Name: "5K Challenge", Description: "Run 5 km", Icon: "mylocation", Category: CategoryDistance, Target: 5000},
	{ID: 4, Name: "10K Master", Description: "Run 10 km", Icon: "map", Category: CategoryDistance, Target: 10000},
	{ID: 5, Name: "Half Marathon", Description: "Run 21 km", Icon: "star", Category: CategoryDistance, Target: 21000},
	{ID: 6, Name: "Quarter Hour", Description: "Run for 15 minutes", Icon: "alarm", Category: CategoryDuration, Target: 15 * minuteMs},
	{ID: 7, Name: "Half Hour Runner", Description: "Run for 30 minutes", Icon: "agenda", Category: CategoryDuration, Target: 30 * minuteMs},
	{ID: 8, Name: "Hour Warrior", Description: "Run for 60 minutes", Icon: "today", Category: CategoryDuration, Target: 60 * minuteMs},
	{ID: 9, Name: "Pace Setter", Description: "Average pace of 8 min/km", Icon: "sort", Category: CategorySpeed, Target: 8},
	{ID: 10, Name: "Speed Star", Description: "Average pace of 6 min/km", Icon: "star", Category: CategorySpeed, Target: 6},
	{ID: 11, Name: "Fleet Foot", Description: "Average pace of 5 min/km", Icon: "bolt", Category: CategorySpeed, Target: 5},
	{ID: 12, Name: "Burn 100", Description: "Burn 100 calories", Icon: "flame", Category: CategoryCalories, Target: 100},
	{ID: 13, Name: "Calorie Warrior", Description: "Burn 300 calories", Icon: "fire", Category: CategoryCalories, Target: 300},
	{ID: 14, Name: "Running Fan", Description: "Complete 5 runs", Icon: "play", Category: CategoryCount, Target: 5},
	{ID: 15, Name: "Running Expert", Description: "Complete 20 runs", Icon: "pause", Category: CategoryCount, Target: 20},
	{ID: 16, Name: "Running Master", Description: "Complete 50 runs", Icon: "fastforward", Category: CategoryCount, Target: 50},
}

// DefaultCatalog returns a fresh copy of the seed achievement set.
func DefaultCatalog() []Achievement {
	out := make([]Achievement, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

package models

// CaloriesPerMeter is the fixed linear calorie model: kcal burned per meter run.
const CaloriesPerMeter = 0.06

// PositionSample is one recorded location fix. Timestamps are unix milliseconds,
// speed is meters per second.
type PositionSample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Timestamp int64   `json:"timestamp"`
	Speed     float64 `json:"speed"`
}

// Session is a single run. Distance is in meters, times and Duration in
// milliseconds, speeds in meters per second.
type Session struct {
	ID           int64            `json:"id"`
	StartTime    int64            `json:"start_time"`
	EndTime      int64            `json:"end_time"`
	Distance     float64          `json:"distance"`
	Duration     int64            `json:"duration"`
	Calories     float64          `json:"calories"`
	AverageSpeed float64          `json:"average_speed"`
	MaxSpeed     float64          `json:"max_speed"`
	Locations    []PositionSample `json:"locations"`
}

// Summary is the part of a finalized session that feeds achievement progress.
type Summary struct {
	Distance float64 `json:"distance"`
	Duration int64   `json:"duration"`
	Calories float64 `json:"calories"`
}

func (s *Session) Finalized() bool {
	return s.EndTime != 0
}

func (s *Session) Summary() Summary {
	return Summary{
		Distance: s.Distance,
		Duration: s.Duration,
		Calories: s.Calories,
	}
}

// Pace returns minutes per kilometer, or 0 when no distance was covered.
func (s *Session) Pace() float64 {
	return PaceMinutesPerKm(s.Distance, s.Duration)
}

// Clone returns a copy that shares no location storage with s.
func (s *Session) Clone() Session {
	c := *s
	if s.Locations != nil {
		c.Locations = make([]PositionSample, len(s.Locations))
		copy(c.Locations, s.Locations)
	}
	return c
}

func EstimateCalories(distance float64) float64 {
	return distance * CaloriesPerMeter
}

// AverageSpeed is distance over active duration in meters per second.
func AverageSpeed(distance float64, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return distance / (float64(durationMs) / 1000)
}

func PaceMinutesPerKm(distance float64, duration int64) float64 {
	if distance <= 0 {
		return 0
	}
	return (float64(duration) / 60000) / (distance / 1000)
}

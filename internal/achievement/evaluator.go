// Package achievement applies finalized session summaries to achievement progress.
package achievement

import "stride/internal/models"

// Result is the outcome of evaluating one achievement against one session.
type Result struct {
	Achievement  models.Achievement
	Changed      bool
	JustUnlocked bool
}

// Evaluate returns the updated form of every achievement after one finalized
// session. It does not modify the input slice. now stamps new unlocks.
func Evaluate(achievements []models.Achievement, summary models.Summary, now int64) []Result {
	results := make([]Result, len(achievements))
	for i, a := range achievements {
		results[i] = evaluateOne(a, summary, now)
	}
	return results
}

func evaluateOne(a models.Achievement, summary models.Summary, now int64) Result {
	before := a

	switch a.Category {
	case models.CategoryDistance:
		a.Progress += summary.Distance
	case models.CategoryDuration:
		a.Progress += float64(summary.Duration)
	case models.CategoryCalories:
		a.Progress += summary.Calories
	case models.CategoryCount:
		a.Progress++
	case models.CategorySpeed:
		if pace := models.PaceMinutesPerKm(summary.Distance, summary.Duration); pace > 0 {
			if a.Progress == 0 || pace < a.Progress {
				a.Progress = pace
			}
		}
	default:
		return Result{Achievement: a}
	}

	justUnlocked := false
	if !a.Unlocked && reached(a) {
		a.Unlocked = true
		a.UnlockedAt = now
		justUnlocked = true
	}

	return Result{
		Achievement:  a,
		Changed:      a.Progress != before.Progress || a.Unlocked != before.Unlocked,
		JustUnlocked: justUnlocked,
	}
}

func reached(a models.Achievement) bool {
	if a.Category == models.CategorySpeed {
		return a.Progress > 0 && a.Progress <= a.Target
	}
	return a.Progress >= a.Target
}

// Achievements extracts the updated set from results.
func Achievements(results []Result) []models.Achievement {
	out := make([]models.Achievement, len(results))
	for i, r := range results {
		out[i] = r.Achievement
	}
	return out
}

// Reset zeroes progress and re-locks every achievement, keeping definitions.
func Reset(achievements []models.Achievement) []models.Achievement {
	out := make([]models.Achievement, len(achievements))
	for i, a := range achievements {
		a.Progress = 0
		a.Unlocked = false
		a.UnlockedAt = 0
		out[i] = a
	}
	return out
}

// Filter returns the achievements whose unlocked flag equals unlocked.
func Filter(achievements []models.Achievement, unlocked bool) []models.Achievement {
	out := make([]models.Achievement, 0, len(achievements))
	for _, a := range achievements {
		if a.Unlocked == unlocked {
			out = append(out, a)
		}
	}
	return out
}

package scheduler

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ShayCichocki/attention/pkg/models"
)

// priorityPrecision is the number of decimal places priorities are rounded to.
const priorityPrecision = 1000

// DeadlineBoostWindow is how close a deadline must be at creation to earn a boost.
const DeadlineBoostWindow = 5 * time.Minute

// DeadlineBoost is added once, at creation, to items inside DeadlineBoostWindow.
const DeadlineBoost = 0.2

// ComputePriority returns the weighted sum of signals under weights, clamped
// to [0,1] and rounded to three decimals.
func ComputePriority(signals models.PrioritySignals, weights models.PriorityWeights) float64 {
	return roundPriority(models.Clamp01(floats.Dot(weights.Vector(), signals.Vector())))
}

// scoreItem recomputes an item's priority including any creation-time boost.
func scoreItem(item *models.WorkItem, weights models.PriorityWeights) float64 {
	p := ComputePriority(item.Signals, weights)
	if item.DeadlineBoost > 0 {
		p = roundPriority(math.Min(1, p+item.DeadlineBoost))
	}
	return p
}

// deadlineBoostFor returns the boost earned by a deadline at creation time.
func deadlineBoostFor(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0
	}
	until := deadline.Sub(now)
	if until >= 0 && until <= DeadlineBoostWindow {
		return DeadlineBoost
	}
	return 0
}

func roundPriority(p float64) float64 {
	return math.Round(p*priorityPrecision) / priorityPrecision
}

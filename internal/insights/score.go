// Package insights fuses pondering rows (behavior_patterns), doc gaps
// (documentation_tasks), and health trend snapshots into one read-only,
// dismissable, priority-ranked feed (spec §4.5).
package insights

import "math"

const chronicDecayDivisor = 14.0
const chronicDecayCap = 2.0
const acuteDecayDivisor = 14.0
const acuteDecayFloor = 0.3

// chronicKinds marks pondering kinds that get *more* important the longer
// they go unaddressed: a stale goal, fragile code, or a revert cluster are
// symptoms that compound, not events that fade. Every other kind — including
// any kind not listed here — decays acutely (spec §9: "untested types
// default to acute").
var chronicKinds = map[string]bool{
	"insight_stale_goal":     true,
	"insight_fragile_code":   true,
	"insight_revert_cluster": true,
}

// typeWeight is the fixed per-kind weight multiplied into priority_score.
var typeWeight = map[string]float64{
	"insight_stale_goal":      0.9,
	"insight_fragile_code":    0.95,
	"insight_revert_cluster":  1.0,
	"insight_untested":        0.8,
	"insight_recurring_error": 0.85,
	"insight_churn_hotspot":   0.8,
	"insight_health_degrading": 0.9,
	"insight_session":         0.75,
	"insight_workflow":        0.7,
}

const defaultTypeWeight = 0.7

// isChronic reports whether kind decays the "inverse" (chronic) way.
func isChronic(kind string) bool {
	return chronicKinds[kind]
}

// decayChronic returns the chronic decay multiplier: insights get more
// important with age, capped at 2.0 (spec §4.5, invariant 5).
func decayChronic(ageDays float64) float64 {
	return math.Min(chronicDecayCap, 1.0+ageDays/chronicDecayDivisor)
}

// decayAcute returns the acute decay multiplier: insights lose importance
// with age, floored at 0.3 (spec §4.5, invariant 5).
func decayAcute(ageDays float64) float64 {
	return math.Max(acuteDecayFloor, 1.0-ageDays/acuteDecayDivisor)
}

func decay(ageDays float64, kind string) float64 {
	if isChronic(kind) {
		return decayChronic(ageDays)
	}
	return decayAcute(ageDays)
}

func weightFor(kind string) float64 {
	if w, ok := typeWeight[kind]; ok {
		return w
	}
	return defaultTypeWeight
}

// ponderingScore computes priority_score = confidence * type_weight * decay.
func ponderingScore(confidence, ageDays float64, kind string) float64 {
	return confidence * weightFor(kind) * decay(ageDays, kind)
}

// docGapPriorityScore maps the documentation_tasks priority enum to a fixed
// decreasing score (spec §4.5).
func docGapPriorityScore(priority string) float64 {
	switch priority {
	case "urgent":
		return 1.0
	case "high":
		return 0.8
	case "medium":
		return 0.6
	default: // "low" and anything unrecognized
		return 0.4
	}
}

// HealthTrend is the computed trend between two consecutive health
// snapshots (spec §4.5).
type HealthTrend struct {
	Trend      string // "degraded" | "improved" | "baseline"
	Confidence float64
	Emit       bool
}

// computeHealthTrend implements the health_trend rule: delta > 25% of the
// previous average emits confidence 0.85, 10-25% emits 0.7, under 10% emits
// nothing. prev_avg = 0 with a positive current average is a "baseline"
// trend rather than a percentage delta (spec §4.5, invariant 7).
func computeHealthTrend(prevAvg, currentAvg float64) HealthTrend {
	if prevAvg == 0 {
		if currentAvg > 0 {
			return HealthTrend{Trend: "baseline", Confidence: 0.5, Emit: true}
		}
		return HealthTrend{Emit: false}
	}
	delta := currentAvg - prevAvg
	pct := math.Abs(delta) / prevAvg
	var confidence float64
	switch {
	case pct > 0.25:
		confidence = 0.85
	case pct >= 0.10:
		confidence = 0.7
	default:
		return HealthTrend{Emit: false}
	}
	trend := "improved"
	if delta > 0 {
		trend = "degraded"
	}
	return HealthTrend{Trend: trend, Confidence: confidence, Emit: true}
}

// Package stats aggregates evaluation scores for display.
//
// All functions take percentages ordered newest first, the order the
// evaluation store keeps them in.
package stats

import (
	"math"

	"github.com/kalambet/think/internal/criteria"
)

// Trend compares the keep-to-yourself rate of recent evaluations against
// older ones.
type Trend string

const (
	Improving Trend = "improving"
	Declining Trend = "declining"
	Stable    Trend = "stable"
)

// trendMargin is how far the recent rate must move from the older rate
// before the trend is no longer stable.
const trendMargin = 0.1

// OverallStats summarizes every stored evaluation.
type OverallStats struct {
	Total         int `json:"total"`
	AvgPercentage int `json:"avg_percentage"`
	PerfectCount  int `json:"perfect_count"`
	PerfectRate   int `json:"perfect_rate"`
}

// KeepToYourselfStats tracks how often nothing should have been said.
type KeepToYourselfStats struct {
	TotalKeepToYourself int   `json:"total_keep_to_yourself"`
	OverallScore        int   `json:"overall_score"`
	RecentTrend         Trend `json:"recent_trend"`
}

// Overall returns summary statistics. ok is false for an empty history,
// which callers must render differently from a history of zeros.
func Overall(percentages []int) (s OverallStats, ok bool) {
	if len(percentages) == 0 {
		return OverallStats{}, false
	}
	sum, perfect := 0, 0
	for _, p := range percentages {
		sum += p
		if p == 100 {
			perfect++
		}
	}
	n := float64(len(percentages))
	return OverallStats{
		Total:         len(percentages),
		AvgPercentage: roundHalfUp(float64(sum) / n),
		PerfectCount:  perfect,
		PerfectRate:   roundHalfUp(100 * float64(perfect) / n),
	}, true
}

// KeepToYourself computes the keep-to-yourself score and trend.
func KeepToYourself(percentages []int) KeepToYourselfStats {
	if len(percentages) == 0 {
		return KeepToYourselfStats{OverallScore: 100, RecentTrend: Stable}
	}

	total := countZero(percentages)
	score := roundHalfUp(100 * (1 - float64(total)/float64(len(percentages))))

	mid := len(percentages) / 2
	recent := zeroRate(percentages[:mid])
	older := zeroRate(percentages[mid:])

	trend := Stable
	switch {
	case recent < older-trendMargin:
		trend = Improving
	case recent > older+trendMargin:
		trend = Declining
	}

	return KeepToYourselfStats{
		TotalKeepToYourself: total,
		OverallScore:        score,
		RecentTrend:         trend,
	}
}

func countZero(ps []int) int {
	n := 0
	for _, p := range ps {
		if p == 0 {
			n++
		}
	}
	return n
}

func zeroRate(ps []int) float64 {
	if len(ps) == 0 {
		return 0
	}
	return float64(countZero(ps)) / float64(len(ps))
}

// Breakdown counts evaluations per verdict and per satisfied criterion.
type Breakdown struct {
	ByBand      map[string]int       `json:"by_band"`
	ByCriterion map[criteria.Key]int `json:"by_criterion"`
}

// BreakdownOf tallies percentages by band message and sets by satisfied key.
func BreakdownOf(percentages []int, sets []criteria.Set) Breakdown {
	b := Breakdown{
		ByBand:      make(map[string]int),
		ByCriterion: make(map[criteria.Key]int, len(criteria.Keys)),
	}
	for _, k := range criteria.Keys {
		b.ByCriterion[k] = 0
	}
	for _, p := range percentages {
		b.ByBand[criteria.BandFor(p).Message]++
	}
	for _, s := range sets {
		for _, k := range criteria.Keys {
			if s.Get(k) {
				b.ByCriterion[k]++
			}
		}
	}
	return b
}

// roundHalfUp matches criteria.Percentage: inputs here are never negative, so
// math.Round's half-away-from-zero is half-up.
func roundHalfUp(v float64) int {
	return int(math.Round(v))
}

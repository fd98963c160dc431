package api

import (
	"time"

	"github.com/kalambet/think/internal/criteria"
	"github.com/kalambet/think/internal/evaluation"
	"github.com/kalambet/think/internal/progression"
	"github.com/kalambet/think/internal/retention"
	"github.com/kalambet/think/internal/stats"
)

// EvaluationView is an evaluation as returned by the API.
type EvaluationView struct {
	evaluation.Evaluation
	Band        criteria.Band `json:"band"`
	DeletableAt time.Time     `json:"deletable_at"`
}

func newEvaluationView(e evaluation.Evaluation) EvaluationView {
	return EvaluationView{
		Evaluation:  e,
		Band:        e.Band(),
		DeletableAt: retention.DeletableAt(e.Timestamp),
	}
}

func newEvaluationViews(list []evaluation.Evaluation) []EvaluationView {
	out := make([]EvaluationView, len(list))
	for i, e := range list {
		out[i] = newEvaluationView(e)
	}
	return out
}

// ScoreView is the verdict for a criteria set without saving it.
type ScoreView struct {
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
	Message    string `json:"message"`
}

func newScoreView(c criteria.Set) ScoreView {
	p := criteria.Score(c)
	b := criteria.BandFor(p)
	return ScoreView{Percentage: p, Color: b.Color, Message: b.Message}
}

// StatsView bundles every aggregate. Overall is null for an empty history.
type StatsView struct {
	Overall        *stats.OverallStats       `json:"overall"`
	KeepToYourself stats.KeepToYourselfStats `json:"keep_to_yourself"`
	Breakdown      stats.Breakdown           `json:"breakdown"`
}

func newStatsView(s *evaluation.Store) StatsView {
	v := StatsView{
		KeepToYourself: s.KeepToYourselfStats(),
		Breakdown:      s.Breakdown(),
	}
	if o, ok := s.OverallStats(); ok {
		v.Overall = &o
	}
	return v
}

// TierView reports one unlockable tier against the current streak.
type TierView struct {
	progression.Tier
	Unlocked  bool `json:"unlocked"`
	DaysUntil int  `json:"days_until"`
}

// ProgressionView is the streak state plus tier status.
type ProgressionView struct {
	StartDate       *time.Time `json:"start_date"`
	ConsecutiveDays int        `json:"consecutive_days"`
	LastActiveDate  *time.Time `json:"last_active_date"`
	PleaseUnlocked  bool       `json:"please_unlocked"`
	ReallyUnlocked  bool       `json:"really_unlocked"`
	Tiers           []TierView `json:"tiers"`
}

func newProgressionView(st progression.State) ProgressionView {
	v := ProgressionView{
		ConsecutiveDays: st.ConsecutiveDays,
		LastActiveDate:  st.LastActiveDate,
		PleaseUnlocked:  st.PleaseUnlocked,
		ReallyUnlocked:  st.ReallyUnlocked,
	}
	if !st.StartDate.IsZero() {
		start := st.StartDate
		v.StartDate = &start
	}
	for _, t := range progression.Tiers() {
		v.Tiers = append(v.Tiers, TierView{
			Tier:      t,
			Unlocked:  st.IsUnlocked(t),
			DaysUntil: st.DaysUntil(t),
		})
	}
	return v
}

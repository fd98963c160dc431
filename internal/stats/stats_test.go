package stats

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/think/internal/criteria"
)

func repeat(p, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func TestOverall_Empty(t *testing.T) {
	if _, ok := Overall(nil); ok {
		t.Error("Overall(nil) ok = true, want false")
	}
}

func TestOverall_AllZero(t *testing.T) {
	got, ok := Overall([]int{0, 0})
	if !ok {
		t.Fatal("Overall of zeros reported empty")
	}
	want := OverallStats{Total: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Overall mismatch (-want +got):\n%s", diff)
	}
}

func TestOverall_Rounding(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want OverallStats
	}{
		{"single perfect", []int{100}, OverallStats{Total: 1, AvgPercentage: 100, PerfectCount: 1, PerfectRate: 100}},
		// mean 50, one of three perfect -> 33.33 rounds down.
		{"thirds", []int{100, 40, 10}, OverallStats{Total: 3, AvgPercentage: 50, PerfectCount: 1, PerfectRate: 33}},
		// mean 70, two of three perfect -> 66.67 rounds up.
		{"two thirds", []int{100, 100, 10}, OverallStats{Total: 3, AvgPercentage: 70, PerfectCount: 2, PerfectRate: 67}},
		// mean 50.5 rounds half up.
		{"half", []int{100, 1}, OverallStats{Total: 2, AvgPercentage: 51, PerfectCount: 1, PerfectRate: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Overall(tt.in)
			if !ok {
				t.Fatal("ok = false")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Overall(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestKeepToYourself_Empty(t *testing.T) {
	want := KeepToYourselfStats{TotalKeepToYourself: 0, OverallScore: 100, RecentTrend: Stable}
	if diff := cmp.Diff(want, KeepToYourself(nil)); diff != "" {
		t.Errorf("KeepToYourself(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestKeepToYourself_Trend(t *testing.T) {
	tests := []struct {
		name      string
		in        []int
		wantTotal int
		wantScore int
		wantTrend Trend
	}{
		{
			name:      "recent all zero is declining",
			in:        append(repeat(0, 5), repeat(100, 5)...),
			wantTotal: 5, wantScore: 50, wantTrend: Declining,
		},
		{
			name:      "older all zero is improving",
			in:        append(repeat(100, 5), repeat(0, 5)...),
			wantTotal: 5, wantScore: 50, wantTrend: Improving,
		},
		{
			name:      "no zeros is stable",
			in:        repeat(60, 8),
			wantTotal: 0, wantScore: 100, wantTrend: Stable,
		},
		{
			// recent [0] rate 1.0 vs older [0,100] rate 0.5.
			name:      "odd length puts extra record in older half",
			in:        []int{0, 0, 100},
			wantTotal: 2, wantScore: 33, wantTrend: Declining,
		},
		{
			// single record: recent half empty (rate 0), older rate 1.
			name:      "single zero",
			in:        []int{0},
			wantTotal: 1, wantScore: 0, wantTrend: Improving,
		},
		{
			// recent 1/3 vs older 1/4: inside the margin.
			name:      "small difference is stable",
			in:        []int{0, 20, 20, 0, 40, 40, 40},
			wantTotal: 2, wantScore: 71, wantTrend: Stable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeepToYourself(tt.in)
			if got.TotalKeepToYourself != tt.wantTotal {
				t.Errorf("TotalKeepToYourself = %d, want %d", got.TotalKeepToYourself, tt.wantTotal)
			}
			if got.OverallScore != tt.wantScore {
				t.Errorf("OverallScore = %d, want %d", got.OverallScore, tt.wantScore)
			}
			if got.RecentTrend != tt.wantTrend {
				t.Errorf("RecentTrend = %q, want %q", got.RecentTrend, tt.wantTrend)
			}
		})
	}
}

func TestBreakdownOf(t *testing.T) {
	sets := []criteria.Set{
		{True: true, Kind: true},
		{True: true},
		{},
	}
	ps := []int{40, 20, 0}
	got := BreakdownOf(ps, sets)

	wantBand := map[string]int{
		"Think twice":              1,
		"Probably best not to say": 1,
		criteria.KeepToYourself:    1,
	}
	if diff := cmp.Diff(wantBand, got.ByBand); diff != "" {
		t.Errorf("ByBand mismatch (-want +got):\n%s", diff)
	}
	wantCrit := map[criteria.Key]int{
		criteria.True: 2, criteria.Helpful: 0, criteria.Important: 0,
		criteria.Necessary: 0, criteria.Kind: 1,
	}
	if diff := cmp.Diff(wantCrit, got.ByCriterion); diff != "" {
		t.Errorf("ByCriterion mismatch (-want +got):\n%s", diff)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/think/internal/api"
	"github.com/kalambet/think/internal/criteria"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// percentColor maps a score onto the terminal palette.
func percentColor(p int) string {
	switch {
	case p >= 80:
		return colorGreen
	case p >= 40:
		return colorYellow
	default:
		return colorRed
	}
}

func formatPercent(p int) string {
	return colorize(percentColor(p), fmt.Sprintf("%3d%%", p))
}

func formatVerdict(percentage int, message string) string {
	return formatPercent(percentage) + "  " + message
}

// formatChecks renders the five criteria as initials, dimming unmet ones.
func formatChecks(c criteria.Set) string {
	parts := make([]string, 0, len(criteria.Keys))
	for _, k := range criteria.Keys {
		initial := criteria.Label(k)[:1]
		if c.Get(k) {
			parts = append(parts, colorize(colorGreen, initial))
		} else {
			parts = append(parts, colorize(colorDim, "·"))
		}
	}
	return strings.Join(parts, "")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderEvaluation(w io.Writer, v api.EvaluationView) {
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, "Verdict:"), formatVerdict(v.Percentage, v.Band.Message))
	for _, k := range criteria.Keys {
		mark := colorize(colorRed, "✗")
		if v.Criteria.Get(k) {
			mark = colorize(colorGreen, "✓")
		}
		fmt.Fprintf(w, "  %s %s\n", mark, criteria.Label(k))
	}
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, "ID:"), v.ID)
}

func renderHistory(w io.Writer, list []api.EvaluationView) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No evaluations yet.")
		return
	}
	for _, v := range list {
		lock := " "
		if !v.CanDelete {
			lock = "🔒"
		}
		fmt.Fprintf(w, "%s %s  %s  %s  %s  %s\n",
			lock,
			colorize(colorCyan, shortID(v.ID)),
			v.Timestamp.Local().Format("2006-01-02 15:04"),
			formatChecks(v.Criteria),
			formatPercent(v.Percentage),
			truncate(v.Text, 50),
		)
	}
}

func renderStats(w io.Writer, s api.StatsView) {
	if s.Overall == nil {
		fmt.Fprintln(w, "No evaluations yet.")
	} else {
		fmt.Fprintf(w, "%s %d\n", colorize(colorBold, "Evaluations:"), s.Overall.Total)
		fmt.Fprintf(w, "%s %d%%\n", colorize(colorBold, "Average score:"), s.Overall.AvgPercentage)
		fmt.Fprintf(w, "%s %d (%d%%)\n", colorize(colorBold, "Perfect:"), s.Overall.PerfectCount, s.Overall.PerfectRate)
	}

	k := s.KeepToYourself
	fmt.Fprintf(w, "%s %d%% (%d kept to yourself, trend %s)\n",
		colorize(colorBold, "Keep-to-yourself score:"), k.OverallScore, k.TotalKeepToYourself, k.RecentTrend)

	if s.Overall == nil {
		return
	}
	fmt.Fprintln(w, colorize(colorBold, "Criteria met:"))
	for _, key := range criteria.Keys {
		fmt.Fprintf(w, "  %-10s %d/%d\n", criteria.Label(key), s.Breakdown.ByCriterion[key], s.Overall.Total)
	}
}

func renderProgression(w io.Writer, p api.ProgressionView) {
	days := "days"
	if p.ConsecutiveDays == 1 {
		days = "day"
	}
	fmt.Fprintf(w, "%s %d %s\n", colorize(colorBold, "Streak:"), p.ConsecutiveDays, days)
	if p.LastActiveDate != nil {
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Last active:"), p.LastActiveDate.Local().Format("2006-01-02"))
	}
	for _, t := range p.Tiers {
		if t.Unlocked {
			fmt.Fprintf(w, "  %s %s unlocked\n", colorize(colorGreen, "✓"), t.Name)
		} else {
			fmt.Fprintf(w, "  %s %s in %d days\n", colorize(colorDim, "○"), t.Name, t.DaysUntil)
		}
	}
}

package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"asci-dashboard/internal/api"
)

const barGlyph = "█"

// bar scales value against maxValue into at most width glyphs. Any positive
// value gets at least one glyph.
func bar(value, maxValue float64, width int) string {
	if width <= 0 || maxValue <= 0 || value <= 0 {
		return ""
	}
	n := int(math.Round(value / maxValue * float64(width)))
	n = min(max(n, 1), width)
	return strings.Repeat(barGlyph, n)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func ratioPercent(v float64) string {
	return percent(v * 100)
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func decimal(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

// distribution renders one labelled bar per class.
func distribution(counts map[string]int, width int) []string {
	labels := api.OrderedLabels(counts)
	peak, labelWidth := 0, 0
	for _, label := range labels {
		peak = max(peak, counts[label])
		labelWidth = max(labelWidth, len(label))
	}
	lines := make([]string, 0, len(labels))
	for _, label := range labels {
		lines = append(lines, fmt.Sprintf("%-*s %8s %s", labelWidth, label, count(counts[label]), bar(float64(counts[label]), float64(peak), width)))
	}
	return lines
}

func importanceBars(items []api.FeatureImpact, width int) []string {
	peak, labelWidth := 0.0, 0
	for _, item := range items {
		peak = math.Max(peak, item.Importance)
		labelWidth = max(labelWidth, len(item.Feature))
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%-*s %.4f %s", labelWidth, item.Feature, item.Importance, bar(item.Importance, peak, width)))
	}
	return lines
}

type distanceGroup struct {
	label          string
	samples        int
	meanDistance   float64
	meanComplexity float64
}

// distanceGroups averages the scatter samples per class, risk classes first.
// Samples without a label are grouped under "Unknown".
func distanceGroups(points []api.DistancePoint) []distanceGroup {
	sums := map[string]*distanceGroup{}
	for _, pt := range points {
		label := pt.Label
		if label == "" {
			label = "Unknown"
		}
		g, ok := sums[label]
		if !ok {
			g = &distanceGroup{label: label}
			sums[label] = g
		}
		g.samples++
		g.meanDistance += pt.DistanceKM
		g.meanComplexity += pt.ComplexityScore
	}
	out := make([]distanceGroup, 0, len(sums))
	for _, label := range api.OrderedLabels(sums) {
		g := *sums[label]
		g.meanDistance /= float64(g.samples)
		g.meanComplexity /= float64(g.samples)
		out = append(out, g)
	}
	return out
}

// trendValue reads a numeric column from a trend row, which arrives as
// untyped JSON.
func trendValue(row api.TrendPoint, key string) string {
	switch v := row[key].(type) {
	case float64:
		return count(int(math.Round(v)))
	case string:
		return v
	case nil:
		return "-"
	default:
		return fmt.Sprint(v)
	}
}

func anyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		if t == math.Trunc(t) {
			return count(int(t))
		}
		return decimal(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

package clamser

import (
	"fmt"
	"math"
	"strings"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

// BuildAnalysisNotes turns the two result tables into a compact
// human-readable analysis summary.
func BuildAnalysisNotes(summary *SummaryTable, hourly *HourlyTable, window oxymax.Window) string {
	if summary == nil || hourly == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Parameter: %s (%s)\n", summary.Parameter, summary.Parameter.Units())
	fmt.Fprintf(
		&b,
		"Window: %s to %s (%d day(s))\n",
		window.Start.Format("2006-01-02 15:04:05"),
		window.End.Format("2006-01-02 15:04:05"),
		window.SpanDays,
	)
	fmt.Fprintf(&b, "Cages: %d | Light cycle %02d:00-%02d:00\n\n", len(summary.Rows), LightStartHour, DarkStartHour)

	for _, row := range summary.Rows {
		subject := row.SubjectID
		if subject == "" {
			subject = "unmatched"
		}
		fmt.Fprintf(&b, "%s (subject %s):", row.CageID, subject)
		for _, col := range summary.Columns {
			fmt.Fprintf(&b, " %s=%s", col, formatCell(row.Values[col], summary.Parameter.Decimals()))
		}
		b.WriteString("\n")
	}

	peakHour, peakMean := -1, math.Inf(-1)
	for _, row := range hourly.Rows {
		if !math.IsNaN(row.Mean) && row.Mean > peakMean {
			peakMean = row.Mean
			peakHour = row.Hour
		}
	}
	if peakHour >= 0 {
		fmt.Fprintf(
			&b,
			"\nPeak cross-cage hourly mean %s at hour %d (%s cycle)\n",
			formatCell(peakMean, hourly.Parameter.Decimals()),
			peakHour,
			strings.ToLower(cycleName(peakHour >= LightStartHour && peakHour < DarkStartHour)),
		)
	}

	return b.String()
}

func formatCell(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

package oxymax

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData marks a file whose time span is shorter than the
// requested analysis window.
var ErrInsufficientData = errors.New("insufficient data for requested window")

// SelectWindow trims records to the most recent spanDays*24-hour window
// anchored at the latest observed timestamp, inclusive at both ends.
// When the file's full span is shorter than the requested window the
// error carries the measured hour count; a short window is never
// silently returned.
func SelectWindow(records []Record, spanDays int) ([]Record, Window, error) {
	if spanDays < 1 || spanDays > 3 {
		return nil, Window{}, fmt.Errorf("window span must be 1, 2 or 3 days, got %d", spanDays)
	}
	if len(records) == 0 {
		return nil, Window{}, ErrNoData
	}

	first := records[0].Timestamp
	last := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}

	totalHours := last.Sub(first).Hours()
	if needed := float64(spanDays) * 24; totalHours < needed {
		return nil, Window{}, fmt.Errorf("%w: file spans %.1f hours, need %.0f", ErrInsufficientData, totalHours, needed)
	}

	w := Window{
		Start:    last.Add(-time.Duration(spanDays) * 24 * time.Hour),
		End:      last,
		SpanDays: spanDays,
	}
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Timestamp.Before(w.Start) || r.Timestamp.After(w.End) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, w, nil
}

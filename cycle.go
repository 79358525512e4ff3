package clamser

import (
	"time"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

// Facility lighting schedule: lights on 07:00, off 19:00. Instrument
// timestamps are already in the facility's local light-cycle frame; no
// timezone or DST handling applies.
const (
	LightStartHour = 7
	DarkStartHour  = 19
)

// IsLight classifies a timestamp against the fixed light cycle. Hour 7
// is light, hours 6 and 19 are dark.
func IsLight(ts time.Time) bool {
	h := ts.Hour()
	return h >= LightStartHour && h < DarkStartHour
}

// HourOf returns the record's hour-of-day bucket (0-23).
func HourOf(r oxymax.Record) int {
	return r.Timestamp.Hour()
}

func cycleName(isLight bool) string {
	if isLight {
		return "Light"
	}
	return "Dark"
}

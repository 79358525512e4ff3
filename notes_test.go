package clamser

import (
	"strings"
	"testing"
	"time"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

func TestBuildAnalysisNotes(t *testing.T) {
	records := []oxymax.Record{
		rec(2, "CAGE 01", 10),
		rec(12, "CAGE 01", 90),
	}
	subjects := oxymax.SubjectMap{"CAGE 01": "M100"}
	summary, err := Summarize(records, VO2, subjects)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	hourly, err := HourlyPivot(records, VO2, subjects)
	if err != nil {
		t.Fatalf("HourlyPivot: %v", err)
	}
	window := oxymax.Window{
		Start:    time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC),
		End:      time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		SpanDays: 1,
	}

	notes := BuildAnalysisNotes(summary, hourly, window)
	for _, want := range []string{
		"Parameter: VO2 (ml/kg/hr)",
		"2024-02-29 12:00:00 to 2024-03-01 12:00:00 (1 day(s))",
		"CAGE 01 (subject M100)",
		"Peak cross-cage hourly mean 90.00 at hour 12 (light cycle)",
	} {
		if !strings.Contains(notes, want) {
			t.Fatalf("notes missing %q:\n%s", want, notes)
		}
	}
}

func TestBuildAnalysisNotesNilTables(t *testing.T) {
	if got := BuildAnalysisNotes(nil, nil, oxymax.Window{}); got != "" {
		t.Fatalf("expected empty notes, got %q", got)
	}
}

package oxymax

import (
	"fmt"
	"time"
)

// Record is one normalized observation extracted from the interleaved
// data block: a timestamp, a parameter value and the cage it came from.
// Records are immutable once produced.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	CageID    string    `json:"cage_id"`
}

// SubjectMap maps header-declared cage labels to lab-assigned subject IDs.
type SubjectMap map[string]string

// Subject returns the subject ID for a cage label, or "" when the header
// declared no subject for it.
func (m SubjectMap) Subject(cageID string) string {
	if m == nil {
		return ""
	}
	return m[cageID]
}

// Header holds everything learned from the section of an export that
// precedes the :DATA marker.
type Header struct {
	Subjects  SubjectMap
	DataStart int // line index of the first data row
}

// ParseResult is the normalized view of one export file.
type ParseResult struct {
	Subjects SubjectMap
	Records  []Record
	CageIDs  []string // ordinal order, CAGE 01..CAGE NN
	Warnings []string
}

// Window is the retained time span of an analysis, anchored at the
// latest observed timestamp.
type Window struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	SpanDays int       `json:"span_days"`
}

// CageLabel renders the canonical cage key for a 1-based column-pair
// ordinal. The same formatting is used for header-declared cage numbers
// after the instrument's 100 offset is removed, which is what makes the
// two labeling schemes comparable at all.
func CageLabel(ordinal int) string {
	return fmt.Sprintf("CAGE %02d", ordinal)
}

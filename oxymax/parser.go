// Package oxymax reads the semi-structured CSV export of a CLAMS/Oxymax
// metabolic monitoring instrument: a free-form header carrying per-cage
// subject metadata, a :DATA marker, and an interleaved data block of
// repeating (time, value) column pairs, one pair per physical cage.
package oxymax

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	fileMarker    = "PARAMETER File"
	dataMarker    = ":DATA"
	separatorRun  = "======="
	timeSubHeader = "TIME"
	noonSentinel  = "12:00:00"

	// The instrument numbers cages 101, 102, ... in header metadata.
	cageNumberOffset = 100

	// Rows between the :DATA marker and the first data row.
	dataHeaderSkip = 3
)

var (
	// ErrNotOxymax marks a file whose first line lacks the PARAMETER File marker.
	ErrNotOxymax = errors.New("not an oxymax parameter file")

	// ErrNoDataMarker marks a file with no :DATA marker; the data block
	// start is unknown and the file structure is not recognized.
	ErrNoDataMarker = errors.New("data marker not found")

	// ErrNoData marks a recognized file from which no valid records
	// survived extraction across any cage column.
	ErrNoData = errors.New("no valid data found")
)

// Exports are inconsistent between locales and firmware versions:
// day-first is always tried before month-first, so an ambiguous date
// such as 03/04/2024 resolves as day 3, month 4. Non-padded layouts
// accept zero-padded fields as well.
var timeLayouts = []string{
	"2/1/2006 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
}

// Parse reads a full export and returns the normalized record set
// together with the header-declared subject map.
func Parse(text string) (*ParseResult, error) {
	lines := splitLines(text)
	header, err := ParseHeader(lines)
	if err != nil {
		return nil, err
	}

	records, cageIDs := extract(lines, header.DataStart)
	if len(records) == 0 {
		return nil, ErrNoData
	}

	result := &ParseResult{
		Subjects: header.Subjects,
		Records:  records,
		CageIDs:  cageIDs,
	}
	if w := checkCageConsistency(cageIDs, header.Subjects); w != "" {
		result.Warnings = append(result.Warnings, w)
	}
	return result, nil
}

// ParseReader reads all of r and parses it as an Oxymax export.
func ParseReader(r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read oxymax export: %w", err)
	}
	return Parse(string(data))
}

// ParseHeader scans the pre-:DATA section. Lines containing "Group/Cage"
// carry a cage number in their last comma-separated field; a following
// "Subject ID" line pairs its last field with that cage. Scanning stops
// at the first :DATA marker, and the data block begins three lines after
// it.
func ParseHeader(lines []string) (*Header, error) {
	if len(lines) == 0 || !strings.Contains(lines[0], fileMarker) {
		return nil, ErrNotOxymax
	}

	header := &Header{Subjects: make(SubjectMap)}
	pendingCage := 0
	havePending := false
	markerSeen := false

	for i, line := range lines {
		if strings.Contains(line, dataMarker) {
			header.DataStart = i + dataHeaderSkip
			markerSeen = true
			break
		}
		switch {
		case strings.Contains(line, "Group/Cage"):
			if n, ok := trailingCageNumber(line); ok {
				pendingCage = n
				havePending = true
			}
		case strings.Contains(line, "Subject ID"):
			if !havePending {
				continue
			}
			subject := trailingField(line)
			if subject != "" {
				header.Subjects[CageLabel(pendingCage-cageNumberOffset)] = subject
			}
			havePending = false
		}
	}
	if !markerSeen {
		return nil, ErrNoDataMarker
	}
	return header, nil
}

// DetectParameter reports whether the named parameter appears anywhere
// in the pre-:DATA header text. Advisory only; a mismatch never blocks
// processing.
func DetectParameter(text, parameter string) bool {
	for _, line := range splitLines(text) {
		if strings.Contains(line, dataMarker) {
			return false
		}
		if strings.Contains(line, parameter) {
			return true
		}
	}
	return false
}

// extract walks the data block. Column 0 is an interval counter and is
// unused; columns 1.. form repeating (time, value) pairs in increasing
// cage-ordinal order. Sub-header rows, sentinel rows and malformed
// fields are skipped per pair without aborting the rest of the file.
func extract(lines []string, dataStart int) ([]Record, []string) {
	if dataStart < 0 || dataStart >= len(lines) {
		return nil, nil
	}

	records := make([]Record, 0, 4096)
	seen := make(map[int]struct{})

	for _, line := range lines[dataStart:] {
		if strings.TrimSpace(line) == "" || strings.Contains(line, separatorRun) {
			continue
		}
		fields := strings.Split(line, ",")
		for ordinal := 1; 2*ordinal < len(fields); ordinal++ {
			t := strings.TrimSpace(fields[2*ordinal-1])
			v := strings.TrimSpace(fields[2*ordinal])
			if t == "" || v == "" || t == timeSubHeader {
				continue
			}
			// Values at the instrument's placeholder timestamp are not
			// trustworthy readings and must be dropped outright.
			if strings.HasPrefix(t, noonSentinel) {
				continue
			}
			ts, ok := parseTimestamp(t)
			if !ok {
				continue
			}
			value, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			records = append(records, Record{
				Timestamp: ts,
				Value:     value,
				CageID:    CageLabel(ordinal),
			})
			seen[ordinal] = struct{}{}
		}
	}

	ordinals := make([]int, 0, len(seen))
	for o := range seen {
		ordinals = append(ordinals, o)
	}
	sort.Ints(ordinals)
	cageIDs := make([]string, 0, len(ordinals))
	for _, o := range ordinals {
		cageIDs = append(cageIDs, CageLabel(o))
	}
	return records, cageIDs
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// checkCageConsistency compares the ordinal cage labels observed in the
// data block against the header-declared ones. The two schemes coincide
// only when cage order in the data block matches header encounter order;
// when they diverge, subject attribution would silently misalign, so the
// divergence is surfaced instead.
func checkCageConsistency(cageIDs []string, subjects SubjectMap) string {
	if len(subjects) == 0 {
		return ""
	}
	missing := make([]string, 0)
	for _, id := range cageIDs {
		if _, ok := subjects[id]; !ok {
			missing = append(missing, id)
		}
	}
	extra := make([]string, 0)
	known := make(map[string]struct{}, len(cageIDs))
	for _, id := range cageIDs {
		known[id] = struct{}{}
	}
	for label := range subjects {
		if _, ok := known[label]; !ok {
			extra = append(extra, label)
		}
	}
	sort.Strings(extra)
	if len(missing) == 0 && len(extra) == 0 {
		return ""
	}
	parts := make([]string, 0, 2)
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("data cages without header metadata: %s", strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("header cages absent from data: %s", strings.Join(extra, ", ")))
	}
	return "cage labeling schemes disagree; subject attribution may be wrong (" + strings.Join(parts, "; ") + ")"
}

func trailingCageNumber(line string) (int, bool) {
	field := strings.TrimLeft(trailingField(line), "0")
	if field == "" {
		return 0, false
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return n, true
}

func trailingField(line string) string {
	fields := strings.Split(line, ",")
	return strings.TrimSpace(fields[len(fields)-1])
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

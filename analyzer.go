package clamser

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

// Activity summary column names. The light/dark prefix is the literal
// string rendering of the cycle boolean, matching the instrument
// software's historical export headers.
const (
	colDarkAvgActivity   = "False (Average Activity)"
	colLightAvgActivity  = "True (Average Activity)"
	colDarkPeakActivity  = "False (Peak Activity)"
	colLightPeakActivity = "True (Peak Activity)"
	colDarkTotalCounts   = "False (Total Counts)"
	colLightTotalCounts  = "True (Total Counts)"
	colDayAverage        = "24h Average"
	colDayTotalCounts    = "24h Total Counts"
)

// SummaryRow is one cage's light/dark/total summary. Which value columns
// are present depends on the parameter class.
type SummaryRow struct {
	CageID    string
	SubjectID string // "" when the cage label misses the subject map
	Values    map[string]float64
}

// SummaryTable is the cage-level result table of one analysis.
type SummaryTable struct {
	Parameter Parameter
	Columns   []string // ordered value columns, identifiers excluded
	Rows      []SummaryRow
}

// HourlyRow is one hour-of-day bucket of the hourly pivot.
type HourlyRow struct {
	Hour   int
	Values []float64 // one per cage column, NaN when the hour has no data
	Mean   float64
	SEM    float64
}

// HourlyTable pivots records by hour (dense 0-23) against cages, with
// row-wise Mean and SEM summary columns.
type HourlyTable struct {
	Parameter Parameter
	CageIDs   []string // underlying cage keys, ordinal order
	Columns   []string // display labels: subject ID when resolvable
	Rows      [24]HourlyRow
}

type cycleSplit struct {
	dark  []float64
	light []float64
	all   []float64
}

// Summarize produces the per-cage light/dark/total summary table. The
// column set branches on the parameter class; every branch resolves the
// Subject ID through the header-declared subject map.
func Summarize(records []oxymax.Record, p Parameter, subjects oxymax.SubjectMap) (*SummaryTable, error) {
	if len(records) == 0 {
		return nil, oxymax.ErrNoData
	}

	splits := make(map[string]*cycleSplit)
	for _, r := range records {
		s, ok := splits[r.CageID]
		if !ok {
			s = &cycleSplit{}
			splits[r.CageID] = s
		}
		if IsLight(r.Timestamp) {
			s.light = append(s.light, r.Value)
		} else {
			s.dark = append(s.dark, r.Value)
		}
		s.all = append(s.all, r.Value)
	}

	cages := make([]string, 0, len(splits))
	for cage := range splits {
		cages = append(cages, cage)
	}
	sort.Strings(cages)

	table := &SummaryTable{Parameter: p}
	switch p.Class() {
	case Activity:
		table.Columns = []string{
			colDarkAvgActivity, colLightAvgActivity,
			colDarkPeakActivity, colLightPeakActivity,
			colDarkTotalCounts, colLightTotalCounts,
			colDayAverage, colDayTotalCounts,
		}
	case Feed:
		table.Columns = []string{
			"Total Intake (Dark)", "Total Intake (Light)",
			"Average Rate (Dark)", "Average Rate (Light)",
			"Peak Rate (Dark)", "Peak Rate (Light)",
		}
	case Metabolic:
		table.Columns = []string{"Dark Average", "Light Average", "Total Average"}
	default:
		return nil, fmt.Errorf("unsupported parameter class for %s", p)
	}

	for _, cage := range cages {
		s := splits[cage]
		row := SummaryRow{
			CageID:    cage,
			SubjectID: subjects.Subject(cage),
			Values:    make(map[string]float64, len(table.Columns)),
		}
		switch p.Class() {
		case Activity:
			row.Values[colDarkAvgActivity] = meanOf(s.dark)
			row.Values[colLightAvgActivity] = meanOf(s.light)
			row.Values[colDarkPeakActivity] = maxOf(s.dark)
			row.Values[colLightPeakActivity] = maxOf(s.light)
			row.Values[colDarkTotalCounts] = sumOf(s.dark)
			row.Values[colLightTotalCounts] = sumOf(s.light)
			row.Values[colDayAverage] = meanOf(s.all)
			row.Values[colDayTotalCounts] = sumOf(s.all)
		case Feed:
			row.Values["Total Intake (Dark)"] = sumOf(s.dark)
			row.Values["Total Intake (Light)"] = sumOf(s.light)
			row.Values["Average Rate (Dark)"] = meanOf(s.dark)
			row.Values["Average Rate (Light)"] = meanOf(s.light)
			row.Values["Peak Rate (Dark)"] = maxOf(s.dark)
			row.Values["Peak Rate (Light)"] = maxOf(s.light)
		case Metabolic:
			dark := meanOf(s.dark)
			light := meanOf(s.light)
			row.Values["Dark Average"] = dark
			row.Values["Light Average"] = light
			// Unweighted mean of the two cycle means, not a duration
			// weighted 24h mean. The two differ whenever light and dark
			// sample counts differ; this form is the instrument
			// software's established behavior and is preserved exactly.
			row.Values["Total Average"] = (dark + light) / 2
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// HourlyPivot produces the dense hour-by-cage mean table with row-wise
// Mean and SEM columns. Cells, Mean and SEM are rounded per the
// parameter's rounding rule. Cage columns are renamed to subject IDs
// when the subject map resolves them.
func HourlyPivot(records []oxymax.Record, p Parameter, subjects oxymax.SubjectMap) (*HourlyTable, error) {
	if len(records) == 0 {
		return nil, oxymax.ErrNoData
	}

	byCage := make(map[string]map[int][]float64)
	for _, r := range records {
		hours, ok := byCage[r.CageID]
		if !ok {
			hours = make(map[int][]float64)
			byCage[r.CageID] = hours
		}
		h := HourOf(r)
		hours[h] = append(hours[h], r.Value)
	}

	cages := make([]string, 0, len(byCage))
	for cage := range byCage {
		cages = append(cages, cage)
	}
	sort.Strings(cages)

	table := &HourlyTable{Parameter: p, CageIDs: cages}
	for _, cage := range cages {
		label := subjects.Subject(cage)
		if label == "" {
			label = cage
		}
		table.Columns = append(table.Columns, label)
	}

	decimals := p.Decimals()
	for hour := 0; hour < 24; hour++ {
		row := HourlyRow{Hour: hour, Values: make([]float64, len(cages))}
		present := make([]float64, 0, len(cages))
		for i, cage := range cages {
			cell := roundTo(meanOf(byCage[cage][hour]), decimals)
			row.Values[i] = cell
			if !math.IsNaN(cell) {
				present = append(present, cell)
			}
		}
		row.Mean = roundTo(meanOf(present), decimals)
		// SEM divides by the cage column count, not the non-empty cell
		// count, matching the instrument software's row-wise pivot math.
		row.SEM = roundTo(sampleStdOf(present)/math.Sqrt(float64(len(cages))), decimals)
		table.Rows[hour] = row
	}
	return table, nil
}

func meanOf(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

func maxOf(values []float64) float64 {
	m, err := stats.Max(values)
	if err != nil {
		return math.NaN()
	}
	return m
}

func sumOf(values []float64) float64 {
	s, err := stats.Sum(values)
	if err != nil {
		return math.NaN()
	}
	return s
}

func sampleStdOf(values []float64) float64 {
	sd, err := stats.StandardDeviationSample(values)
	if err != nil {
		return math.NaN()
	}
	return sd
}

func roundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

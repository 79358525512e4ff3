// Package pipeline wires the parsing and aggregation stages into one
// parameterized run and writes the artifact bundle consumed by the
// dashboard layer.
package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ZaneKhartabill/clamser"
	"github.com/ZaneKhartabill/clamser/oxymax"
)

const timestampLayout = "2006-01-02 15:04:05"

type analysis struct {
	parsed     *oxymax.ParseResult
	window     oxymax.Window
	records    []oxymax.Record // windowed, original values
	aggregated []oxymax.Record // windowed, mass-adjusted when enabled
	summary    *clamser.SummaryTable
	hourly     *clamser.HourlyTable
	unadjusted []string
	warnings   []string
}

// Run executes the full pipeline for one export file and writes all
// artifacts into opts.OutDir.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.FilePath) == "" {
		return nil, fmt.Errorf("input file path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "parquet" {
		return nil, fmt.Errorf("unsupported format %q (expected csv|parquet)", format)
	}

	data, err := os.ReadFile(opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}

	param, err := clamser.ParseParameter(opts.Parameter)
	if err != nil {
		return nil, err
	}

	a, err := analyzeText(string(data), param, opts.WindowDays, opts.Normalize, opts.ReferenceMass, opts.LeanMass)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	recordsPath := filepath.Join(opts.OutDir, "records."+format)
	switch format {
	case "csv":
		if err := os.WriteFile(recordsPath, marshalRecordsCSV(a.records), 0o644); err != nil {
			return nil, fmt.Errorf("write records csv: %w", err)
		}
	case "parquet":
		pq, err := marshalRecordsParquet(a.records)
		if err != nil {
			return nil, fmt.Errorf("encode records parquet: %w", err)
		}
		if err := os.WriteFile(recordsPath, pq, 0o644); err != nil {
			return nil, fmt.Errorf("write records parquet: %w", err)
		}
	}

	summaryPath := filepath.Join(opts.OutDir, "summary.csv")
	if err := os.WriteFile(summaryPath, marshalSummaryCSV(a.summary), 0o644); err != nil {
		return nil, fmt.Errorf("write summary csv: %w", err)
	}

	hourlyPath := filepath.Join(opts.OutDir, "hourly.csv")
	if err := os.WriteFile(hourlyPath, marshalHourlyCSV(a.hourly), 0o644); err != nil {
		return nil, fmt.Errorf("write hourly csv: %w", err)
	}

	notesPath := filepath.Join(opts.OutDir, "analysis_notes.md")
	notes := clamser.BuildAnalysisNotes(a.summary, a.hourly, a.window)
	if err := os.WriteFile(notesPath, []byte(notes), 0o644); err != nil {
		return nil, fmt.Errorf("write analysis notes: %w", err)
	}

	manifest := buildManifest(opts.FilePath, data, param, a, opts.Normalize, opts.ReferenceMass)
	analysisPath := filepath.Join(opts.OutDir, "analysis.json")
	if err := writeJSON(analysisPath, manifest); err != nil {
		return nil, fmt.Errorf("write analysis.json: %w", err)
	}

	reportPath := ""
	if opts.XLSXReport {
		reportPath = filepath.Join(opts.OutDir, "report.xlsx")
		if err := writeXLSXReport(reportPath, a.summary, a.hourly); err != nil {
			return nil, fmt.Errorf("write xlsx report: %w", err)
		}
	}

	return &Result{
		OutputDir:    opts.OutDir,
		SummaryPath:  summaryPath,
		HourlyPath:   hourlyPath,
		RecordsPath:  recordsPath,
		AnalysisPath: analysisPath,
		NotesPath:    notesPath,
		ReportPath:   reportPath,
		Summary:      a.summary,
		Hourly:       a.hourly,
		Records:      a.records,
		Subjects:     a.parsed.Subjects,
		Window:       a.window,
		Warnings:     a.warnings,
	}, nil
}

// RunBytes executes the pipeline over in-memory data and returns every
// artifact as bytes. The record series is always CSV here; parquet
// output needs a file destination.
func RunBytes(opts BytesOptions) (*BytesResult, error) {
	if len(opts.Data) == 0 {
		return nil, fmt.Errorf("input data is required")
	}

	param, err := clamser.ParseParameter(opts.Parameter)
	if err != nil {
		return nil, err
	}

	a, err := analyzeText(string(opts.Data), param, opts.WindowDays, opts.Normalize, opts.ReferenceMass, opts.LeanMass)
	if err != nil {
		return nil, err
	}

	sourceName := opts.SourceFileName
	if sourceName == "" {
		sourceName = "export.csv"
	}
	manifest := buildManifest(sourceName, opts.Data, param, a, opts.Normalize, opts.ReferenceMass)
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal analysis.json: %w", err)
	}

	files := map[string][]byte{
		"records.csv":       marshalRecordsCSV(a.records),
		"summary.csv":       marshalSummaryCSV(a.summary),
		"hourly.csv":        marshalHourlyCSV(a.hourly),
		"analysis.json":     append(manifestJSON, '\n'),
		"analysis_notes.md": []byte(clamser.BuildAnalysisNotes(a.summary, a.hourly, a.window)),
	}
	if opts.XLSXReport {
		report, err := marshalXLSXReport(a.summary, a.hourly)
		if err != nil {
			return nil, fmt.Errorf("build xlsx report: %w", err)
		}
		files["report.xlsx"] = report
	}

	return &BytesResult{
		Files:    files,
		Summary:  a.summary,
		Hourly:   a.hourly,
		Records:  a.records,
		Subjects: a.parsed.Subjects,
		Window:   a.window,
		Warnings: a.warnings,
	}, nil
}

// analyzeText runs the stages in order: parse, advisory parameter check,
// window trim, optional lean-mass normalization, aggregation. Any stage
// error aborts the whole run; no partial tables escape.
func analyzeText(text string, param clamser.Parameter, windowDays int, normalize bool, referenceMass float64, leanMass map[string]float64) (*analysis, error) {
	parsed, err := oxymax.Parse(text)
	if err != nil {
		return nil, err
	}

	a := &analysis{parsed: parsed}
	a.warnings = append(a.warnings, parsed.Warnings...)
	if !oxymax.DetectParameter(text, string(param)) {
		a.warnings = append(a.warnings, fmt.Sprintf("parameter %s not found in file header; processing anyway", param))
	}

	a.records, a.window, err = oxymax.SelectWindow(parsed.Records, windowDays)
	if err != nil {
		return nil, err
	}

	a.aggregated = a.records
	if normalize {
		if !param.Normalizable() {
			a.warnings = append(a.warnings, fmt.Sprintf("lean-mass normalization ignored for %s", param))
		} else {
			if referenceMass == 0 {
				referenceMass = clamser.DefaultReferenceMassGrams
			}
			norm, err := clamser.NormalizeLeanMass(a.records, param, leanMass, referenceMass)
			if err != nil {
				return nil, err
			}
			a.aggregated = norm.Records
			a.unadjusted = norm.UnadjustedCages
			if len(norm.UnadjustedCages) > 0 {
				a.warnings = append(a.warnings, fmt.Sprintf(
					"no lean mass configured for %s; values left unadjusted",
					strings.Join(norm.UnadjustedCages, ", ")))
			}
		}
	}

	a.summary, err = clamser.Summarize(a.aggregated, param, parsed.Subjects)
	if err != nil {
		return nil, err
	}
	a.hourly, err = clamser.HourlyPivot(a.aggregated, param, parsed.Subjects)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func buildManifest(sourceFile string, data []byte, param clamser.Parameter, a *analysis, normalized bool, referenceMass float64) Manifest {
	sum := sha256.Sum256(data)
	if normalized && param.Normalizable() && referenceMass == 0 {
		referenceMass = clamser.DefaultReferenceMassGrams
	}
	return Manifest{
		FormatVersion:   ManifestFormatVersion,
		GeneratedAt:     time.Now().UTC(),
		SourceFile:      sourceFile,
		SourceSHA256:    hex.EncodeToString(sum[:]),
		SourceSizeBytes: int64(len(data)),
		Parameter:       string(param),
		Units:           param.Units(),
		Window:          a.window,
		CageIDs:         a.parsed.CageIDs,
		Subjects:        a.parsed.Subjects,
		RecordCount:     len(a.records),
		Normalized:      normalized && param.Normalizable(),
		ReferenceMass:   referenceMass,
		UnadjustedCages: a.unadjusted,
		Warnings:        a.warnings,
	}
}

func marshalRecordsCSV(records []oxymax.Record) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"timestamp", "cage_id", "value", "hour", "is_light"})
	for _, r := range records {
		_ = w.Write([]string{
			r.Timestamp.Format(timestampLayout),
			r.CageID,
			strconv.FormatFloat(r.Value, 'f', 6, 64),
			strconv.Itoa(clamser.HourOf(r)),
			strconv.FormatBool(clamser.IsLight(r.Timestamp)),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func marshalSummaryCSV(t *clamser.SummaryTable) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"Cage"}, t.Columns...)
	header = append(header, "Subject ID")
	_ = w.Write(header)

	decimals := t.Parameter.Decimals()
	for _, row := range t.Rows {
		fields := make([]string, 0, len(header))
		fields = append(fields, row.CageID)
		for _, col := range t.Columns {
			fields = append(fields, formatValue(row.Values[col], decimals))
		}
		fields = append(fields, row.SubjectID)
		_ = w.Write(fields)
	}
	w.Flush()
	return buf.Bytes()
}

func marshalHourlyCSV(t *clamser.HourlyTable) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"Hour"}, t.Columns...)
	header = append(header, "Mean", "SEM")
	_ = w.Write(header)

	decimals := t.Parameter.Decimals()
	for _, row := range t.Rows {
		fields := make([]string, 0, len(header))
		fields = append(fields, strconv.Itoa(row.Hour))
		for _, v := range row.Values {
			fields = append(fields, formatValue(v, decimals))
		}
		fields = append(fields, formatValue(row.Mean, decimals), formatValue(row.SEM, decimals))
		_ = w.Write(fields)
	}
	w.Flush()
	return buf.Bytes()
}

func formatValue(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

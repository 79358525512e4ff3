package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// buildExport assembles a two-cage export whose data spans the given
// number of hourly readings.
func buildExport(param string, hours int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PARAMETER File, %s\n", param)
	b.WriteString("Group/Cage,101\nSubject ID,M100\n")
	b.WriteString("Group/Cage,102\nSubject ID,M200\n")
	b.WriteString(":DATA\n\nINTERVAL,TIME,VALUE,TIME,VALUE\n")
	start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).Format("02/01/2006 03:04:05 PM")
		fmt.Fprintf(&b, "%d,%s,%.2f,%s,%.2f\n", i+1, ts, 100.0+float64(i), ts, 200.0+float64(i))
	}
	return b.String()
}

func TestRunWritesArtifactBundle(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "export.csv")
	if err := os.WriteFile(inPath, []byte(buildExport("VO2", 30)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	outDir := filepath.Join(dir, "out")
	result, err := Run(Options{
		FilePath:   inPath,
		OutDir:     outDir,
		Parameter:  "VO2",
		WindowDays: 1,
		Format:     "csv",
		XLSXReport: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, path := range []string{
		result.SummaryPath, result.HourlyPath, result.RecordsPath,
		result.AnalysisPath, result.NotesPath, result.ReportPath,
	} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("missing artifact %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("empty artifact %s", path)
		}
	}

	// Inclusive 24h window over hourly data keeps 25 readings per cage.
	if len(result.Records) != 50 {
		t.Fatalf("windowed records: got %d, want 50", len(result.Records))
	}

	summaryCSV, err := os.ReadFile(result.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(summaryCSV)), "\n")
	if lines[0] != "Cage,Dark Average,Light Average,Total Average,Subject ID" {
		t.Fatalf("summary header: %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("summary rows: got %d lines, want header plus 2 cages", len(lines))
	}
	if !strings.HasSuffix(lines[1], ",M100") {
		t.Fatalf("summary row lacks subject ID: %q", lines[1])
	}

	recordsCSV, err := os.ReadFile(result.RecordsPath)
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	recordLines := strings.Split(strings.TrimSpace(string(recordsCSV)), "\n")
	if recordLines[0] != "timestamp,cage_id,value,hour,is_light" {
		t.Fatalf("records header: %q", recordLines[0])
	}
	if len(recordLines) != 51 {
		t.Fatalf("records lines: got %d, want 51", len(recordLines))
	}

	var manifest Manifest
	manifestJSON, err := os.ReadFile(result.AnalysisPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.FormatVersion != ManifestFormatVersion {
		t.Fatalf("format version: %q", manifest.FormatVersion)
	}
	if manifest.Parameter != "VO2" || manifest.RecordCount != 50 {
		t.Fatalf("manifest: %+v", manifest)
	}
	if len(manifest.SourceSHA256) != 64 {
		t.Fatalf("source digest: %q", manifest.SourceSHA256)
	}
	if manifest.Subjects["CAGE 01"] != "M100" {
		t.Fatalf("manifest subjects: %v", manifest.Subjects)
	}
}

func TestRunParquetRecords(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "export.csv")
	if err := os.WriteFile(inPath, []byte(buildExport("VO2", 30)), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result, err := Run(Options{
		FilePath:   inPath,
		OutDir:     filepath.Join(dir, "out"),
		Parameter:  "VO2",
		WindowDays: 1,
		Format:     "parquet",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if filepath.Base(result.RecordsPath) != "records.parquet" {
		t.Fatalf("records path: %q", result.RecordsPath)
	}
	data, err := os.ReadFile(result.RecordsPath)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(data) < 8 || string(data[:4]) != "PAR1" {
		t.Fatalf("records.parquet lacks parquet magic")
	}
}

func TestRunRejectsUnknownFormat(t *testing.T) {
	if _, err := Run(Options{FilePath: "x", OutDir: "y", Parameter: "VO2", WindowDays: 1, Format: "jsonl"}); err == nil {
		t.Fatalf("unknown format accepted")
	}
}

func TestRunBytesProducesArtifactMap(t *testing.T) {
	result, err := RunBytes(BytesOptions{
		SourceFileName: "export.csv",
		Data:           []byte(buildExport("RER", 30)),
		Parameter:      "RER",
		WindowDays:     1,
		XLSXReport:     true,
	})
	if err != nil {
		t.Fatalf("RunBytes: %v", err)
	}
	for _, name := range []string{
		"records.csv", "summary.csv", "hourly.csv", "analysis.json", "analysis_notes.md", "report.xlsx",
	} {
		if len(result.Files[name]) == 0 {
			t.Fatalf("missing or empty artifact %q", name)
		}
	}
	if result.Window.SpanDays != 1 {
		t.Fatalf("window span: got %d", result.Window.SpanDays)
	}
	// RER values render at three decimals in the hourly table.
	hourly := string(result.Files["hourly.csv"])
	if !strings.Contains(hourly, ".000") {
		t.Fatalf("hourly table not rendered at RER precision:\n%s", hourly)
	}
}

func TestRunBytesParameterMismatchWarning(t *testing.T) {
	result, err := RunBytes(BytesOptions{
		Data:       []byte(buildExport("VO2", 30)),
		Parameter:  "HEAT",
		WindowDays: 1,
	})
	if err != nil {
		t.Fatalf("RunBytes: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "HEAT") && strings.Contains(w, "not found") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected advisory parameter warning, got %v", result.Warnings)
	}
}

func TestRunBytesNormalization(t *testing.T) {
	opts := BytesOptions{
		Data:       []byte(buildExport("VO2", 30)),
		Parameter:  "VO2",
		WindowDays: 1,
	}
	plain, err := RunBytes(opts)
	if err != nil {
		t.Fatalf("RunBytes: %v", err)
	}

	opts.Normalize = true
	opts.ReferenceMass = 20
	opts.LeanMass = map[string]float64{"CAGE 01": 25}
	normalized, err := RunBytes(opts)
	if err != nil {
		t.Fatalf("RunBytes normalized: %v", err)
	}

	// CAGE 01 is scaled by 20/25, CAGE 02 passes through unadjusted.
	plainDark := plain.Summary.Rows[0].Values["Dark Average"]
	normDark := normalized.Summary.Rows[0].Values["Dark Average"]
	if math.Abs(normDark-plainDark*0.8) > 1e-9 {
		t.Fatalf("normalized dark average: got %v, want %v", normDark, plainDark*0.8)
	}
	if normalized.Summary.Rows[1].Values["Dark Average"] != plain.Summary.Rows[1].Values["Dark Average"] {
		t.Fatalf("unconfigured cage was rescaled")
	}

	found := false
	for _, w := range normalized.Warnings {
		if strings.Contains(w, "CAGE 02") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unadjusted-cage warning, got %v", normalized.Warnings)
	}

	// Exported raw records keep original values.
	if normalized.Records[0].Value != plain.Records[0].Value {
		t.Fatalf("raw record series was rescaled")
	}
}

func TestRunBytesNormalizationRepeatable(t *testing.T) {
	opts := BytesOptions{
		Data:          []byte(buildExport("VO2", 30)),
		Parameter:     "VO2",
		WindowDays:    1,
		Normalize:     true,
		ReferenceMass: 20,
		LeanMass:      map[string]float64{"CAGE 01": 25, "CAGE 02": 18},
	}
	first, err := RunBytes(opts)
	if err != nil {
		t.Fatalf("RunBytes: %v", err)
	}
	second, err := RunBytes(opts)
	if err != nil {
		t.Fatalf("RunBytes again: %v", err)
	}
	// Adjustment derives from the raw series each run; re-running a
	// normalized analysis never compounds the scaling.
	for i, row := range first.Summary.Rows {
		for col, v := range row.Values {
			if second.Summary.Rows[i].Values[col] != v {
				t.Fatalf("summary %s %s differs across runs: %v vs %v", row.CageID, col, v, second.Summary.Rows[i].Values[col])
			}
		}
	}
	if string(first.Files["hourly.csv"]) != string(second.Files["hourly.csv"]) {
		t.Fatalf("hourly artifact differs across identical normalized runs")
	}
}

func TestRunBytesNormalizeIgnoredForRatio(t *testing.T) {
	result, err := RunBytes(BytesOptions{
		Data:       []byte(buildExport("RER", 30)),
		Parameter:  "RER",
		WindowDays: 1,
		Normalize:  true,
		LeanMass:   map[string]float64{"CAGE 01": 25},
	})
	if err != nil {
		t.Fatalf("RunBytes: %v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "normalization ignored") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ignored-normalization warning, got %v", result.Warnings)
	}
}

func TestRunBytesEmptyInput(t *testing.T) {
	if _, err := RunBytes(BytesOptions{Parameter: "VO2", WindowDays: 1}); err == nil {
		t.Fatalf("empty input accepted")
	}
}

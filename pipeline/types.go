package pipeline

import (
	"time"

	"github.com/ZaneKhartabill/clamser"
	"github.com/ZaneKhartabill/clamser/oxymax"
)

// Options configures the clams_analyze pipeline.
type Options struct {
	FilePath   string
	OutDir     string
	Parameter  string
	WindowDays int
	Format     string // csv|parquet for the record series

	Normalize     bool
	ReferenceMass float64 // defaults to clamser.DefaultReferenceMassGrams
	LeanMass      map[string]float64

	XLSXReport bool
}

// BytesOptions configures the in-memory pipeline variant.
type BytesOptions struct {
	SourceFileName string
	Data           []byte
	Parameter      string
	WindowDays     int

	Normalize     bool
	ReferenceMass float64
	LeanMass      map[string]float64

	XLSXReport bool
}

// Result returns the atomic analysis triple plus generated artifact
// paths. The three outputs (summary table, hourly table, record set) are
// produced together or not at all.
type Result struct {
	OutputDir    string `json:"output_dir"`
	SummaryPath  string `json:"summary_path"`
	HourlyPath   string `json:"hourly_path"`
	RecordsPath  string `json:"records_path"`
	AnalysisPath string `json:"analysis_path"`
	NotesPath    string `json:"notes_path"`
	ReportPath   string `json:"report_path,omitempty"`

	Summary  *clamser.SummaryTable `json:"-"`
	Hourly   *clamser.HourlyTable  `json:"-"`
	Records  []oxymax.Record       `json:"-"`
	Subjects oxymax.SubjectMap     `json:"-"`
	Window   oxymax.Window         `json:"window"`
	Warnings []string              `json:"warnings,omitempty"`
}

// BytesResult holds artifacts keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Summary  *clamser.SummaryTable
	Hourly   *clamser.HourlyTable
	Records  []oxymax.Record
	Subjects oxymax.SubjectMap
	Window   oxymax.Window
	Warnings []string
}

// Manifest is the analysis.json artifact: enough metadata to audit which
// file, window and configuration produced the result tables.
type Manifest struct {
	FormatVersion   string            `json:"format_version"`
	GeneratedAt     time.Time         `json:"generated_at"`
	SourceFile      string            `json:"source_file"`
	SourceSHA256    string            `json:"source_sha256"`
	SourceSizeBytes int64             `json:"source_size_bytes"`
	Parameter       string            `json:"parameter"`
	Units           string            `json:"units"`
	Window          oxymax.Window     `json:"window"`
	CageIDs         []string          `json:"cage_ids"`
	Subjects        map[string]string `json:"subjects,omitempty"`
	RecordCount     int               `json:"record_count"`
	Normalized      bool              `json:"normalized"`
	ReferenceMass   float64           `json:"reference_mass,omitempty"`
	UnadjustedCages []string          `json:"unadjusted_cages,omitempty"`
	Warnings        []string          `json:"warnings,omitempty"`
}

// ManifestFormatVersion identifies the analysis.json schema.
const ManifestFormatVersion = "clams_analysis_v1"

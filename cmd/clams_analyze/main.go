package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ZaneKhartabill/clamser"
	"github.com/ZaneKhartabill/clamser/pipeline"
)

func main() {
	var (
		filePath  = flag.String("file", "", "Path to Oxymax export file")
		outDir    = flag.String("out", "", "Output directory")
		parameter = flag.String("parameter", "VO2", "Metabolic parameter: VO2|VCO2|RER|HEAT|XTOT|XAMB|FEED")
		days      = flag.Int("days", 1, "Analysis window in days ending at the last reading (1-3)")
		format    = flag.String("format", "csv", "Record series format: csv|parquet")
		normalize = flag.Bool("normalize", false, "Scale values by reference mass over lean mass")
		refMass   = flag.Float64("refmass", clamser.DefaultReferenceMassGrams, "Reference lean mass in grams")
		leanMass  = flag.String("leanmass", "", "Per-cage lean masses, e.g. \"CAGE 01=23.5,CAGE 02=26.1\"")
		xlsx      = flag.Bool("xlsx", false, "Also write report.xlsx")
		zscore    = flag.Float64("zscore", clamser.DefaultZThreshold, "Z-score threshold for the outlier report")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --file export.csv --out outdir [--parameter VO2] [--days 1] [--format csv|parquet] [--normalize --leanmass \"CAGE 01=23.5\"]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	masses, err := parseLeanMasses(*leanMass)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clams_analyze failed: %v\n", err)
		os.Exit(1)
	}

	result, err := pipeline.Run(pipeline.Options{
		FilePath:      *filePath,
		OutDir:        *outDir,
		Parameter:     *parameter,
		WindowDays:    *days,
		Format:        *format,
		Normalize:     *normalize,
		ReferenceMass: *refMass,
		LeanMass:      masses,
		XLSXReport:    *xlsx,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clams_analyze failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("clams_analyze complete\n")
	fmt.Printf("Output dir:       %s\n", result.OutputDir)
	fmt.Printf("summary:          %s\n", result.SummaryPath)
	fmt.Printf("hourly:           %s\n", result.HourlyPath)
	fmt.Printf("records:          %s\n", result.RecordsPath)
	fmt.Printf("analysis.json:    %s\n", result.AnalysisPath)
	fmt.Printf("analysis notes:   %s\n", result.NotesPath)
	if result.ReportPath != "" {
		fmt.Printf("xlsx report:      %s\n", result.ReportPath)
	}
	fmt.Printf("window:           %s to %s (%d day(s))\n",
		result.Window.Start.Format("2006-01-02 15:04:05"),
		result.Window.End.Format("2006-01-02 15:04:05"),
		result.Window.SpanDays)
	fmt.Printf("cages:            %d, records: %d\n", len(result.Hourly.CageIDs), len(result.Records))

	if n := countFlags(result.Hourly.Outliers(*zscore)); n > 0 {
		fmt.Printf("outliers:         %d hourly cell(s) beyond %.1f SD of their cage column\n", n, *zscore)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning:          %s\n", w)
	}
}

// parseLeanMasses parses "CAGE 01=23.5,CAGE 02=26.1". Keys pass through
// verbatim; the pipeline matches them against record cage labels.
func parseLeanMasses(s string) (map[string]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	masses := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("malformed lean mass entry %q (expected CAGE=grams)", part)
		}
		grams, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed lean mass value in %q: %w", part, err)
		}
		masses[strings.TrimSpace(key)] = grams
	}
	return masses, nil
}

func countFlags(mask [][]bool) int {
	n := 0
	for _, row := range mask {
		for _, flagged := range row {
			if flagged {
				n++
			}
		}
	}
	return n
}

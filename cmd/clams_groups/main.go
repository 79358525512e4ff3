package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaneKhartabill/clamser"
	"github.com/ZaneKhartabill/clamser/oxymax"
)

func main() {
	var (
		filePath   = flag.String("file", "", "Path to Oxymax export file")
		groupsPath = flag.String("groups", "", "Path to assignment CSV: group,cage,subject per line")
		parameter  = flag.String("parameter", "VO2", "Metabolic parameter: VO2|VCO2|RER|HEAT|XTOT|XAMB|FEED")
		days       = flag.Int("days", 1, "Analysis window in days ending at the last reading (1-3)")
		cycle      = flag.String("cycle", "all", "Cycle filter: all|light|dark")
		hourly     = flag.Bool("hourly", false, "Also print each group's 24-hour profile")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --file export.csv --groups assignments.csv [--parameter VO2] [--days 1] [--cycle all|light|dark] [--hourly]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" || strings.TrimSpace(*groupsPath) == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*filePath, *groupsPath, *parameter, *days, *cycle, *hourly); err != nil {
		fmt.Fprintf(os.Stderr, "clams_groups failed: %v\n", err)
		os.Exit(1)
	}
}

func run(filePath, groupsPath, parameter string, days int, cycle string, hourly bool) error {
	param, err := clamser.ParseParameter(parameter)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read export file: %w", err)
	}
	parsed, err := oxymax.Parse(string(data))
	if err != nil {
		return err
	}
	records, window, err := oxymax.SelectWindow(parsed.Records, days)
	if err != nil {
		return err
	}

	assignments, err := loadAssignments(groupsPath)
	if err != nil {
		return err
	}

	result, err := clamser.AnalyzeGroups(records, assignments, clamser.GroupOptions{
		Cycle: clamser.CycleFilter(strings.ToLower(cycle)),
	})
	if err != nil {
		return err
	}

	fmt.Printf("clams_groups: %s (%s), %d day window ending %s, cycle=%s\n",
		param, param.Units(), window.SpanDays,
		window.End.Format("2006-01-02 15:04:05"), result.Cycle)
	if result.DroppedRecords > 0 {
		fmt.Printf("dropped %d reading(s) with no group assignment\n", result.DroppedRecords)
	}
	if len(result.UnassignedCages) > 0 {
		fmt.Printf("unassigned cages: %s\n", strings.Join(result.UnassignedCages, ", "))
	}

	for _, g := range result.Groups {
		fmt.Printf("\n%s (n=%d)\n", g.Group, g.N)
		fmt.Printf("  mean %.4f  sd %.4f  sem %.4f", g.Mean, g.SD, g.SEM)
		if g.N >= 2 {
			fmt.Printf("  95%% CI [%.4f, %.4f]", g.CILow, g.CIHigh)
		}
		fmt.Println()
		for _, s := range g.Subjects {
			fmt.Printf("  %-10s %-12s %.4f over %d reading(s)\n", s.CageID, s.SubjectID, s.Mean, s.Readings)
		}
		if hourly {
			fmt.Printf("  hourly profile:\n")
			for h, m := range g.Hourly {
				if math.IsNaN(m) {
					fmt.Printf("    %02d:00  -\n", h)
					continue
				}
				fmt.Printf("    %02d:00  %.4f\n", h, m)
			}
		}
	}

	fmt.Println()
	switch {
	case result.Test != nil && result.Test.Method == "welch_t":
		fmt.Printf("Welch t-test: t=%.4f df=%.2f p=%.4g\n",
			result.Test.Statistic, result.Test.DF, result.Test.PValue)
	case result.Test != nil:
		fmt.Printf("One-way ANOVA: F=%.4f df=(%.0f, %.0f) p=%.4g\n",
			result.Test.Statistic, result.Test.DF, result.Test.DF2, result.Test.PValue)
	default:
		fmt.Printf("significance test skipped: %s\n", result.SkippedReason)
	}
	return nil
}

// loadAssignments reads a group,cage,subject CSV. A header line is
// recognized by a first field of "group" (case-insensitive) and skipped.
// The subject column is optional.
func loadAssignments(path string) ([]clamser.GroupAssignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read assignment file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse assignment file: %w", err)
	}

	var assignments []clamser.GroupAssignment
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("assignment line %d: need at least group,cage", i+1)
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "group") {
			continue
		}
		a := clamser.GroupAssignment{
			Group:  strings.TrimSpace(row[0]),
			CageID: strings.TrimSpace(row[1]),
		}
		if len(row) > 2 {
			a.SubjectID = strings.TrimSpace(row[2])
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

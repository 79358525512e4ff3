package clamser

import (
	"math"
	"testing"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

func TestOutlierMaskFlagsColumnLocalSpike(t *testing.T) {
	// Ten near-identical values and one spike: the spike's z-score is
	// well past 2 against its own column.
	column := []float64{10, 10.1, 9.9, 10, 10.05, 9.95, 10, 10.1, 9.9, 10, 50}
	mask := OutlierMask([][]float64{column}, DefaultZThreshold)
	for i := 0; i < 10; i++ {
		if mask[0][i] {
			t.Fatalf("baseline value at %d flagged", i)
		}
	}
	if !mask[0][10] {
		t.Fatalf("spike not flagged")
	}
}

func TestOutlierMaskColumnsAreIndependent(t *testing.T) {
	// 30 is a spike within column 0 but an ordinary value in column 1.
	col0 := []float64{10, 10, 10.1, 9.9, 10, 10.05, 9.95, 10.1, 9.9, 10, 30}
	col1 := []float64{25, 30, 28, 32, 27, 30, 29, 31, 26, 33, 30}
	mask := OutlierMask([][]float64{col0, col1}, DefaultZThreshold)
	if !mask[0][10] {
		t.Fatalf("spike in column 0 not flagged")
	}
	for i, flagged := range mask[1] {
		if flagged {
			t.Fatalf("column 1 value at %d flagged despite ordinary spread", i)
		}
	}
}

func TestOutlierMaskConstantColumn(t *testing.T) {
	mask := OutlierMask([][]float64{{5, 5, 5, 5}}, DefaultZThreshold)
	for i, flagged := range mask[0] {
		if flagged {
			t.Fatalf("constant column flagged at %d", i)
		}
	}
}

func TestOutlierMaskSkipsNaN(t *testing.T) {
	column := []float64{10, math.NaN(), 10.1, 9.9, 10, 10.05, 9.95, 10, 10.1, 9.9, 50}
	mask := OutlierMask([][]float64{column}, DefaultZThreshold)
	if mask[0][1] {
		t.Fatalf("NaN cell flagged")
	}
	if !mask[0][10] {
		t.Fatalf("spike not flagged with NaN present")
	}
}

func TestHourlyTableOutliers(t *testing.T) {
	records := make([]oxymax.Record, 0, 24)
	for h := 0; h < 24; h++ {
		v := 10.0
		if h == 12 {
			v = 100.0
		}
		records = append(records, rec(h, "CAGE 01", v))
	}
	table, err := HourlyPivot(records, VO2, nil)
	if err != nil {
		t.Fatalf("HourlyPivot: %v", err)
	}
	mask := table.Outliers(DefaultZThreshold)
	if !mask[12][0] {
		t.Fatalf("spiked hour not flagged")
	}
	if mask[0][0] {
		t.Fatalf("baseline hour flagged")
	}
}

func TestSummaryTableOutliers(t *testing.T) {
	records := make([]oxymax.Record, 0)
	for i := 1; i <= 8; i++ {
		cage := oxymax.CageLabel(i)
		v := 10.0
		if i == 8 {
			v = 200.0
		}
		records = append(records, rec(2, cage, v), rec(12, cage, v))
	}
	table, err := Summarize(records, VO2, nil)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	mask := table.Outliers(DefaultZThreshold)
	for c := range table.Columns {
		if !mask[7][c] {
			t.Fatalf("outlier cage not flagged in column %q", table.Columns[c])
		}
		if mask[0][c] {
			t.Fatalf("baseline cage flagged in column %q", table.Columns[c])
		}
	}
}

package clamser

import "math"

// DefaultZThreshold is the z-score above which a value is flagged.
const DefaultZThreshold = 2.0

// OutlierMask flags values whose z-score against their own column's
// distribution exceeds threshold. Each column is its own reference; no
// cross-column or cross-table pooling. NaN cells are never flagged. The
// returned mask has the same shape as the input and the input is not
// mutated.
func OutlierMask(columns [][]float64, threshold float64) [][]bool {
	mask := make([][]bool, len(columns))
	for c, column := range columns {
		mask[c] = make([]bool, len(column))
		present := make([]float64, 0, len(column))
		for _, v := range column {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		mean := meanOf(present)
		sd := sampleStdOf(present)
		if math.IsNaN(sd) || sd == 0 {
			continue
		}
		for i, v := range column {
			if math.IsNaN(v) {
				continue
			}
			mask[c][i] = math.Abs(v-mean)/sd > threshold
		}
	}
	return mask
}

// Outliers flags hourly pivot cells per cage column. The hour index and
// the derived Mean and SEM columns are excluded from detection. The mask
// is indexed [hour][cage column].
func (t *HourlyTable) Outliers(threshold float64) [][]bool {
	columns := make([][]float64, len(t.CageIDs))
	for c := range t.CageIDs {
		columns[c] = make([]float64, len(t.Rows))
		for h := range t.Rows {
			columns[c][h] = t.Rows[h].Values[c]
		}
	}
	byColumn := OutlierMask(columns, threshold)

	mask := make([][]bool, len(t.Rows))
	for h := range t.Rows {
		mask[h] = make([]bool, len(t.CageIDs))
		for c := range t.CageIDs {
			mask[h][c] = byColumn[c][h]
		}
	}
	return mask
}

// Outliers flags summary cells per value column, leaving the cage and
// subject identifier columns untouched. The mask is indexed
// [row][column] following the table's column order.
func (t *SummaryTable) Outliers(threshold float64) [][]bool {
	columns := make([][]float64, len(t.Columns))
	for c, name := range t.Columns {
		columns[c] = make([]float64, len(t.Rows))
		for r, row := range t.Rows {
			v, ok := row.Values[name]
			if !ok {
				v = math.NaN()
			}
			columns[c][r] = v
		}
	}
	byColumn := OutlierMask(columns, threshold)

	mask := make([][]bool, len(t.Rows))
	for r := range t.Rows {
		mask[r] = make([]bool, len(t.Columns))
		for c := range t.Columns {
			mask[r][c] = byColumn[c][r]
		}
	}
	return mask
}

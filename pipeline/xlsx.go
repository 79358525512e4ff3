package pipeline

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ZaneKhartabill/clamser"
)

const (
	summarySheet = "Summary"
	hourlySheet  = "Hourly"
)

// marshalXLSXReport renders the summary and hourly tables as one
// workbook with a line chart of the hourly mean.
func marshalXLSXReport(summary *clamser.SummaryTable, hourly *clamser.HourlyTable) ([]byte, error) {
	f, err := buildXLSXReport(summary, hourly)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXLSXReport(path string, summary *clamser.SummaryTable, hourly *clamser.HourlyTable) error {
	f, err := buildXLSXReport(summary, hourly)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func buildXLSXReport(summary *clamser.SummaryTable, hourly *clamser.HourlyTable) (*excelize.File, error) {
	f := excelize.NewFile()

	defaultSheet := f.GetSheetName(0)
	if defaultSheet != summarySheet {
		f.NewSheet(summarySheet)
		f.DeleteSheet(defaultSheet)
	}
	f.NewSheet(hourlySheet)

	decimals := summary.Parameter.Decimals()

	header := append([]string{"Cage"}, summary.Columns...)
	header = append(header, "Subject ID")
	for col, name := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellStr(summarySheet, cell, name)
	}
	for i, row := range summary.Rows {
		rowIdx := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		_ = f.SetCellStr(summarySheet, cell, row.CageID)
		for j, colName := range summary.Columns {
			cell, _ = excelize.CoordinatesToCellName(j+2, rowIdx)
			setNumericCell(f, summarySheet, cell, row.Values[colName], decimals)
		}
		cell, _ = excelize.CoordinatesToCellName(len(summary.Columns)+2, rowIdx)
		_ = f.SetCellStr(summarySheet, cell, row.SubjectID)
	}

	hourlyHeader := append([]string{"Hour"}, hourly.Columns...)
	hourlyHeader = append(hourlyHeader, "Mean", "SEM")
	for col, name := range hourlyHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellStr(hourlySheet, cell, name)
	}
	for i, row := range hourly.Rows {
		rowIdx := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		_ = f.SetCellInt(hourlySheet, cell, row.Hour)
		for j, v := range row.Values {
			cell, _ = excelize.CoordinatesToCellName(j+2, rowIdx)
			setNumericCell(f, hourlySheet, cell, v, decimals)
		}
		meanCol := len(hourly.Columns) + 2
		cell, _ = excelize.CoordinatesToCellName(meanCol, rowIdx)
		setNumericCell(f, hourlySheet, cell, row.Mean, decimals)
		cell, _ = excelize.CoordinatesToCellName(meanCol+1, rowIdx)
		setNumericCell(f, hourlySheet, cell, row.SEM, decimals)
	}

	meanColName, _ := excelize.ColumnNumberToName(len(hourly.Columns) + 2)
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$%s$1", hourlySheet, meanColName),
				Categories: fmt.Sprintf("%s!$A$2:$A$25", hourlySheet),
				Values:     fmt.Sprintf("%s!$%s$2:$%s$25", hourlySheet, meanColName, meanColName),
			},
		},
		Title:  []excelize.RichTextRun{{Text: string(hourly.Parameter) + " hourly mean"}},
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Hour of day"}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: hourly.Parameter.Units()}}, MajorGridLines: true},
	}
	chartAnchor, _ := excelize.CoordinatesToCellName(len(hourlyHeader)+2, 2)
	if err := f.AddChart(hourlySheet, chartAnchor, chart); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

func setNumericCell(f *excelize.File, sheet, cell string, v float64, decimals int) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		_ = f.SetCellStr(sheet, cell, "")
		return
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	fv, _ := strconv.ParseFloat(s, 64)
	_ = f.SetCellFloat(sheet, cell, fv, decimals, 64)
}

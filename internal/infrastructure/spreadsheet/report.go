package spreadsheet

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

const reportSheet = "Certificates"

var reportHeaders = []string{
	"File",
	"File Status",
	"Pages",
	"Vendor",
	"Certificate #",
	"Serial",
	"Calibration Date",
	"Due Date",
	"Action",
	"Match",
	"Tool Log #",
	"Tool Name",
	"Note",
}

// Reporter renders batch results as xlsx workbooks.
type Reporter struct{}

// BatchReport writes one row per certificate, and one row for each skipped file.
func (Reporter) BatchReport(result domain.BatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.NewSheet(reportSheet); err != nil {
		return nil, fmt.Errorf("create report sheet: %w", err)
	}
	index, err := f.GetSheetIndex(reportSheet)
	if err != nil {
		return nil, fmt.Errorf("create report sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	row := 1
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(reportSheet, cell, v)
	}
	for i, h := range reportHeaders {
		write(i+1, h)
	}

	for _, file := range result.Files {
		if len(file.Certificates) == 0 {
			row++
			write(1, file.Filename)
			write(2, string(file.Status))
			write(13, file.Reason)
			continue
		}
		for _, c := range file.Certificates {
			row++
			write(1, file.Filename)
			write(2, string(file.Status))
			write(3, c.Pages)
			write(4, string(c.Certificate.Vendor))
			write(5, c.Certificate.CertNumber)
			write(6, c.Certificate.SerialNumber)
			write(7, formatDate(c.Certificate.CalDate))
			write(8, formatDate(c.Certificate.DueDate))
			write(9, string(c.Action))
			write(10, c.MatchTag)
			write(11, c.ToolLogNumber)
			write(12, c.ToolName)
			write(13, c.Error)
		}
	}

	row += 2
	write(1, "Certificates")
	write(2, strconv.Itoa(result.Totals.Certificates))
	row++
	write(1, "Matched")
	write(2, strconv.Itoa(result.Totals.Matched))
	row++
	write(1, "Unmatched")
	write(2, strconv.Itoa(result.Totals.Unmatched))
	row++
	write(1, "Skipped files")
	write(2, strconv.Itoa(result.Totals.SkippedFiles))

	_ = f.SetColWidth(reportSheet, "A", "A", 36)
	_ = f.SetColWidth(reportSheet, "B", "D", 12)
	_ = f.SetColWidth(reportSheet, "E", "F", 20)
	_ = f.SetColWidth(reportSheet, "G", "H", 14)
	_ = f.SetColWidth(reportSheet, "I", "K", 18)
	_ = f.SetColWidth(reportSheet, "L", "L", 28)
	_ = f.SetColWidth(reportSheet, "M", "M", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

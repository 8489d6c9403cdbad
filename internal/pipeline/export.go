package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"infolookup/internal"
)

// ExportTableXLSX writes a result table as one sheet with a single header row. Every cell is
// written as text so identifiers keep their leading zeros.
func ExportTableXLSX(table internal.ResultTable, outputPath string) error {
	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		cells := append([]string{row.Input}, row.Cells(table.Domain)...)
		rows = append(rows, append(cells, row.Status))
	}
	return writeXLSX(table.Columns(), rows, outputPath)
}

func ExportDatasetXLSX(ds Dataset, outputPath string) error {
	return writeXLSX(ds.Header, ds.Rows, outputPath)
}

func writeXLSX(headers []string, rows [][]string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

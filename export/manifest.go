// Package export renders workspace manifests as spreadsheets.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"layout-server/workspace"

	"github.com/xuri/excelize/v2"
)

const (
	ManifestSheet       = "Manifest"
	ManifestContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var manifestHeader = []string{"Product ID", "Name", "Category", "Width", "Height", "Depth", "Quantity", "Item IDs"}

var manifestWidths = []float64{18, 28, 12, 10, 10, 10, 10, 60}

// Manifest writes lines to a single-sheet xlsx workbook and returns its bytes.
// Dimensions are left blank for products without them.
func Manifest(lines []workspace.ManifestLine) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(ManifestSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(ManifestSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range manifestHeader {
		if err := setCellValue(f, col+1, 1, header); err != nil {
			return nil, err
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(ManifestSheet, name, name, manifestWidths[col]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(manifestHeader), 1)
	if err := f.SetCellStyle(ManifestSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, line := range lines {
		row := i + 2
		values := []interface{}{
			line.ProductID,
			line.Product.Name,
			string(line.Product.Category),
			nil, nil, nil,
			line.Quantity,
			strings.Join(line.ItemIDs, ", "),
		}
		if d := line.Product.Dimensions; d != nil {
			values[3], values[4], values[5] = d.Width, d.Height, d.Depth
		}
		for col, value := range values {
			if value == nil {
				continue
			}
			if err := setCellValue(f, col+1, row, value); err != nil {
				return nil, fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(ManifestSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(ManifestSheet, cell, value)
}

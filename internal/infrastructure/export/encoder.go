// Package export encodes report tables into downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/karte/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Format is an export file format
type Format string

// Supported formats
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// utf8BOM lets spreadsheet applications detect UTF-8 in CSV files
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File is an encoded export
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ParseFormat validates a format name. An empty name selects CSV.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", name)
}

// Encode writes the table in the given format
func Encode(t report.Table, format Format) (*File, error) {
	switch format {
	case FormatCSV:
		data, err := EncodeCSV(t)
		if err != nil {
			return nil, err
		}
		return &File{
			Filename:    t.Name + ".csv",
			ContentType: "text/csv; charset=utf-8",
			Data:        data,
		}, nil
	case FormatXLSX:
		data, err := EncodeXLSX(t)
		if err != nil {
			return nil, err
		}
		return &File{
			Filename:    t.Name + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// EncodeCSV writes the header and rows as BOM-prefixed UTF-8 CSV
func EncodeCSV(t report.Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		record = record[:0]
		for _, cell := range row {
			record = append(record, report.CellText(cell))
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeXLSX writes the table to a single-sheet workbook. Amounts are
// stored as numbers so the sheet can be summed; rates stay formatted text.
func EncodeXLSX(t report.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(t.Name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if len(t.Header) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("failed to create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = xlsxValue(cell)
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, start, &cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func xlsxValue(cell any) any {
	switch c := cell.(type) {
	case decimal.Decimal:
		return c.InexactFloat64()
	case report.Percent:
		return c.String()
	}
	return cell
}

// sheetName trims a table name to the 31 characters a sheet name allows
func sheetName(name string) string {
	if name == "" {
		return "Report"
	}
	if r := []rune(name); len(r) > 31 {
		return string(r[:31])
	}
	return name
}

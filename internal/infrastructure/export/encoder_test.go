package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/karte/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() report.Table {
	return report.Table{
		Name:   "monthly_report_2025_01",
		Header: []string{"カルテNo", "担当者", "売上", "利益率"},
		Rows: [][]any{
			{"D-250115-001", "田中", decimal.NewFromInt(100000), report.Percent(40)},
			{"I-250120-002", "Sato, Jr.", decimal.RequireFromString("2500.5"), report.Percent(12.345)},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestEncodeCSV(t *testing.T) {
	data, err := EncodeCSV(sampleTable())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"カルテNo", "担当者", "売上", "利益率"}, records[0])
	assert.Equal(t, []string{"D-250115-001", "田中", "100000", "40.0%"}, records[1])
	assert.Equal(t, []string{"I-250120-002", "Sato, Jr.", "2500.5", "12.3%"}, records[2])
}

func TestEncodeXLSX(t *testing.T) {
	data, err := EncodeXLSX(sampleTable())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"monthly_report_2025_01"}, f.GetSheetList())
	rows, err := f.GetRows("monthly_report_2025_01")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "カルテNo", rows[0][0])
	assert.Equal(t, "田中", rows[1][1])
	assert.Equal(t, "100000", rows[1][2])
	assert.Equal(t, "40.0%", rows[1][3])
	assert.Equal(t, "2500.5", rows[2][2])
}

func TestEncode(t *testing.T) {
	file, err := Encode(sampleTable(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "monthly_report_2025_01.csv", file.Filename)
	assert.Contains(t, file.ContentType, "text/csv")

	file, err = Encode(sampleTable(), FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "monthly_report_2025_01.xlsx", file.Filename)
	assert.Contains(t, file.ContentType, "spreadsheetml")
	assert.NotEmpty(t, file.Data)

	_, err = Encode(sampleTable(), Format("pdf"))
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Report", sheetName(""))
	assert.Equal(t, "staff_stats_2025_03", sheetName("staff_stats_2025_03"))
	assert.Len(t, []rune(sheetName("an_extremely_long_report_table_name_for_export")), 31)
}

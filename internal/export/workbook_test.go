package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Vouchers", SheetName("Vouchers"))
	assert.Equal(t, "Vendor_Net", SheetName("Vendor/Net"))
	assert.Equal(t, "Sheet", SheetName("   "))

	long := SheetName("Invoice allocation against vouchers by vendor")
	assert.Len(t, []rune(long), MaxSheetNameLen)
	assert.True(t, strings.HasPrefix("Invoice allocation against vouchers by vendor", long))
}

func TestWorkbook_WritesSheetsInOrder(t *testing.T) {
	data, err := Workbook(
		Sheet{
			Name:    "Voucher Summary",
			Headers: []string{"Voucher", "Total"},
			Rows: [][]interface{}{
				{"VCH-2026-0001", decimal.RequireFromString("305.00")},
				{"VCH-2026-0002", decimal.RequireFromString("12.50")},
			},
		},
		Sheet{
			Name:    "Account activity for every account in the ledger",
			Headers: []string{"Account"},
			Rows:    [][]interface{}{{"Office Supplies"}},
		},
	)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 2)
	assert.Equal(t, "Voucher Summary", sheets[0])
	assert.Len(t, []rune(sheets[1]), MaxSheetNameLen)

	rows, err := f.GetRows("Voucher Summary", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Voucher", "Total"}, rows[0])
	assert.Equal(t, "VCH-2026-0001", rows[1][0])
	assert.Equal(t, "305", rows[1][1])
}

func TestWorkbook_DuplicateNamesAfterTruncation(t *testing.T) {
	base := strings.Repeat("x", 40)
	data, err := Workbook(Sheet{Name: base}, Sheet{Name: base + "y"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 2)
	assert.NotEqual(t, sheets[0], sheets[1])
	for _, s := range sheets {
		assert.LessOrEqual(t, len([]rune(s)), MaxSheetNameLen)
	}
}

func TestWorkbook_NoSheets(t *testing.T) {
	_, err := Workbook()
	assert.Error(t, err)
}

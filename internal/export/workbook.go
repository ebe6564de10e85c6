// Package export renders tabular reports as Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// MaxSheetNameLen is Excel's limit on worksheet names.
const MaxSheetNameLen = 31

// Sheet is one worksheet: a header row followed by data rows.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

// SheetName makes name usable as a worksheet name: characters Excel rejects become
// underscores and the result is cut to MaxSheetNameLen runes.
func SheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	runes := []rune(name)
	if len(runes) > MaxSheetNameLen {
		runes = runes[:MaxSheetNameLen]
	}
	return string(runes)
}

// Workbook writes sheets to a single .xlsx document, in order.
func Workbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("export: no sheets")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("export: header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("export: money style: %w", err)
	}

	used := make(map[string]bool, len(sheets))
	for i, sh := range sheets {
		name := uniqueName(SheetName(sh.Name), used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("export: new sheet %q: %w", name, err)
		}

		if err := writeSheet(f, name, sh, headerStyle, moneyStyle); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, sh Sheet, headerStyle, moneyStyle int) error {
	headers := make([]interface{}, len(sh.Headers))
	for i, h := range sh.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		return fmt.Errorf("export: %s header: %w", name, err)
	}
	if len(sh.Headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(sh.Headers), 1)
		if err := f.SetCellStyle(name, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("export: %s header style: %w", name, err)
		}
		_ = f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	for r, row := range sh.Rows {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = cellValue(v)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("export: %s row %d: %w", name, r+1, err)
		}
		for c, v := range row {
			if _, ok := v.(decimal.Decimal); ok {
				ref, _ := excelize.CoordinatesToCellName(c+1, r+2)
				if err := f.SetCellStyle(name, ref, ref, moneyStyle); err != nil {
					return fmt.Errorf("export: %s style: %w", name, err)
				}
			}
		}
	}

	for c, h := range sh.Headers {
		col, _ := excelize.ColumnNumberToName(c + 1)
		width := float64(len(h) + 4)
		if width < 14 {
			width = 14
		}
		_ = f.SetColWidth(name, col, col, width)
	}
	return nil
}

// cellValue converts values excelize does not know into ones it writes natively.
func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.InexactFloat64()
	case *decimal.Decimal:
		if t == nil {
			return nil
		}
		return t.InexactFloat64()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		runes := []rune(name)
		if len(runes)+len(suffix) > MaxSheetNameLen {
			runes = runes[:MaxSheetNameLen-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

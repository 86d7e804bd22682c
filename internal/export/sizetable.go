package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/solarhub/marketplace/internal/model"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of header rows to skip
}

// ReadXLSX reads an XLSX file and returns all rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.Value
	}
	return cells
}

// ReadSizeTable loads a system-size price table from the first sheet of an
// XLSX file. Each row holds a size in kWp and the installed cost; a header
// row and blank rows are skipped.
func ReadSizeTable(path string) ([]model.SizeCost, error) {
	rows, err := ReadXLSX(path, XLSXOptions{})
	if err != nil {
		return nil, err
	}
	return ParseSizeTable(rows)
}

// ParseSizeTable converts (size, cost) rows into a size table. A first row
// whose size column is not a number is treated as a header.
func ParseSizeTable(rows [][]string) ([]model.SizeCost, error) {
	var out []model.SizeCost
	for i, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		size, err := decimal.NewFromString(strings.TrimSpace(row[0]))
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, eris.Wrapf(err, "xlsx: row %d: size %q", i+1, row[0])
		}
		cost, err := decimal.NewFromString(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: row %d: cost %q", i+1, row[1])
		}
		if !size.IsPositive() || cost.IsNegative() {
			return nil, eris.Errorf("xlsx: row %d: size must be positive and cost not negative", i+1)
		}
		out = append(out, model.SizeCost{SizeKwp: size, Cost: cost})
	}
	if len(out) == 0 {
		return nil, eris.New("xlsx: size table has no rows")
	}
	return out, nil
}

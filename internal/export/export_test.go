package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/solarhub/marketplace/internal/model"
)

func testSimulation() *model.Simulation {
	d := decimal.RequireFromString
	inst := model.ScenarioResult{
		Scenario:             model.ScenarioInstallation,
		HorizonYears:         2,
		SystemSizeKw:         d("3.19"),
		MonthlyGenerationKwh: d("382.5"),
		Investment:           d("16090.36"),
		NetGain:              d("-6045.00"),
		PaybackYears:         decimal.NullDecimal{},
		Timeline: []model.YearFlow{
			{Year: 1, TariffPerKwh: d("1.10"), GenerationKwh: d("4590"), GrossSavings: d("5049.00"), Cost: d("241.36"), NetSavings: d("4807.64"), CumulativeCashFlow: d("-11282.72")},
			{Year: 2, TariffPerKwh: d("1.166"), GenerationKwh: d("4534.92"), GrossSavings: d("5287.72"), Cost: d("241.36"), NetSavings: d("5046.36"), CumulativeCashFlow: d("-6236.36")},
		},
	}
	rent := model.ScenarioResult{
		Scenario:     model.ScenarioRental,
		HorizonYears: 2,
		SystemSizeKw: d("3.19"),
		NetGain:      d("4000.00"),
		Timeline: []model.YearFlow{
			{Year: 1, NetSavings: d("2000.33"), CumulativeCashFlow: d("2000.33")},
			{Year: 2, NetSavings: d("1999.67"), CumulativeCashFlow: d("4000.00")},
		},
	}
	return &model.Simulation{
		Installation: inst,
		Rental:       rent,
		Comparison:   model.ComparisonResult{Difference: d("-10045.00"), Suggested: model.ScenarioRental},
		Projection: []model.ProjectionPoint{
			{Year: 0, CumulativeInstallation: d("-16090.36"), CumulativeRental: decimal.Zero},
			{Year: 1, CumulativeInstallation: d("-11282.72"), CumulativeRental: d("2000.33")},
			{Year: 2, CumulativeInstallation: d("-6236.36"), CumulativeRental: d("4000.00")},
		},
	}
}

func newTestFormatter(t *testing.T) *MoneyFormatter {
	t.Helper()
	f, err := NewMoneyFormatter("pt-BR", "BRL")
	require.NoError(t, err)
	return f
}

func TestMoneyFormatter(t *testing.T) {
	f := newTestFormatter(t)

	out := f.Format(decimal.RequireFromString("1234.5"))
	assert.Contains(t, out, "R$")
	assert.Contains(t, out, "234")
	assert.Contains(t, out, "50")
	assert.Equal(t, "BRL", f.Currency())

	assert.Equal(t, "-", f.Years(decimal.NullDecimal{}))
	assert.Contains(t, f.Years(decimal.NewNullDecimal(decimal.RequireFromString("3.5"))), "50")
}

func TestMoneyFormatter_InvalidInput(t *testing.T) {
	_, err := NewMoneyFormatter("not a locale!!", "BRL")
	assert.Error(t, err)

	_, err = NewMoneyFormatter("pt-BR", "XXXX")
	assert.Error(t, err)
}

func TestWriteWorkbook(t *testing.T) {
	sim := testSimulation()
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sim, newTestFormatter(t)))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	var names []string
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{SheetSummary, SheetInstallation, SheetRental, SheetProjection}, names)

	inst := f.Sheet[SheetInstallation]
	require.Len(t, inst.Rows, 3, "header plus one row per year")
	assert.Equal(t, "Year", inst.Rows[0].Cells[0].Value)
	year, err := inst.Rows[2].Cells[0].Int()
	require.NoError(t, err)
	assert.Equal(t, 2, year)
	net, err := inst.Rows[1].Cells[5].Float()
	require.NoError(t, err)
	assert.InDelta(t, 4807.64, net, 0.001)

	proj := f.Sheet[SheetProjection]
	require.Len(t, proj.Rows, 4)
	start, err := proj.Rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.InDelta(t, -16090.36, start, 0.001)

	summary := f.Sheet[SheetSummary]
	var labels []string
	for _, r := range summary.Rows {
		if len(r.Cells) > 0 {
			labels = append(labels, r.Cells[0].Value)
		}
	}
	assert.Contains(t, labels, "Investment")
	assert.Contains(t, labels, "Suggested")
	assert.Contains(t, labels, "Verdict")
}

func TestWriteWorkbook_NilFormatterSkipsVerdict(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, testSimulation(), nil))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	for _, r := range f.Sheet[SheetSummary].Rows {
		if len(r.Cells) > 0 {
			assert.NotEqual(t, "Verdict", r.Cells[0].Value)
		}
	}
}

func TestParseSizeTable(t *testing.T) {
	rows := [][]string{
		{"size_kwp", "cost"},
		{"3", "15000"},
		{"", ""},
		{"5.5", "24000.50"},
	}
	table, err := ParseSizeTable(rows)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "5.5", table[1].SizeKwp.String())
	assert.Equal(t, "24000.5", table[1].Cost.String())
}

func TestParseSizeTable_Errors(t *testing.T) {
	_, err := ParseSizeTable([][]string{{"3", "abc"}})
	assert.Error(t, err)

	_, err = ParseSizeTable([][]string{{"size", "cost"}, {"x", "1"}})
	assert.Error(t, err)

	_, err = ParseSizeTable([][]string{{"0", "100"}})
	assert.Error(t, err)

	_, err = ParseSizeTable([][]string{{"size", "cost"}})
	assert.Error(t, err)
}

func TestReadSizeTable(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sizes")
	require.NoError(t, err)
	for _, r := range [][]string{{"kWp", "Cost"}, {"2", "11000"}, {"4", "19500"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "sizes.xlsx")
	require.NoError(t, f.Save(path))

	table, err := ReadSizeTable(path)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.True(t, decimal.NewFromInt(19500).Equal(table[1].Cost))
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Only")
	require.NoError(t, err)
	sheet.AddRow().AddCell().SetString("size")
	path := filepath.Join(t.TempDir(), "one.xlsx")
	require.NoError(t, f.Save(path))

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

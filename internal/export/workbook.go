package export

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/solarhub/marketplace/internal/model"
)

// Sheet names written by WriteWorkbook.
const (
	SheetSummary      = "Summary"
	SheetInstallation = "Installation"
	SheetRental       = "Rental"
	SheetProjection   = "Projection"
)

const (
	moneyFormat = "#,##0.00"
	kwhFormat   = "#,##0"
	rateFormat  = "0.0000"
)

var timelineHeader = []string{"Year", "Tariff per kWh", "Generation kWh", "Gross savings", "Cost", "Net savings", "Cumulative cash flow"}

// WriteWorkbook writes sim as an XLSX workbook with a summary sheet, one
// timeline sheet per scenario and the chart projection.
func WriteWorkbook(w io.Writer, sim *model.Simulation, money *MoneyFormatter) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	writeSummary(summary, sim, money)

	for _, s := range []struct {
		name string
		res  model.ScenarioResult
	}{
		{SheetInstallation, sim.Installation},
		{SheetRental, sim.Rental},
	} {
		sheet, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "xlsx: add %s sheet", s.name)
		}
		writeTimeline(sheet, s.res)
	}

	projection, err := f.AddSheet(SheetProjection)
	if err != nil {
		return eris.Wrap(err, "xlsx: add projection sheet")
	}
	writeProjection(projection, sim.Projection)

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func writeSummary(sheet *xlsx.Sheet, sim *model.Simulation, money *MoneyFormatter) {
	addStrings(sheet, "", "Installation", "Rental")

	inst, rent := sim.Installation, sim.Rental
	rows := []struct {
		label  string
		a, b   decimal.Decimal
		format string
	}{
		{"System size (kWp)", inst.SystemSizeKw, rent.SystemSizeKw, "0.00"},
		{"Monthly generation (kWh)", inst.MonthlyGenerationKwh, rent.MonthlyGenerationKwh, kwhFormat},
		{"Investment", inst.Investment, rent.Investment, moneyFormat},
		{"Monthly net savings", inst.MonthlyNetSavings, rent.MonthlyNetSavings, moneyFormat},
		{"Total net savings", inst.TotalNetSavings, rent.TotalNetSavings, moneyFormat},
		{"Net gain", inst.NetGain, rent.NetGain, moneyFormat},
		{"Emission offset (t CO2)", inst.EmissionOffsetTons, rent.EmissionOffsetTons, "0.000"},
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.label)
		setDecimal(row.AddCell(), r.a, r.format)
		setDecimal(row.AddCell(), r.b, r.format)
	}

	row := sheet.AddRow()
	row.AddCell().SetString("Payback (years)")
	setNullDecimal(row.AddCell(), inst.PaybackYears, "0.00")
	setNullDecimal(row.AddCell(), rent.PaybackYears, "0.00")

	sheet.AddRow()
	row = sheet.AddRow()
	row.AddCell().SetString("Suggested")
	row.AddCell().SetString(sim.Comparison.Suggested.String())
	row = sheet.AddRow()
	row.AddCell().SetString("Difference")
	setDecimal(row.AddCell(), sim.Comparison.Difference, moneyFormat)
	if money != nil {
		row = sheet.AddRow()
		row.AddCell().SetString("Verdict")
		row.AddCell().SetString(verdict(sim.Comparison, money))
	}
}

func verdict(c model.ComparisonResult, money *MoneyFormatter) string {
	return fmt.Sprintf("%s ahead by %s", c.Suggested, money.Format(c.Difference.Abs()))
}

func writeTimeline(sheet *xlsx.Sheet, res model.ScenarioResult) {
	addStrings(sheet, timelineHeader...)
	for _, y := range res.Timeline {
		row := sheet.AddRow()
		row.AddCell().SetInt(y.Year)
		setDecimal(row.AddCell(), y.TariffPerKwh, rateFormat)
		setDecimal(row.AddCell(), y.GenerationKwh, kwhFormat)
		setDecimal(row.AddCell(), y.GrossSavings, moneyFormat)
		setDecimal(row.AddCell(), y.Cost, moneyFormat)
		setDecimal(row.AddCell(), y.NetSavings, moneyFormat)
		setDecimal(row.AddCell(), y.CumulativeCashFlow, moneyFormat)
	}
}

func writeProjection(sheet *xlsx.Sheet, points []model.ProjectionPoint) {
	addStrings(sheet, "Year", "Installation", "Rental")
	for _, p := range points {
		row := sheet.AddRow()
		row.AddCell().SetInt(p.Year)
		setDecimal(row.AddCell(), p.CumulativeInstallation, moneyFormat)
		setDecimal(row.AddCell(), p.CumulativeRental, moneyFormat)
	}
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func setDecimal(cell *xlsx.Cell, d decimal.Decimal, format string) {
	cell.SetFloatWithFormat(d.InexactFloat64(), format)
}

func setNullDecimal(cell *xlsx.Cell, d decimal.NullDecimal, format string) {
	if !d.Valid {
		cell.SetString("-")
		return
	}
	setDecimal(cell, d.Decimal, format)
}

// Package export renders simulations for people: locale-aware money text
// and XLSX workbooks.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter prints amounts with a currency symbol and the number
// conventions of a locale.
type MoneyFormatter struct {
	printer *message.Printer
	unit    currency.Unit
	symbol  string
}

// NewMoneyFormatter creates a formatter for a BCP 47 locale ("pt-BR") and
// an ISO 4217 currency code ("BRL").
func NewMoneyFormatter(locale, currencyCode string) (*MoneyFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, eris.Wrapf(err, "export: parse locale %q", locale)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, eris.Wrapf(err, "export: parse currency %q", currencyCode)
	}
	p := message.NewPrinter(tag)
	return &MoneyFormatter{
		printer: p,
		unit:    unit,
		symbol:  p.Sprint(currency.Symbol(unit)),
	}, nil
}

// Currency returns the ISO code of the formatter's currency.
func (f *MoneyFormatter) Currency() string { return f.unit.String() }

// Format renders d rounded to cents, e.g. "R$ 1.234,56".
func (f *MoneyFormatter) Format(d decimal.Decimal) string {
	return f.symbol + " " + f.Number(d, 2)
}

// Number renders d with the locale's separators and the given decimals.
func (f *MoneyFormatter) Number(d decimal.Decimal, places int32) string {
	return f.printer.Sprintf("%."+strconv.Itoa(int(places))+"f", d.Round(places).InexactFloat64())
}

// Years renders a payback period, or "-" when there is none.
func (f *MoneyFormatter) Years(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return f.Number(d.Decimal, 2)
}

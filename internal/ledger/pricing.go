// Package ledger sells lead credits to installation companies and spends
// them when a company unlocks a client opportunity.
package ledger

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/solarhub/marketplace/internal/model"
)

// ErrUnknownPackage is returned for a package type outside the price list.
var ErrUnknownPackage = eris.New("ledger: unknown lead package")

var hundred = decimal.NewFromInt(100)

// Package is one row of the lead price list.
type Package struct {
	Type            model.PackageType `json:"type"`
	Quantity        int               `json:"quantity"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
}

var packageTable = map[model.PackageType]Package{
	model.PackageSingle:  {Type: model.PackageSingle, Quantity: 1, DiscountPercent: decimal.Zero},
	model.PackagePack20:  {Type: model.PackagePack20, Quantity: 20, DiscountPercent: decimal.NewFromInt(5)},
	model.PackagePack50:  {Type: model.PackagePack50, Quantity: 50, DiscountPercent: decimal.NewFromInt(10)},
	model.PackagePack100: {Type: model.PackagePack100, Quantity: 100, DiscountPercent: decimal.NewFromInt(15)},
}

// Packages returns the price list ordered by quantity.
func Packages() []Package {
	out := make([]Package, 0, len(packageTable))
	for _, p := range packageTable {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out
}

// LookupPackage returns the price list entry for t.
func LookupPackage(t model.PackageType) (Package, error) {
	p, ok := packageTable[t]
	if !ok {
		return Package{}, eris.Wrapf(ErrUnknownPackage, "package %q", string(t))
	}
	return p, nil
}

// ParsePackage accepts a package name ("pack50") or its quantity ("50").
func ParsePackage(s string) (model.PackageType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range packageTable {
		if s == string(p.Type) || s == strconv.Itoa(p.Quantity) {
			return p.Type, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownPackage, "package %q", s)
}

// Quote is the price breakdown for one package.
type Quote struct {
	Package         model.PackageType `json:"package"`
	Quantity        int               `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	DiscountPercent decimal.Decimal   `json:"discount_percent"`
	DiscountAmount  decimal.Decimal   `json:"discount_amount"`
	Total           decimal.Decimal   `json:"total"`
}

// Pricer prices lead packages at a fixed unit price.
type Pricer struct {
	UnitPrice decimal.Decimal
}

// NewPricer creates a Pricer for the given unit price.
func NewPricer(unitPrice decimal.Decimal) *Pricer {
	return &Pricer{UnitPrice: unitPrice}
}

// CalculatePrice returns quantity × unit price less the package discount,
// rounded to cents.
func (p *Pricer) CalculatePrice(t model.PackageType) (Quote, error) {
	pkg, err := LookupPackage(t)
	if err != nil {
		return Quote{}, err
	}

	subtotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(pkg.Quantity)))
	discount := subtotal.Mul(pkg.DiscountPercent).Div(hundred).Round(2)
	return Quote{
		Package:         pkg.Type,
		Quantity:        pkg.Quantity,
		UnitPrice:       p.UnitPrice,
		Subtotal:        subtotal.Round(2),
		DiscountPercent: pkg.DiscountPercent,
		DiscountAmount:  discount,
		Total:           subtotal.Sub(discount).Round(2),
	}, nil
}

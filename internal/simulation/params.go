// Package simulation projects the multi-year cash flow of buying or renting
// a solar system and compares the two.
package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/solarhub/marketplace/internal/config"
	"github.com/solarhub/marketplace/internal/model"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// Parameters is the effective cost model for one calculation. Rates are
// fractions (0.015 means 1.5%).
type Parameters struct {
	// ProductionPerKwp is the monthly kWh one installed kWp yields. It sizes
	// the system.
	ProductionPerKwp decimal.Decimal
	MinSystemSizeKwp decimal.Decimal

	PricePerKwp         decimal.Decimal
	MaintenanceRate     decimal.Decimal
	InstallDiscountRate decimal.Decimal

	// RentalRatePerKwh, when valid, replaces the tariff-derived rental rate.
	RentalRatePerKwh   decimal.NullDecimal
	RentalFactor       decimal.Decimal
	RentalMinimum      decimal.Decimal
	RentalSetupPerKwp  decimal.Decimal
	RentalIncreaseRate decimal.Decimal
	RentalDiscountRate decimal.Decimal

	EmissionFactorKgPerKwh decimal.Decimal

	SizeCosts []model.SizeCost
	LineItems []model.LineItem
}

// DefaultParameters returns the platform defaults used when a company has
// no cost profile.
func DefaultParameters() Parameters {
	return Parameters{
		ProductionPerKwp:       decimal.NewFromInt(140),
		MinSystemSizeKwp:       decimal.Zero,
		PricePerKwp:            decimal.NewFromInt(4800),
		MaintenanceRate:        decimal.RequireFromString("0.01"),
		InstallDiscountRate:    decimal.Zero,
		RentalFactor:           decimal.RequireFromString("0.70"),
		RentalMinimum:          decimal.NewFromInt(150),
		RentalSetupPerKwp:      decimal.Zero,
		RentalIncreaseRate:     decimal.RequireFromString("0.04"),
		RentalDiscountRate:     decimal.Zero,
		EmissionFactorKgPerKwh: decimal.RequireFromString("0.0817"),
	}
}

// ParametersFromConfig applies the configured platform defaults over
// DefaultParameters. Percent settings become fractions. Settings the config
// does not carry keep their compiled-in values.
func ParametersFromConfig(sc config.SimulationConfig) Parameters {
	p := DefaultParameters()
	p.ProductionPerKwp = sc.ProductionPerKwp
	p.PricePerKwp = sc.PricePerKwp
	p.MaintenanceRate = sc.MaintenancePercent.Div(hundred)
	p.RentalFactor = sc.RentalFactorPercent.Div(hundred)
	p.RentalMinimum = sc.RentalMinimum
	p.RentalIncreaseRate = sc.RentalIncreasePercent.Div(hundred)
	p.EmissionFactorKgPerKwh = sc.EmissionFactorKgPerKwh
	return p
}

// Resolve merges a company's cost profile over defaults field by field. A
// nil profile returns defaults unchanged.
func Resolve(defaults Parameters, profile *model.CostProfile) Parameters {
	p := defaults
	p.SizeCosts = append([]model.SizeCost(nil), defaults.SizeCosts...)
	p.LineItems = append([]model.LineItem(nil), defaults.LineItems...)
	if profile == nil {
		return p
	}

	p.ProductionPerKwp = pick(p.ProductionPerKwp, profile.ProductionPerKwp)
	// The consumption-per-kWp ratio is the company's own sizing yield and
	// wins over the production figure, unless production is explicitly zero.
	if !(profile.ProductionPerKwp.Valid && profile.ProductionPerKwp.Decimal.IsZero()) {
		p.ProductionPerKwp = pick(p.ProductionPerKwp, profile.ConsumptionPerKwp)
	}
	p.MinSystemSizeKwp = pick(p.MinSystemSizeKwp, profile.MinSystemSizeKwp)

	p.PricePerKwp = pick(p.PricePerKwp, profile.PricePerKwp)
	p.MaintenanceRate = pickPercent(p.MaintenanceRate, profile.MaintenancePercent)
	p.InstallDiscountRate = pickPercent(p.InstallDiscountRate, profile.InstallDiscountPercent)

	if profile.RentalRatePerKwh.Valid {
		p.RentalRatePerKwh = profile.RentalRatePerKwh
	}
	p.RentalFactor = pickPercent(p.RentalFactor, profile.RentalFactorPercent)
	p.RentalMinimum = pick(p.RentalMinimum, profile.RentalMinimum)
	p.RentalSetupPerKwp = pick(p.RentalSetupPerKwp, profile.RentalSetupPerKwp)
	p.RentalIncreaseRate = pickPercent(p.RentalIncreaseRate, profile.RentalIncreasePercent)
	p.RentalDiscountRate = pickPercent(p.RentalDiscountRate, profile.RentalDiscountPercent)

	if len(profile.SizeCosts) > 0 {
		p.SizeCosts = append([]model.SizeCost(nil), profile.SizeCosts...)
	}
	if len(profile.LineItems) > 0 {
		p.LineItems = append([]model.LineItem(nil), profile.LineItems...)
	}
	return p
}

func pick(def decimal.Decimal, override decimal.NullDecimal) decimal.Decimal {
	if override.Valid {
		return override.Decimal
	}
	return def
}

func pickPercent(def decimal.Decimal, override decimal.NullDecimal) decimal.Decimal {
	if override.Valid {
		return override.Decimal.Div(hundred)
	}
	return def
}

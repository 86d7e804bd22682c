package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItemKind classifies a cost profile line item.
type LineItemKind string

const (
	LineItemEquipment LineItemKind = "equipment"
	LineItemService   LineItemKind = "service"
)

// LineItem is an equipment or service cost a company adds on top of the
// per-kWp installation price.
type LineItem struct {
	Name   string          `json:"name"`
	Kind   LineItemKind    `json:"kind"`
	Cost   decimal.Decimal `json:"cost"`
	Active bool            `json:"active"`
}

// SizeCost is one entry of a company's system-size price table: the total
// installed cost for a system of SizeKwp.
type SizeCost struct {
	SizeKwp decimal.Decimal `json:"size_kwp"`
	Cost    decimal.Decimal `json:"cost"`
}

// CostProfile holds a company's pricing overrides. Every null field falls
// back to the platform default. Percent fields are whole percentages.
type CostProfile struct {
	CompanyID string `json:"company_id"`

	ProductionPerKwp  decimal.NullDecimal `json:"production_per_kwp"`
	ConsumptionPerKwp decimal.NullDecimal `json:"consumption_per_kwp"`
	MinSystemSizeKwp  decimal.NullDecimal `json:"min_system_size_kwp"`

	PricePerKwp            decimal.NullDecimal `json:"price_per_kwp"`
	MaintenancePercent     decimal.NullDecimal `json:"maintenance_percent"`
	InstallDiscountPercent decimal.NullDecimal `json:"install_discount_percent"`

	RentalRatePerKwh      decimal.NullDecimal `json:"rental_rate_per_kwh"`
	RentalFactorPercent   decimal.NullDecimal `json:"rental_factor_percent"`
	RentalMinimum         decimal.NullDecimal `json:"rental_minimum"`
	RentalSetupPerKwp     decimal.NullDecimal `json:"rental_setup_per_kwp"`
	RentalIncreasePercent decimal.NullDecimal `json:"rental_increase_percent"`
	RentalDiscountPercent decimal.NullDecimal `json:"rental_discount_percent"`

	SizeCosts []SizeCost `json:"size_costs,omitempty"`
	LineItems []LineItem `json:"line_items,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

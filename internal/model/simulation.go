package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Scenario identifies an ownership model for a solar system.
type Scenario int

const (
	// ScenarioInstallation is the client buying and owning the system.
	ScenarioInstallation Scenario = iota
	// ScenarioRental is the client renting the system for a monthly fee.
	ScenarioRental
)

func (s Scenario) String() string {
	switch s {
	case ScenarioInstallation:
		return "installation"
	case ScenarioRental:
		return "rental"
	default:
		return "unknown"
	}
}

// MarshalText encodes the scenario as its name.
func (s Scenario) MarshalText() ([]byte, error) {
	if s != ScenarioInstallation && s != ScenarioRental {
		return nil, eris.Errorf("model: invalid scenario %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a scenario name.
func (s *Scenario) UnmarshalText(text []byte) error {
	parsed, err := ParseScenario(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseScenario maps a name ("installation", "rental") to a Scenario.
func ParseScenario(name string) (Scenario, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "installation", "install", "buy":
		return ScenarioInstallation, nil
	case "rental", "rent":
		return ScenarioRental, nil
	default:
		return 0, eris.Errorf("model: unknown scenario %q", name)
	}
}

// Scenarios lists every scenario in presentation order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioInstallation, ScenarioRental}
}

// SimulationInput is the client-reported consumption profile a simulation
// runs against. Percent fields are whole percentages (6 means 6%).
type SimulationInput struct {
	MonthlyConsumptionKwh decimal.Decimal `json:"monthly_consumption_kwh" validate:"gte=0"`
	TariffPerKwh          decimal.Decimal `json:"tariff_per_kwh" validate:"gte=0"`
	CoveragePercent       decimal.Decimal `json:"coverage_percent" validate:"gte=0,lte=120"`
	DegradationPercent    decimal.Decimal `json:"degradation_percent" validate:"gte=0,lte=30"`
	InflationPercent      decimal.Decimal `json:"inflation_percent" validate:"gte=0"`
	HorizonYears          int             `json:"horizon_years" validate:"gte=1,lte=30"`
}

// YearFlow is one row of a scenario's yearly cash flow.
type YearFlow struct {
	Year               int             `json:"year"`
	TariffPerKwh       decimal.Decimal `json:"tariff_per_kwh"`
	GenerationKwh      decimal.Decimal `json:"generation_kwh"`
	GrossSavings       decimal.Decimal `json:"gross_savings"`
	Cost               decimal.Decimal `json:"cost"`
	NetSavings         decimal.Decimal `json:"net_savings"`
	CumulativeCashFlow decimal.Decimal `json:"cumulative_cash_flow"`
}

// ScenarioResult is the computed outcome of one scenario. It is derived on
// every request and never stored.
type ScenarioResult struct {
	Scenario             Scenario            `json:"scenario"`
	HorizonYears         int                 `json:"horizon_years"`
	MonthlyGenerationKwh decimal.Decimal     `json:"monthly_generation_kwh"`
	SystemSizeKw         decimal.Decimal     `json:"system_size_kw"`
	Investment           decimal.Decimal     `json:"investment"`
	MonthlyGrossSavings  decimal.Decimal     `json:"monthly_gross_savings"`
	MonthlyCost          decimal.Decimal     `json:"monthly_cost"`
	MonthlyNetSavings    decimal.Decimal     `json:"monthly_net_savings"`
	AnnualGrossSavings   decimal.Decimal     `json:"annual_gross_savings"`
	AnnualNetSavings     decimal.Decimal     `json:"annual_net_savings"`
	TotalGrossSavings    decimal.Decimal     `json:"total_gross_savings"`
	TotalCost            decimal.Decimal     `json:"total_cost"`
	TotalNetSavings      decimal.Decimal     `json:"total_net_savings"`
	NetGain              decimal.Decimal     `json:"net_gain"`
	PaybackYears         decimal.NullDecimal `json:"payback_years"`
	TotalGenerationKwh   decimal.Decimal     `json:"total_generation_kwh"`
	EmissionOffsetTons   decimal.Decimal     `json:"emission_offset_tons"`
	Timeline             []YearFlow          `json:"timeline"`
}

// NetSavingsTimeline returns the yearly net savings in year order.
func (r ScenarioResult) NetSavingsTimeline() []decimal.Decimal {
	out := make([]decimal.Decimal, len(r.Timeline))
	for i, y := range r.Timeline {
		out[i] = y.NetSavings
	}
	return out
}

// ComparisonResult summarizes installation against rental.
type ComparisonResult struct {
	Difference            decimal.Decimal     `json:"difference"`
	Suggested             Scenario            `json:"suggested"`
	ReferencePaybackYears decimal.NullDecimal `json:"reference_payback_years"`
}

// ProjectionPoint is one chart sample of cumulative cash flow per scenario.
type ProjectionPoint struct {
	Year                   int             `json:"year"`
	CumulativeInstallation decimal.Decimal `json:"cumulative_installation"`
	CumulativeRental       decimal.Decimal `json:"cumulative_rental"`
}

// Simulation is the full response of a buy-vs-rent run.
type Simulation struct {
	Input                  SimulationInput   `json:"input"`
	CompanyID              string            `json:"company_id,omitempty"`
	Installation           ScenarioResult    `json:"installation"`
	Rental                 ScenarioResult    `json:"rental"`
	Comparison             ComparisonResult  `json:"comparison"`
	Projection             []ProjectionPoint `json:"projection"`
	TotalInstallCost       decimal.Decimal   `json:"total_install_cost"`
	InstallationInvestment decimal.Decimal   `json:"installation_investment"`
	InitialInvestment      decimal.Decimal   `json:"initial_investment"`
}

package simulation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/solarhub/marketplace/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// flatParameters is a cost model with round numbers so expectations can be
// worked out by hand: 1 kWp yields 100 kWh/month and costs 1000.
func flatParameters() Parameters {
	return Parameters{
		ProductionPerKwp:       d("100"),
		MinSystemSizeKwp:       decimal.Zero,
		PricePerKwp:            d("1000"),
		MaintenanceRate:        decimal.Zero,
		InstallDiscountRate:    decimal.Zero,
		RentalFactor:           d("0.7"),
		RentalMinimum:          decimal.Zero,
		RentalSetupPerKwp:      decimal.Zero,
		RentalIncreaseRate:     decimal.Zero,
		RentalDiscountRate:     decimal.Zero,
		EmissionFactorKgPerKwh: d("0.5"),
	}
}

func flatInput(tariff string, years int) model.SimulationInput {
	return model.SimulationInput{
		MonthlyConsumptionKwh: d("100"),
		TariffPerKwh:          d(tariff),
		CoveragePercent:       d("100"),
		DegradationPercent:    decimal.Zero,
		InflationPercent:      decimal.Zero,
		HorizonYears:          years,
	}
}

// regressionInput and regressionProfile reproduce a company quote that once
// reported different investment figures in different places.
func regressionInput() model.SimulationInput {
	return model.SimulationInput{
		MonthlyConsumptionKwh: d("450"),
		TariffPerKwh:          d("1.10"),
		CoveragePercent:       d("85"),
		DegradationPercent:    d("1.2"),
		InflationPercent:      d("6"),
		HorizonYears:          8,
	}
}

func regressionProfile() *model.CostProfile {
	return &model.CostProfile{
		CompanyID:              "company-regression",
		PricePerKwp:            nd("5200"),
		MaintenancePercent:     nd("1.5"),
		InstallDiscountPercent: nd("3"),
		RentalFactorPercent:    nd("60"),
		RentalMinimum:          nd("200"),
		RentalSetupPerKwp:      nd("120"),
		RentalIncreasePercent:  nd("4"),
		RentalDiscountPercent:  nd("12"),
		ConsumptionPerKwp:      nd("120"),
		MinSystemSizeKwp:       nd("3"),
	}
}

// mockProfiles implements ProfileSource for testing.
type mockProfiles struct {
	profiles map[string]*model.CostProfile
	err      error
	calls    []string
}

func (m *mockProfiles) GetProfile(_ context.Context, companyID string) (*model.CostProfile, error) {
	m.calls = append(m.calls, companyID)
	if m.err != nil {
		return nil, m.err
	}
	return m.profiles[companyID], nil
}

package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/solarhub/marketplace/internal/model"
)

var (
	maxCoveragePercent    = decimal.NewFromInt(120)
	maxDegradationPercent = decimal.NewFromInt(30)
)

// CalculateScenario projects one ownership scenario year by year. Input is
// assumed validated; see Validate.
func CalculateScenario(in model.SimulationInput, scenario model.Scenario, p Parameters) model.ScenarioResult {
	coverage := clamp(in.CoveragePercent, decimal.Zero, maxCoveragePercent)
	demand := in.MonthlyConsumptionKwh.Mul(coverage).Div(hundred)

	// No yield means no system can be sized, so nothing is generated.
	monthlyGen := decimal.Zero
	size := decimal.Zero
	if p.ProductionPerKwp.IsPositive() && demand.IsPositive() {
		monthlyGen = demand
		size = demand.Div(p.ProductionPerKwp).Round(2)
		if size.LessThan(p.MinSystemSizeKwp) {
			size = p.MinSystemSizeKwp
		}
	}

	res := model.ScenarioResult{
		Scenario:             scenario,
		HorizonYears:         in.HorizonYears,
		MonthlyGenerationKwh: monthlyGen.Round(2),
		SystemSizeKw:         size,
		Investment:           decimal.Zero,
	}

	var (
		annualMaintenance = decimal.Zero
		monthlyFee        = decimal.Zero
		setupFee          = decimal.Zero
	)
	switch scenario {
	case model.ScenarioInstallation:
		if size.IsPositive() {
			res.Investment = installationInvestment(size, p)
		}
		annualMaintenance = res.Investment.Mul(p.MaintenanceRate).Round(2)
		res.MonthlyCost = annualMaintenance.Div(twelve).Round(2)
	case model.ScenarioRental:
		if size.IsPositive() {
			monthlyFee = rentalMonthlyFee(in.TariffPerKwh, monthlyGen, p)
			setupFee = size.Mul(p.RentalSetupPerKwp).Round(2)
		}
		res.MonthlyCost = monthlyFee.Round(2)
	}

	degradation := clamp(in.DegradationPercent, decimal.Zero, maxDegradationPercent).Div(hundred)
	tariffStep := one.Add(in.InflationPercent.Div(hundred))
	genStep := one.Sub(degradation)
	feeStep := one.Add(p.RentalIncreaseRate)

	tariffFactor, genFactor, feeFactor := one, one, one
	cumulative := res.Investment.Neg()
	totalGross, totalCost, totalNet, totalGen := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero

	if scenario == model.ScenarioInstallation && res.Investment.IsZero() {
		res.PaybackYears = decimal.NewNullDecimal(decimal.Zero)
	}

	res.Timeline = make([]model.YearFlow, 0, max(in.HorizonYears, 0))
	for year := 1; year <= in.HorizonYears; year++ {
		tariff := in.TariffPerKwh.Mul(tariffFactor)
		generation := monthlyGen.Mul(genFactor).Mul(twelve)
		gross := generation.Mul(tariff).Round(2)

		var cost decimal.Decimal
		switch scenario {
		case model.ScenarioInstallation:
			cost = annualMaintenance
		case model.ScenarioRental:
			cost = monthlyFee.Mul(feeFactor).Mul(twelve).Round(2)
			if year == 1 {
				cost = cost.Add(setupFee)
			}
		}
		net := gross.Sub(cost)

		previous := cumulative
		cumulative = cumulative.Add(net)
		if scenario == model.ScenarioInstallation && !res.PaybackYears.Valid && !cumulative.IsNegative() {
			res.PaybackYears = decimal.NewNullDecimal(paybackYears(year, previous, net))
		}

		res.Timeline = append(res.Timeline, model.YearFlow{
			Year:               year,
			TariffPerKwh:       tariff.Round(4),
			GenerationKwh:      generation.Round(2),
			GrossSavings:       gross,
			Cost:               cost,
			NetSavings:         net,
			CumulativeCashFlow: cumulative,
		})

		totalGross = totalGross.Add(gross)
		totalCost = totalCost.Add(cost)
		totalNet = totalNet.Add(net)
		totalGen = totalGen.Add(generation)

		tariffFactor = tariffFactor.Mul(tariffStep)
		genFactor = genFactor.Mul(genStep)
		feeFactor = feeFactor.Mul(feeStep)
	}

	if len(res.Timeline) > 0 {
		first := res.Timeline[0]
		res.AnnualGrossSavings = first.GrossSavings
		res.AnnualNetSavings = first.NetSavings
		res.MonthlyGrossSavings = first.GrossSavings.Div(twelve).Round(2)
	}
	res.MonthlyNetSavings = res.MonthlyGrossSavings.Sub(res.MonthlyCost)

	res.TotalGrossSavings = totalGross
	res.TotalCost = totalCost
	res.TotalNetSavings = totalNet
	res.NetGain = totalNet.Sub(res.Investment)
	res.TotalGenerationKwh = totalGen.Round(2)
	res.EmissionOffsetTons = totalGen.Mul(p.EmissionFactorKgPerKwh).Div(decimal.NewFromInt(1000)).Round(3)
	return res
}

// BuildComparison contrasts the net gain of both scenarios. A tie suggests
// installation: owning the system is the platform's default recommendation.
func BuildComparison(installation, rental model.ScenarioResult) model.ComparisonResult {
	diff := installation.NetGain.Sub(rental.NetGain)
	suggested := model.ScenarioInstallation
	if diff.IsNegative() {
		suggested = model.ScenarioRental
	}
	return model.ComparisonResult{
		Difference:            diff,
		Suggested:             suggested,
		ReferencePaybackYears: installation.PaybackYears,
	}
}

// BuildProjection returns cumulative cash flow per year for charting,
// starting at year 0 with the installation investment outstanding.
func BuildProjection(installation, rental model.ScenarioResult) []model.ProjectionPoint {
	years := max(len(installation.Timeline), len(rental.Timeline))
	points := make([]model.ProjectionPoint, 0, years+1)

	cumInst := installation.Investment.Neg()
	cumRent := rental.Investment.Neg()
	points = append(points, model.ProjectionPoint{
		Year:                   0,
		CumulativeInstallation: cumInst,
		CumulativeRental:       cumRent,
	})
	for i := 0; i < years; i++ {
		if i < len(installation.Timeline) {
			cumInst = cumInst.Add(installation.Timeline[i].NetSavings)
		}
		if i < len(rental.Timeline) {
			cumRent = cumRent.Add(rental.Timeline[i].NetSavings)
		}
		points = append(points, model.ProjectionPoint{
			Year:                   i + 1,
			CumulativeInstallation: cumInst,
			CumulativeRental:       cumRent,
		})
	}
	return points
}

// Run calculates both scenarios and assembles the full simulation.
func Run(in model.SimulationInput, p Parameters) model.Simulation {
	inst := CalculateScenario(in, model.ScenarioInstallation, p)
	rent := CalculateScenario(in, model.ScenarioRental, p)
	projection := BuildProjection(inst, rent)

	return model.Simulation{
		Input:                  in,
		Installation:           inst,
		Rental:                 rent,
		Comparison:             BuildComparison(inst, rent),
		Projection:             projection,
		TotalInstallCost:       inst.Investment,
		InstallationInvestment: inst.Investment,
		InitialInvestment:      projection[0].CumulativeInstallation.Neg(),
	}
}

func installationInvestment(size decimal.Decimal, p Parameters) decimal.Decimal {
	gross := CostForSize(p.SizeCosts, size, p.PricePerKwp).Add(ActiveLineItemsCost(p.LineItems))
	return gross.Mul(one.Sub(p.InstallDiscountRate)).Round(2)
}

func rentalMonthlyFee(tariff, monthlyGen decimal.Decimal, p Parameters) decimal.Decimal {
	rate := tariff.Mul(p.RentalFactor)
	if p.RentalRatePerKwh.Valid {
		rate = p.RentalRatePerKwh.Decimal
	}
	fee := decimal.Max(monthlyGen.Mul(rate), p.RentalMinimum)
	return fee.Mul(one.Sub(p.RentalDiscountRate))
}

// paybackYears interpolates within the year the cumulative cash flow turns
// non-negative. previous is the cumulative cash flow before that year.
func paybackYears(year int, previous, net decimal.Decimal) decimal.Decimal {
	if !net.IsPositive() {
		return decimal.NewFromInt(int64(year))
	}
	fraction := previous.Neg().Div(net)
	return decimal.NewFromInt(int64(year - 1)).Add(fraction).Round(2)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(v, lo), hi)
}

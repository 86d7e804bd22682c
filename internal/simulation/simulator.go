package simulation

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/solarhub/marketplace/internal/model"
)

// ProfileSource looks up a company's cost profile. It returns nil, nil when
// the company has none.
type ProfileSource interface {
	GetProfile(ctx context.Context, companyID string) (*model.CostProfile, error)
}

// Simulator runs simulations against platform defaults, optionally scoped to
// one company's cost profile.
type Simulator struct {
	profiles ProfileSource
	defaults Parameters
}

// NewSimulator creates a Simulator. profiles may be nil when only platform
// defaults are needed.
func NewSimulator(profiles ProfileSource, defaults Parameters) *Simulator {
	return &Simulator{profiles: profiles, defaults: defaults}
}

// Parameters resolves the effective parameters for companyID. An empty
// companyID yields the platform defaults.
func (s *Simulator) Parameters(ctx context.Context, companyID string) (Parameters, error) {
	if companyID == "" || s.profiles == nil {
		return Resolve(s.defaults, nil), nil
	}
	profile, err := s.profiles.GetProfile(ctx, companyID)
	if err != nil {
		return Parameters{}, eris.Wrapf(err, "simulation: load cost profile for %s", companyID)
	}
	if profile == nil {
		zap.L().Debug("no cost profile, using platform defaults", zap.String("company_id", companyID))
	}
	return Resolve(s.defaults, profile), nil
}

// Simulate validates in and calculates a single scenario.
func (s *Simulator) Simulate(ctx context.Context, in model.SimulationInput, scenario model.Scenario, companyID string) (model.ScenarioResult, error) {
	if err := Validate(in); err != nil {
		return model.ScenarioResult{}, err
	}
	params, err := s.Parameters(ctx, companyID)
	if err != nil {
		return model.ScenarioResult{}, err
	}
	return CalculateScenario(in, scenario, params), nil
}

// SimulateAll validates in and runs both scenarios with comparison and
// projection.
func (s *Simulator) SimulateAll(ctx context.Context, in model.SimulationInput, companyID string) (*model.Simulation, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	params, err := s.Parameters(ctx, companyID)
	if err != nil {
		return nil, err
	}
	sim := Run(in, params)
	sim.CompanyID = companyID
	return &sim, nil
}

// Compare contrasts two previously calculated scenario results.
func (s *Simulator) Compare(installation, rental model.ScenarioResult) model.ComparisonResult {
	return BuildComparison(installation, rental)
}

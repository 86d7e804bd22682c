package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/simulation"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Project buying versus renting a solar system",
	Long: `Runs both scenarios for a consumption profile and prints the comparison.
With --company the company's cost profile is applied; --companies runs the
same profile against several companies side by side.`,
	Example: `  solar-market simulate --consumption 450 --tariff 1.10 --coverage 85 --years 8
  solar-market simulate --consumption 450 --tariff 1.10 --companies co-1,co-2 --xlsx out.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		in, err := simulationInputFromFlags(cmd)
		if err != nil {
			return err
		}
		company, _ := cmd.Flags().GetString("company")
		companies, _ := cmd.Flags().GetStringSlice("companies")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		asJSON, _ := cmd.Flags().GetBool("json")

		if company != "" && len(companies) > 0 {
			return eris.New("use either --company or --companies, not both")
		}
		if err := simulation.Validate(in); err != nil {
			return err
		}

		money, err := newMoneyFormatter()
		if err != nil {
			return err
		}

		sim := newSimulator(nil)
		if company != "" || len(companies) > 0 {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			sim = newSimulator(st)
		}

		if len(companies) > 0 {
			sims, err := simulateCompanies(ctx, sim, in, companies, concurrency)
			if err != nil {
				return err
			}
			return reportCompanies(os.Stdout, sims, money, asJSON, xlsxPath)
		}

		result, err := sim.SimulateAll(ctx, in, company)
		if err != nil {
			return eris.Wrap(err, "simulate")
		}
		if asJSON {
			if err := writeJSON(os.Stdout, result); err != nil {
				return err
			}
		} else {
			formatSimulation(os.Stdout, result, money)
		}
		if xlsxPath != "" {
			return writeWorkbookFile(xlsxPath, result, money)
		}
		return nil
	},
}

// reportCompanies prints the per-company comparison as JSON or a table and,
// when xlsxPath is set, writes the first company's simulation as a workbook.
func reportCompanies(out io.Writer, sims []*model.Simulation, money *export.MoneyFormatter, asJSON bool, xlsxPath string) error {
	if asJSON {
		if err := writeJSON(out, sims); err != nil {
			return err
		}
	} else {
		formatCompanyComparison(out, sims, money)
	}
	if xlsxPath != "" && len(sims) > 0 {
		return writeWorkbookFile(xlsxPath, sims[0], money)
	}
	return nil
}

func simulationInputFromFlags(cmd *cobra.Command) (model.SimulationInput, error) {
	var in model.SimulationInput
	for _, f := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"consumption", &in.MonthlyConsumptionKwh},
		{"tariff", &in.TariffPerKwh},
		{"coverage", &in.CoveragePercent},
		{"degradation", &in.DegradationPercent},
		{"inflation", &in.InflationPercent},
	} {
		raw, _ := cmd.Flags().GetString(f.name)
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return in, eris.Errorf("--%s: %q is not a number", f.name, raw)
		}
		*f.dst = d
	}
	in.HorizonYears, _ = cmd.Flags().GetInt("years")
	return in, nil
}

// simulateCompanies runs in against each company's cost profile, at most
// limit at a time. Results keep the order of companies.
func simulateCompanies(ctx context.Context, sim *simulation.Simulator, in model.SimulationInput, companies []string, limit int) ([]*model.Simulation, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]*model.Simulation, len(companies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range companies {
		g.Go(func() error {
			s, err := sim.SimulateAll(gctx, in, id)
			if err != nil {
				return eris.Wrapf(err, "simulate company %s", id)
			}
			results[i] = s
			zap.L().Debug("company simulated",
				zap.String("company_id", id),
				zap.String("suggested", s.Comparison.Suggested.String()),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func formatSimulation(out io.Writer, sim *model.Simulation, money *export.MoneyFormatter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	inst, rent := sim.Installation, sim.Rental
	_, _ = fmt.Fprintln(w, "\tINSTALLATION\tRENTAL")
	_, _ = fmt.Fprintln(w, "\t------------\t------")
	_, _ = fmt.Fprintf(w, "System size (kWp)\t%s\t%s\n", money.Number(inst.SystemSizeKw, 2), money.Number(rent.SystemSizeKw, 2))
	_, _ = fmt.Fprintf(w, "Monthly generation (kWh)\t%s\t%s\n", money.Number(inst.MonthlyGenerationKwh, 0), money.Number(rent.MonthlyGenerationKwh, 0))
	_, _ = fmt.Fprintf(w, "Investment\t%s\t%s\n", money.Format(inst.Investment), money.Format(rent.Investment))
	_, _ = fmt.Fprintf(w, "Monthly net savings\t%s\t%s\n", money.Format(inst.MonthlyNetSavings), money.Format(rent.MonthlyNetSavings))
	_, _ = fmt.Fprintf(w, "Total net savings\t%s\t%s\n", money.Format(inst.TotalNetSavings), money.Format(rent.TotalNetSavings))
	_, _ = fmt.Fprintf(w, "Net gain\t%s\t%s\n", money.Format(inst.NetGain), money.Format(rent.NetGain))
	_, _ = fmt.Fprintf(w, "Payback (years)\t%s\t%s\n", money.Years(inst.PaybackYears), money.Years(rent.PaybackYears))
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nSuggested: %s (difference %s over %d years)\n",
		sim.Comparison.Suggested, money.Format(sim.Comparison.Difference.Abs()), inst.HorizonYears)
}

func formatCompanyComparison(out io.Writer, sims []*model.Simulation, money *export.MoneyFormatter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tINVESTMENT\tINSTALL NET GAIN\tRENTAL NET GAIN\tPAYBACK\tSUGGESTED")
	_, _ = fmt.Fprintln(w, "-------\t----------\t----------------\t---------------\t-------\t---------")
	for _, s := range sims {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.CompanyID,
			money.Format(s.InstallationInvestment),
			money.Format(s.Installation.NetGain),
			money.Format(s.Rental.NetGain),
			money.Years(s.Installation.PaybackYears),
			s.Comparison.Suggested,
		)
	}
	_ = w.Flush()
}

func writeWorkbookFile(path string, sim *model.Simulation, money *export.MoneyFormatter) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := export.WriteWorkbook(f, sim, money); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func addSimulateFlags(c *cobra.Command) {
	f := c.Flags()
	f.String("consumption", "", "average monthly consumption in kWh (required)")
	f.String("tariff", "", "energy tariff per kWh (required)")
	f.String("coverage", "100", "percent of consumption the system should cover")
	f.String("degradation", "0.5", "yearly panel degradation percent")
	f.String("inflation", "5", "yearly tariff increase percent")
	f.Int("years", 25, "projection horizon in years (1-30)")
	f.String("company", "", "apply this company's cost profile")
	f.StringSlice("companies", nil, "compare several companies' cost profiles")
	f.Int("concurrency", 4, "companies simulated at once with --companies")
	f.String("xlsx", "", "also write the simulation to this XLSX file")
	f.Bool("json", false, "print JSON instead of a table")
}

func init() {
	addSimulateFlags(simulateCmd)
	_ = simulateCmd.MarkFlagRequired("consumption")
	_ = simulateCmd.MarkFlagRequired("tariff")
	rootCmd.AddCommand(simulateCmd)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/simulation"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage company cost profiles",
}

// -- profile show --

var profileShowCmd = &cobra.Command{
	Use:   "show <company-id>",
	Short: "Print a company's cost profile as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetProfile(ctx, args[0])
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintf(os.Stderr, "%s has no cost profile; platform defaults apply.\n", args[0])
			return nil
		}
		return encodeProfile(os.Stdout, *p)
	},
}

// -- profile import --

var profileImportCmd = &cobra.Command{
	Use:   "import <company-id> <file.yaml>",
	Short: "Replace a company's cost profile from a YAML file",
	Long: `Reads a cost profile in the format printed by 'profile show'. Fields left
out fall back to platform defaults. --size-table loads the system-size price
table from the first sheet of an XLSX file instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		companyID := args[0]
		sizeTable, _ := cmd.Flags().GetString("size-table")

		f, err := os.Open(args[1])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[1])
		}
		defer f.Close() //nolint:errcheck

		p, err := decodeProfile(f, companyID)
		if err != nil {
			return err
		}
		if sizeTable != "" {
			p.SizeCosts, err = export.ReadSizeTable(sizeTable)
			if err != nil {
				return err
			}
		}
		if err := simulation.ValidateProfile(p); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := requireCompany(ctx, st, companyID); err != nil {
			return err
		}
		if err := st.SaveProfile(ctx, p); err != nil {
			return err
		}

		zap.L().Info("cost profile imported",
			zap.String("company_id", companyID),
			zap.Int("size_costs", len(p.SizeCosts)),
			zap.Int("line_items", len(p.LineItems)),
		)
		fmt.Fprintf(os.Stderr, "Saved cost profile for %s.\n", companyID)
		return nil
	},
}

// yamlDecimal reads a YAML scalar as an exact decimal. A missing or null
// value stays invalid.
type yamlDecimal struct {
	decimal.NullDecimal
}

func (d *yamlDecimal) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return eris.Errorf("line %d: expected a number", n.Line)
	}
	if n.ShortTag() == "!!null" {
		d.NullDecimal = decimal.NullDecimal{}
		return nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return eris.Errorf("line %d: %q is not a number", n.Line, n.Value)
	}
	d.NullDecimal = decimal.NewNullDecimal(v)
	return nil
}

func (d yamlDecimal) MarshalYAML() (any, error) {
	if !d.Valid {
		return nil, nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: d.Decimal.String()}, nil
}

func (d yamlDecimal) IsZero() bool { return !d.Valid }

type sizeCostFile struct {
	SizeKwp yamlDecimal `yaml:"size_kwp"`
	Cost    yamlDecimal `yaml:"cost"`
}

type lineItemFile struct {
	Name   string             `yaml:"name"`
	Kind   model.LineItemKind `yaml:"kind"`
	Cost   yamlDecimal        `yaml:"cost"`
	Active *bool              `yaml:"active,omitempty"`
}

// profileFile is the YAML layout of a cost profile. Percent fields are
// whole percentages.
type profileFile struct {
	ProductionPerKwp  yamlDecimal `yaml:"production_per_kwp,omitempty"`
	ConsumptionPerKwp yamlDecimal `yaml:"consumption_per_kwp,omitempty"`
	MinSystemSizeKwp  yamlDecimal `yaml:"min_system_size_kwp,omitempty"`

	PricePerKwp            yamlDecimal `yaml:"price_per_kwp,omitempty"`
	MaintenancePercent     yamlDecimal `yaml:"maintenance_percent,omitempty"`
	InstallDiscountPercent yamlDecimal `yaml:"install_discount_percent,omitempty"`

	RentalRatePerKwh      yamlDecimal `yaml:"rental_rate_per_kwh,omitempty"`
	RentalFactorPercent   yamlDecimal `yaml:"rental_factor_percent,omitempty"`
	RentalMinimum         yamlDecimal `yaml:"rental_minimum,omitempty"`
	RentalSetupPerKwp     yamlDecimal `yaml:"rental_setup_per_kwp,omitempty"`
	RentalIncreasePercent yamlDecimal `yaml:"rental_increase_percent,omitempty"`
	RentalDiscountPercent yamlDecimal `yaml:"rental_discount_percent,omitempty"`

	SizeCosts []sizeCostFile `yaml:"size_costs,omitempty"`
	LineItems []lineItemFile `yaml:"line_items,omitempty"`
}

func decodeProfile(r io.Reader, companyID string) (model.CostProfile, error) {
	var pf profileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return model.CostProfile{}, eris.Wrap(err, "decode cost profile")
	}

	p := model.CostProfile{
		CompanyID:              companyID,
		ProductionPerKwp:       pf.ProductionPerKwp.NullDecimal,
		ConsumptionPerKwp:      pf.ConsumptionPerKwp.NullDecimal,
		MinSystemSizeKwp:       pf.MinSystemSizeKwp.NullDecimal,
		PricePerKwp:            pf.PricePerKwp.NullDecimal,
		MaintenancePercent:     pf.MaintenancePercent.NullDecimal,
		InstallDiscountPercent: pf.InstallDiscountPercent.NullDecimal,
		RentalRatePerKwh:       pf.RentalRatePerKwh.NullDecimal,
		RentalFactorPercent:    pf.RentalFactorPercent.NullDecimal,
		RentalMinimum:          pf.RentalMinimum.NullDecimal,
		RentalSetupPerKwp:      pf.RentalSetupPerKwp.NullDecimal,
		RentalIncreasePercent:  pf.RentalIncreasePercent.NullDecimal,
		RentalDiscountPercent:  pf.RentalDiscountPercent.NullDecimal,
		UpdatedAt:              time.Now().UTC(),
	}
	for i, sc := range pf.SizeCosts {
		if !sc.SizeKwp.Valid || !sc.Cost.Valid {
			return model.CostProfile{}, eris.Errorf("size_costs[%d]: size_kwp and cost are required", i)
		}
		p.SizeCosts = append(p.SizeCosts, model.SizeCost{SizeKwp: sc.SizeKwp.Decimal, Cost: sc.Cost.Decimal})
	}
	for _, li := range pf.LineItems {
		active := li.Active == nil || *li.Active
		p.LineItems = append(p.LineItems, model.LineItem{
			Name:   li.Name,
			Kind:   li.Kind,
			Cost:   li.Cost.Decimal,
			Active: active,
		})
	}
	return p, nil
}

func encodeProfile(w io.Writer, p model.CostProfile) error {
	pf := profileFile{
		ProductionPerKwp:       yamlDecimal{p.ProductionPerKwp},
		ConsumptionPerKwp:      yamlDecimal{p.ConsumptionPerKwp},
		MinSystemSizeKwp:       yamlDecimal{p.MinSystemSizeKwp},
		PricePerKwp:            yamlDecimal{p.PricePerKwp},
		MaintenancePercent:     yamlDecimal{p.MaintenancePercent},
		InstallDiscountPercent: yamlDecimal{p.InstallDiscountPercent},
		RentalRatePerKwh:       yamlDecimal{p.RentalRatePerKwh},
		RentalFactorPercent:    yamlDecimal{p.RentalFactorPercent},
		RentalMinimum:          yamlDecimal{p.RentalMinimum},
		RentalSetupPerKwp:      yamlDecimal{p.RentalSetupPerKwp},
		RentalIncreasePercent:  yamlDecimal{p.RentalIncreasePercent},
		RentalDiscountPercent:  yamlDecimal{p.RentalDiscountPercent},
	}
	for _, sc := range p.SizeCosts {
		pf.SizeCosts = append(pf.SizeCosts, sizeCostFile{
			SizeKwp: yamlDecimal{decimal.NewNullDecimal(sc.SizeKwp)},
			Cost:    yamlDecimal{decimal.NewNullDecimal(sc.Cost)},
		})
	}
	for _, li := range p.LineItems {
		active := li.Active
		pf.LineItems = append(pf.LineItems, lineItemFile{
			Name:   li.Name,
			Kind:   li.Kind,
			Cost:   yamlDecimal{decimal.NewNullDecimal(li.Cost)},
			Active: &active,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(pf); err != nil {
		return eris.Wrap(err, "encode cost profile")
	}
	return eris.Wrap(enc.Close(), "encode cost profile")
}

func init() {
	profileImportCmd.Flags().String("size-table", "", "XLSX file with (size kWp, cost) rows")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileImportCmd)
	rootCmd.AddCommand(profileCmd)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/ledger"
	"github.com/solarhub/marketplace/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage company lead credits",
	Long:  "Commands for checking balances, buying lead packages and unlocking client opportunities.",
}

// -- leads packages --

var leadsPackagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "Show the lead package price list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		money, err := newMoneyFormatter()
		if err != nil {
			return err
		}
		quotes, err := priceList(newPricer())
		if err != nil {
			return err
		}
		formatPriceList(os.Stdout, quotes, money)
		return nil
	},
}

// -- leads balance --

var leadsBalanceCmd = &cobra.Command{
	Use:   "balance <company-id>",
	Short: "Show a company's lead credit balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := requireCompany(ctx, st, args[0]); err != nil {
			return err
		}
		b, err := newLedger(st).GetBalance(ctx, args[0])
		if err != nil {
			return err
		}
		formatBalance(os.Stdout, b)
		return nil
	},
}

// -- leads buy --

var leadsBuyCmd = &cobra.Command{
	Use:   "buy <company-id> <package>",
	Short: "Buy a lead package (single, pack20, pack50, pack100 or its size)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pkg, err := ledger.ParsePackage(args[1])
		if err != nil {
			return err
		}
		money, err := newMoneyFormatter()
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := requireCompany(ctx, st, args[0]); err != nil {
			return err
		}
		l := newLedger(st)
		p, err := l.Purchase(ctx, args[0], pkg)
		if err != nil {
			return err
		}
		b, err := l.GetBalance(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Purchased %d leads (%s) for %s, transaction %s\n",
			p.Quantity, p.Package, money.Format(p.TotalAmount), p.TransactionID)
		formatBalance(os.Stdout, b)
		return nil
	},
}

// -- leads unlock --

var leadsUnlockCmd = &cobra.Command{
	Use:   "unlock <company-id> <opportunity-id>",
	Short: "Spend a credit to reveal an opportunity's contact details",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		companyID, opportunityID := args[0], args[1]

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := requireCompany(ctx, st, companyID); err != nil {
			return err
		}
		opp, err := st.GetOpportunity(ctx, opportunityID)
		if err != nil {
			return eris.Wrapf(err, "opportunity %s", opportunityID)
		}
		if opp.CompanyID != companyID {
			return eris.Errorf("opportunity %s is not addressed to %s", opportunityID, companyID)
		}

		ok, err := newLedger(st).Consume(ctx, companyID, opportunityID)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("insufficient lead credit for %s; buy a package with 'leads buy'", companyID)
		}
		opp.Unlocked = true
		formatOpportunity(os.Stdout, *opp)
		return nil
	},
}

// -- leads history --

var leadsHistoryCmd = &cobra.Command{
	Use:   "history <company-id>",
	Short: "List a company's lead purchases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		money, err := newMoneyFormatter()
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		purchases, err := newLedger(st).ListPurchases(ctx, args[0], limit)
		if err != nil {
			return err
		}
		if len(purchases) == 0 {
			fmt.Fprintln(os.Stderr, "No purchases found.")
			return nil
		}
		formatPurchases(os.Stdout, purchases, money)
		return nil
	},
}

func priceList(p *ledger.Pricer) ([]ledger.Quote, error) {
	pkgs := ledger.Packages()
	out := make([]ledger.Quote, 0, len(pkgs))
	for _, pkg := range pkgs {
		q, err := p.CalculatePrice(pkg.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func formatPriceList(out io.Writer, quotes []ledger.Quote, money *export.MoneyFormatter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PACKAGE\tLEADS\tDISCOUNT\tTOTAL\tPER LEAD")
	_, _ = fmt.Fprintln(w, "-------\t-----\t--------\t-----\t--------")
	for _, q := range quotes {
		perLead := q.Total.DivRound(decimal.NewFromInt(int64(q.Quantity)), 2)
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s%%\t%s\t%s\n",
			q.Package, q.Quantity, q.DiscountPercent.String(), money.Format(q.Total), money.Format(perLead))
	}
	_ = w.Flush()
}

func formatBalance(out io.Writer, b *model.LeadBalance) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tAVAILABLE\tCONSUMED\tPURCHASED")
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", b.CompanyID, b.Available, b.Consumed, b.TotalPurchased)
	_ = w.Flush()
}

func formatOpportunity(out io.Writer, o model.Opportunity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Opportunity\t%s\n", o.ID)
	_, _ = fmt.Fprintf(w, "Client\t%s\n", o.ClientName)
	_, _ = fmt.Fprintf(w, "Email\t%s\n", o.Email)
	_, _ = fmt.Fprintf(w, "Phone\t%s\n", o.Phone)
	_, _ = fmt.Fprintf(w, "Location\t%s\n", o.Location)
	if o.Message != "" {
		_, _ = fmt.Fprintf(w, "Message\t%s\n", o.Message)
	}
	_ = w.Flush()
}

func formatPurchases(out io.Writer, purchases []model.LeadPurchase, money *export.MoneyFormatter) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tPACKAGE\tLEADS\tTOTAL\tSTATUS\tTRANSACTION")
	_, _ = fmt.Fprintln(w, "----\t-------\t-----\t-----\t------\t-----------")
	for _, p := range purchases {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			p.PurchasedAt.Format("2006-01-02 15:04"),
			p.Package,
			p.Quantity,
			money.Format(p.TotalAmount),
			p.Status,
			p.TransactionID,
		)
	}
	_ = w.Flush()
}

func init() {
	leadsHistoryCmd.Flags().Int("limit", 20, "maximum purchases to list")

	leadsCmd.AddCommand(leadsPackagesCmd)
	leadsCmd.AddCommand(leadsBalanceCmd)
	leadsCmd.AddCommand(leadsBuyCmd)
	leadsCmd.AddCommand(leadsUnlockCmd)
	leadsCmd.AddCommand(leadsHistoryCmd)
	rootCmd.AddCommand(leadsCmd)
}

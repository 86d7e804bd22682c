package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/ledger"
	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/simulation"
	"github.com/solarhub/marketplace/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "solar.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore connects and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func newSimulator(profiles simulation.ProfileSource) *simulation.Simulator {
	return simulation.NewSimulator(profiles, simulation.ParametersFromConfig(cfg.Simulation))
}

func newPricer() *ledger.Pricer {
	return ledger.NewPricer(cfg.Leads.UnitPrice.Round(2))
}

func newLedger(st store.LedgerStore) *ledger.Ledger {
	return ledger.New(st, newPricer())
}

func newMoneyFormatter() (*export.MoneyFormatter, error) {
	return export.NewMoneyFormatter(cfg.Report.Locale, cfg.Leads.Currency)
}

// requireCompany fails unless id is an active company account.
func requireCompany(ctx context.Context, st store.AccountStore, id string) (*model.Account, error) {
	acct, err := st.GetAccount(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "company %s", id)
	}
	if !acct.IsCompany() {
		return nil, eris.Errorf("account %s is not an active company (role %s)", id, acct.Role)
	}
	return acct, nil
}

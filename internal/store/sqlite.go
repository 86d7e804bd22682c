package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/solarhub/marketplace/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// One writer at a time; balance transactions queue on the pool instead
	// of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS opportunities (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL,
	client_id   TEXT NOT NULL,
	client_name TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_opportunities_company ON opportunities(company_id, created_at);

CREATE TABLE IF NOT EXISTS lead_balances (
	company_id      TEXT PRIMARY KEY,
	available       INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0),
	consumed        INTEGER NOT NULL DEFAULT 0 CHECK (consumed >= 0),
	total_purchased INTEGER NOT NULL DEFAULT 0 CHECK (total_purchased >= 0),
	version         INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK (total_purchased = available + consumed)
);

CREATE TABLE IF NOT EXISTS lead_purchases (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL,
	package          TEXT NOT NULL,
	quantity         INTEGER NOT NULL CHECK (quantity > 0),
	unit_price       TEXT NOT NULL,
	discount_percent TEXT NOT NULL,
	total_amount     TEXT NOT NULL,
	payment_status   TEXT NOT NULL,
	transaction_id   TEXT NOT NULL UNIQUE,
	purchased_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_lead_purchases_company ON lead_purchases(company_id, purchased_at);

CREATE TABLE IF NOT EXISTS lead_consumptions (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	opportunity_id TEXT NOT NULL,
	consumed_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, opportunity_id)
);

CREATE INDEX IF NOT EXISTS idx_lead_consumptions_company ON lead_consumptions(company_id, consumed_at);

CREATE TABLE IF NOT EXISTS cost_profiles (
	company_id TEXT PRIMARY KEY,
	profile    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// --- Lead balances ---

func (s *SQLiteStore) GetBalance(ctx context.Context, companyID string) (*model.LeadBalance, error) {
	return getBalance(ctx, s.db, companyID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBalance(ctx context.Context, q queryRower, companyID string) (*model.LeadBalance, error) {
	b, err := scanBalance(q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM lead_balances WHERE company_id = ?`,
		companyID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: lead balance %s", companyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead balance %s", companyID)
	}
	return b, nil
}

func (s *SQLiteStore) EnsureBalance(ctx context.Context, companyID string) (*model.LeadBalance, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_balances (company_id, available, consumed, total_purchased, version, created_at, updated_at)
		 VALUES (?, 0, 0, 0, 0, ?, ?)
		 ON CONFLICT (company_id) DO NOTHING`,
		companyID, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ensure lead balance %s", companyID)
	}
	return s.GetBalance(ctx, companyID)
}

func (s *SQLiteStore) ApplyConsumption(ctx context.Context, expected model.LeadBalance, c model.LeadConsumption) (*model.LeadBalance, error) {
	var out *model.LeadBalance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE lead_balances
			 SET available = available - 1, consumed = consumed + 1, version = version + 1, updated_at = ?
			 WHERE company_id = ? AND version = ? AND available > 0`,
			c.ConsumedAt, expected.CompanyID, expected.Version,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: debit lead balance")
		}
		if err := expectOneRow(res, expected); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`INSERT INTO lead_consumptions (id, company_id, opportunity_id, consumed_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (company_id, opportunity_id) DO NOTHING`,
			c.ID, c.CompanyID, c.OpportunityID, c.ConsumedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert lead consumption")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			return eris.Wrapf(ErrAlreadyUnlocked, "sqlite: %s/%s", c.CompanyID, c.OpportunityID)
		}

		out, err = getBalance(ctx, tx, expected.CompanyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) ApplyPurchase(ctx context.Context, expected model.LeadBalance, p model.LeadPurchase) (*model.LeadBalance, error) {
	var out *model.LeadBalance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE lead_balances
			 SET available = available + ?, total_purchased = total_purchased + ?, version = version + 1, updated_at = ?
			 WHERE company_id = ? AND version = ?`,
			p.Quantity, p.Quantity, p.PurchasedAt, expected.CompanyID, expected.Version,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: credit lead balance")
		}
		if err := expectOneRow(res, expected); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO lead_purchases (id, company_id, package, quantity, unit_price, discount_percent, total_amount, payment_status, transaction_id, purchased_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CompanyID, string(p.Package), p.Quantity, p.UnitPrice.String(), p.DiscountPercent.String(),
			p.TotalAmount.String(), string(p.Status), p.TransactionID, p.PurchasedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert lead purchase")
		}

		out, err = getBalance(ctx, tx, expected.CompanyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func expectOneRow(res sql.Result, expected model.LeadBalance) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrConflict, "sqlite: lead balance %s moved past version %d", expected.CompanyID, expected.Version)
	}
	return nil
}

func (s *SQLiteStore) HasConsumption(ctx context.Context, companyID, opportunityID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM lead_consumptions WHERE company_id = ? AND opportunity_id = ?)`,
		companyID, opportunityID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check consumption %s/%s", companyID, opportunityID)
	}
	return exists, nil
}

func (s *SQLiteStore) ListPurchases(ctx context.Context, companyID string, limit int) ([]model.LeadPurchase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, package, quantity, unit_price, discount_percent, total_amount, payment_status, transaction_id, purchased_at
		 FROM lead_purchases WHERE company_id = ?
		 ORDER BY purchased_at DESC, rowid DESC LIMIT ?`,
		companyID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lead purchases")
	}
	defer rows.Close()

	var out []model.LeadPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead purchase")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lead purchases iterate")
}

func (s *SQLiteStore) ListConsumptions(ctx context.Context, companyID string, limit int) ([]model.LeadConsumption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, opportunity_id, consumed_at
		 FROM lead_consumptions WHERE company_id = ?
		 ORDER BY consumed_at DESC, rowid DESC LIMIT ?`,
		companyID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lead consumptions")
	}
	defer rows.Close()

	var out []model.LeadConsumption
	for rows.Next() {
		var c model.LeadConsumption
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.OpportunityID, &c.ConsumedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead consumption")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lead consumptions iterate")
}

// --- Cost profiles ---

func (s *SQLiteStore) GetProfile(ctx context.Context, companyID string) (*model.CostProfile, error) {
	var data string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT profile, updated_at FROM cost_profiles WHERE company_id = ?`,
		companyID,
	).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cost profile %s", companyID)
	}

	var p model.CostProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cost profile")
	}
	p.CompanyID = companyID
	p.UpdatedAt = updatedAt
	return &p, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.CostProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cost profile")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cost_profiles (company_id, profile, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (company_id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`,
		p.CompanyID, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save cost profile %s", p.CompanyID)
}

// --- Accounts ---

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, role, active, created_at FROM accounts WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.Name, &role, &a.Active, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: account %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get account %s", id)
	}
	a.Role = model.Role(role)
	return &a, nil
}

func (s *SQLiteStore) UpsertAccount(ctx context.Context, a model.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, role, active, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role, active = excluded.active`,
		a.ID, a.Name, string(a.Role), a.Active, a.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert account %s", a.ID)
}

// --- Opportunities ---

func (s *SQLiteStore) CreateOpportunity(ctx context.Context, o model.Opportunity) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunities (id, company_id, client_id, client_name, email, phone, location, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CompanyID, o.ClientID, o.ClientName, o.Email, o.Phone, o.Location, o.Message, o.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert opportunity %s", o.ID)
}

func (s *SQLiteStore) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	o, err := scanOpportunity(s.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities o WHERE o.id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: opportunity %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get opportunity %s", id)
	}
	return o, nil
}

func (s *SQLiteStore) ListOpportunities(ctx context.Context, companyID string, limit int) ([]model.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities o WHERE o.company_id = ?
		 ORDER BY o.created_at DESC, o.rowid DESC LIMIT ?`,
		companyID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opportunities")
	}
	defer rows.Close()

	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opportunity")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list opportunities iterate")
}

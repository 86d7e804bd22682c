package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/solarhub/marketplace/internal/db"
	"github.com/solarhub/marketplace/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	role       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_opportunities_company ON opportunities(company_id, created_at DESC);

CREATE TABLE IF NOT EXISTS lead_balances (
	company_id      TEXT PRIMARY KEY,
	available       INTEGER NOT NULL DEFAULT 0 CHECK (available >= 0),
	consumed        INTEGER NOT NULL DEFAULT 0 CHECK (consumed >= 0),
	total_purchased INTEGER NOT NULL DEFAULT 0 CHECK (total_purchased >= 0),
	version         BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (total_purchased = available + consumed)
);

CREATE TABLE IF NOT EXISTS lead_purchases (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL,
	package          TEXT NOT NULL,
	quantity         INTEGER NOT NULL CHECK (quantity > 0),
	unit_price       NUMERIC(14,2) NOT NULL,
	discount_percent NUMERIC(5,2) NOT NULL,
	total_amount     NUMERIC(14,2) NOT NULL,
	payment_status   TEXT NOT NULL,
	transaction_id   TEXT NOT NULL UNIQUE,
	purchased_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lead_purchases_company ON lead_purchases(company_id, purchased_at DESC);

CREATE TABLE IF NOT EXISTS lead_consumptions (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL,
	opportunity_id TEXT NOT NULL,
	consumed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, opportunity_id)
);

CREATE INDEX IF NOT EXISTS idx_lead_consumptions_company ON lead_consumptions(company_id, consumed_at DESC);

CREATE TABLE IF NOT EXISTS cost_profiles (
	company_id TEXT PRIMARY KEY,
	profile    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const balanceColumns = `company_id, available, consumed, total_purchased, version, created_at, updated_at`

const opportunityColumns = `o.id, o.company_id, o.client_id, o.client_name, o.email, o.phone, o.location, o.message, o.created_at,
	EXISTS (SELECT 1 FROM lead_consumptions c WHERE c.company_id = o.company_id AND c.opportunity_id = o.id)`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Lead balances ---

func (s *PostgresStore) GetBalance(ctx context.Context, companyID string) (*model.LeadBalance, error) {
	b, err := scanBalance(s.pool.QueryRow(ctx,
		`SELECT `+balanceColumns+` FROM lead_balances WHERE company_id = $1`,
		companyID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: lead balance %s", companyID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead balance %s", companyID)
	}
	return b, nil
}

func (s *PostgresStore) EnsureBalance(ctx context.Context, companyID string) (*model.LeadBalance, error) {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_balances (company_id, available, consumed, total_purchased, version, created_at, updated_at)
		 VALUES ($1, 0, 0, 0, 0, $2, $2)
		 ON CONFLICT (company_id) DO NOTHING`,
		companyID, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: ensure lead balance %s", companyID)
	}
	return s.GetBalance(ctx, companyID)
}

func (s *PostgresStore) ApplyConsumption(ctx context.Context, expected model.LeadBalance, c model.LeadConsumption) (*model.LeadBalance, error) {
	var out *model.LeadBalance
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		b, err := scanBalance(tx.QueryRow(ctx,
			`UPDATE lead_balances
			 SET available = available - 1, consumed = consumed + 1, version = version + 1, updated_at = $1
			 WHERE company_id = $2 AND version = $3 AND available > 0
			 RETURNING `+balanceColumns,
			c.ConsumedAt, expected.CompanyID, expected.Version,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrConflict, "postgres: lead balance %s moved past version %d", expected.CompanyID, expected.Version)
		}
		if err != nil {
			return mapPgError(err, "postgres: debit lead balance")
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO lead_consumptions (id, company_id, opportunity_id, consumed_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (company_id, opportunity_id) DO NOTHING`,
			c.ID, c.CompanyID, c.OpportunityID, c.ConsumedAt,
		)
		if err != nil {
			return mapPgError(err, "postgres: insert lead consumption")
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrAlreadyUnlocked, "postgres: %s/%s", c.CompanyID, c.OpportunityID)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, mapPgError(err, "postgres: apply consumption")
	}
	return out, nil
}

func (s *PostgresStore) ApplyPurchase(ctx context.Context, expected model.LeadBalance, p model.LeadPurchase) (*model.LeadBalance, error) {
	var out *model.LeadBalance
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		b, err := scanBalance(tx.QueryRow(ctx,
			`UPDATE lead_balances
			 SET available = available + $1, total_purchased = total_purchased + $1, version = version + 1, updated_at = $2
			 WHERE company_id = $3 AND version = $4
			 RETURNING `+balanceColumns,
			p.Quantity, p.PurchasedAt, expected.CompanyID, expected.Version,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrConflict, "postgres: lead balance %s moved past version %d", expected.CompanyID, expected.Version)
		}
		if err != nil {
			return mapPgError(err, "postgres: credit lead balance")
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO lead_purchases (id, company_id, package, quantity, unit_price, discount_percent, total_amount, payment_status, transaction_id, purchased_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, p.CompanyID, string(p.Package), p.Quantity, p.UnitPrice, p.DiscountPercent, p.TotalAmount,
			string(p.Status), p.TransactionID, p.PurchasedAt,
		)
		if err != nil {
			return mapPgError(err, "postgres: insert lead purchase")
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, mapPgError(err, "postgres: apply purchase")
	}
	return out, nil
}

func (s *PostgresStore) HasConsumption(ctx context.Context, companyID, opportunityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lead_consumptions WHERE company_id = $1 AND opportunity_id = $2)`,
		companyID, opportunityID,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check consumption %s/%s", companyID, opportunityID)
	}
	return exists, nil
}

func (s *PostgresStore) ListPurchases(ctx context.Context, companyID string, limit int) ([]model.LeadPurchase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, package, quantity, unit_price, discount_percent, total_amount, payment_status, transaction_id, purchased_at
		 FROM lead_purchases WHERE company_id = $1
		 ORDER BY purchased_at DESC LIMIT $2`,
		companyID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lead purchases")
	}
	defer rows.Close()

	var out []model.LeadPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead purchase")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lead purchases iterate")
}

func (s *PostgresStore) ListConsumptions(ctx context.Context, companyID string, limit int) ([]model.LeadConsumption, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, opportunity_id, consumed_at
		 FROM lead_consumptions WHERE company_id = $1
		 ORDER BY consumed_at DESC LIMIT $2`,
		companyID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lead consumptions")
	}
	defer rows.Close()

	var out []model.LeadConsumption
	for rows.Next() {
		var c model.LeadConsumption
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.OpportunityID, &c.ConsumedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead consumption")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lead consumptions iterate")
}

// --- Cost profiles ---

func (s *PostgresStore) GetProfile(ctx context.Context, companyID string) (*model.CostProfile, error) {
	var data []byte
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT profile, updated_at FROM cost_profiles WHERE company_id = $1`,
		companyID,
	).Scan(&data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get cost profile %s", companyID)
	}

	var p model.CostProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cost profile")
	}
	p.CompanyID = companyID
	p.UpdatedAt = updatedAt
	return &p, nil
}

func (s *PostgresStore) SaveProfile(ctx context.Context, p model.CostProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cost profile")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cost_profiles (company_id, profile, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (company_id) DO UPDATE SET profile = EXCLUDED.profile, updated_at = EXCLUDED.updated_at`,
		p.CompanyID, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save cost profile %s", p.CompanyID)
}

// --- Accounts ---

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, role, active, created_at FROM accounts WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &role, &a.Active, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: account %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get account %s", id)
	}
	a.Role = model.Role(role)
	return &a, nil
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, a model.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, role, active, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role, active = EXCLUDED.active`,
		a.ID, a.Name, string(a.Role), a.Active, a.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert account %s", a.ID)
}

// --- Opportunities ---

func (s *PostgresStore) CreateOpportunity(ctx context.Context, o model.Opportunity) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO opportunities (id, company_id, client_id, client_name, email, phone, location, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.CompanyID, o.ClientID, o.ClientName, o.Email, o.Phone, o.Location, o.Message, o.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert opportunity %s", o.ID)
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	o, err := scanOpportunity(s.pool.QueryRow(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities o WHERE o.id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: opportunity %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get opportunity %s", id)
	}
	return o, nil
}

func (s *PostgresStore) ListOpportunities(ctx context.Context, companyID string, limit int) ([]model.Opportunity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities o WHERE o.company_id = $1
		 ORDER BY o.created_at DESC LIMIT $2`,
		companyID, listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opportunities")
	}
	defer rows.Close()

	var out []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list opportunities iterate")
}

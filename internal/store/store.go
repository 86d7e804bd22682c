package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/solarhub/marketplace/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = eris.New("store: not found")

	// ErrConflict is returned when a balance row changed between read and
	// write, or the database aborted the transaction on a serialization
	// conflict.
	ErrConflict = eris.New("store: concurrent modification")

	// ErrAlreadyUnlocked is returned by ApplyConsumption when the company
	// already holds a consumption row for the opportunity.
	ErrAlreadyUnlocked = eris.New("store: opportunity already unlocked")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsAlreadyUnlocked reports whether err wraps ErrAlreadyUnlocked.
func IsAlreadyUnlocked(err error) bool { return errors.Is(err, ErrAlreadyUnlocked) }

// LedgerStore persists lead balances and their append-only history.
//
// ApplyConsumption and ApplyPurchase update the balance only if its version
// still equals expected.Version, and write the history row in the same
// transaction. A version mismatch returns ErrConflict and leaves nothing
// written.
type LedgerStore interface {
	GetBalance(ctx context.Context, companyID string) (*model.LeadBalance, error)
	EnsureBalance(ctx context.Context, companyID string) (*model.LeadBalance, error)
	ApplyConsumption(ctx context.Context, expected model.LeadBalance, c model.LeadConsumption) (*model.LeadBalance, error)
	ApplyPurchase(ctx context.Context, expected model.LeadBalance, p model.LeadPurchase) (*model.LeadBalance, error)
	HasConsumption(ctx context.Context, companyID, opportunityID string) (bool, error)
	ListPurchases(ctx context.Context, companyID string, limit int) ([]model.LeadPurchase, error)
	ListConsumptions(ctx context.Context, companyID string, limit int) ([]model.LeadConsumption, error)
}

// ProfileStore persists company cost profiles. GetProfile returns nil, nil
// when the company has none.
type ProfileStore interface {
	GetProfile(ctx context.Context, companyID string) (*model.CostProfile, error)
	SaveProfile(ctx context.Context, p model.CostProfile) error
}

// AccountStore is the account directory.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	UpsertAccount(ctx context.Context, a model.Account) error
}

// OpportunityStore persists client quote requests addressed to companies.
type OpportunityStore interface {
	CreateOpportunity(ctx context.Context, o model.Opportunity) error
	GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error)
	ListOpportunities(ctx context.Context, companyID string, limit int) ([]model.Opportunity, error)
}

// Store defines the persistence interface for the marketplace.
type Store interface {
	LedgerStore
	ProfileStore
	AccountStore
	OpportunityStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

// mapPgError turns serialization failures and deadlocks into ErrConflict so
// the ledger retries them like a lost version race.
func mapPgError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return eris.Wrap(ErrConflict, msg+": "+pgErr.Message)
		}
	}
	return eris.Wrap(err, msg)
}

package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// mockLedgerStore wraps a real store and lets tests inject failures into
// individual calls.
type mockLedgerStore struct {
	store.LedgerStore

	hasConsumptionErr error
	// applyErrs are returned, in order, by ApplyConsumption and ApplyPurchase
	// before delegating to the wrapped store.
	applyErrs []error

	applyCalls int
}

func (m *mockLedgerStore) HasConsumption(ctx context.Context, companyID, opportunityID string) (bool, error) {
	if m.hasConsumptionErr != nil {
		return false, m.hasConsumptionErr
	}
	return m.LedgerStore.HasConsumption(ctx, companyID, opportunityID)
}

func (m *mockLedgerStore) nextApplyErr() error {
	m.applyCalls++
	if len(m.applyErrs) == 0 {
		return nil
	}
	err := m.applyErrs[0]
	m.applyErrs = m.applyErrs[1:]
	return err
}

func (m *mockLedgerStore) ApplyConsumption(ctx context.Context, expected model.LeadBalance, c model.LeadConsumption) (*model.LeadBalance, error) {
	if err := m.nextApplyErr(); err != nil {
		return nil, err
	}
	return m.LedgerStore.ApplyConsumption(ctx, expected, c)
}

func (m *mockLedgerStore) ApplyPurchase(ctx context.Context, expected model.LeadBalance, p model.LeadPurchase) (*model.LeadBalance, error) {
	if err := m.nextApplyErr(); err != nil {
		return nil, err
	}
	return m.LedgerStore.ApplyPurchase(ctx, expected, p)
}

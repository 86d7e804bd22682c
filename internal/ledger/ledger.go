package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/resilience"
	"github.com/solarhub/marketplace/internal/store"
)

// Ledger manages per-company lead credits. Balance writes are optimistic:
// each attempt reads the balance, computes the change and swaps it in only
// if the version is unchanged. A lost race is retried once.
type Ledger struct {
	store  store.LedgerStore
	pricer *Pricer
	now    func() time.Time
	newID  func() string
}

// New creates a Ledger over s that prices packages with pricer.
func New(s store.LedgerStore, pricer *Pricer) *Ledger {
	return &Ledger{
		store:  s,
		pricer: pricer,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Pricer returns the pricer used for purchases.
func (l *Ledger) Pricer() *Pricer { return l.pricer }

func (l *Ledger) retry(operation string) resilience.RetryConfig {
	cfg := resilience.Once(store.IsConflict)
	cfg.OnRetry = resilience.RetryLogger("ledger", operation)
	return cfg
}

// GetBalance returns the company's balance, creating a zeroed one on first
// access.
func (l *Ledger) GetBalance(ctx context.Context, companyID string) (*model.LeadBalance, error) {
	b, err := l.store.GetBalance(ctx, companyID)
	if err == nil {
		return b, nil
	}
	if !store.IsNotFound(err) {
		return nil, eris.Wrapf(err, "ledger: get balance %s", companyID)
	}

	b, err = l.store.EnsureBalance(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: create balance %s", companyID)
	}
	zap.L().Debug("ledger: created lead balance", zap.String("company_id", companyID))
	return b, nil
}

// HasAccess reports whether the company has unlocked the opportunity.
func (l *Ledger) HasAccess(ctx context.Context, companyID, opportunityID string) (bool, error) {
	ok, err := l.store.HasConsumption(ctx, companyID, opportunityID)
	if err != nil {
		return false, eris.Wrapf(err, "ledger: check access %s/%s", companyID, opportunityID)
	}
	return ok, nil
}

// Consume unlocks the opportunity for the company, spending one credit the
// first time. It returns true if the company has access afterwards and
// false only when it has no credit left. Repeat calls for an unlocked pair
// return true without touching the balance.
func (l *Ledger) Consume(ctx context.Context, companyID, opportunityID string) (bool, error) {
	ok, err := resilience.DoVal(ctx, l.retry("consume"), func(ctx context.Context) (bool, error) {
		return l.tryConsume(ctx, companyID, opportunityID)
	})
	if err != nil {
		return false, eris.Wrapf(err, "ledger: consume %s/%s", companyID, opportunityID)
	}
	return ok, nil
}

func (l *Ledger) tryConsume(ctx context.Context, companyID, opportunityID string) (bool, error) {
	unlocked, err := l.store.HasConsumption(ctx, companyID, opportunityID)
	if err != nil {
		return false, err
	}
	if unlocked {
		return true, nil
	}

	b, err := l.GetBalance(ctx, companyID)
	if err != nil {
		return false, err
	}
	if b.Available <= 0 {
		zap.L().Info("ledger: insufficient lead credit",
			zap.String("company_id", companyID),
			zap.String("opportunity_id", opportunityID),
		)
		return false, nil
	}

	after, err := l.store.ApplyConsumption(ctx, *b, model.LeadConsumption{
		ID:            l.newID(),
		CompanyID:     companyID,
		OpportunityID: opportunityID,
		ConsumedAt:    l.now(),
	})
	if store.IsAlreadyUnlocked(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	zap.L().Info("ledger: lead unlocked",
		zap.String("company_id", companyID),
		zap.String("opportunity_id", opportunityID),
		zap.Int("available", after.Available),
	)
	return true, nil
}

// Purchase buys a package for the company. The purchase is recorded as
// completed and its quantity credited in the same transaction.
func (l *Ledger) Purchase(ctx context.Context, companyID string, pkg model.PackageType) (*model.LeadPurchase, error) {
	q, err := l.pricer.CalculatePrice(pkg)
	if err != nil {
		return nil, err
	}

	p := model.LeadPurchase{
		ID:              l.newID(),
		CompanyID:       companyID,
		Package:         q.Package,
		Quantity:        q.Quantity,
		UnitPrice:       q.UnitPrice,
		DiscountPercent: q.DiscountPercent,
		TotalAmount:     q.Total,
		Status:          model.PaymentCompleted,
		TransactionID:   "txn_" + l.newID(),
		PurchasedAt:     l.now(),
	}

	after, err := resilience.DoVal(ctx, l.retry("purchase"), func(ctx context.Context) (*model.LeadBalance, error) {
		b, err := l.GetBalance(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return l.store.ApplyPurchase(ctx, *b, p)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: purchase %s for %s", string(pkg), companyID)
	}

	zap.L().Info("ledger: lead package purchased",
		zap.String("company_id", companyID),
		zap.String("package", string(p.Package)),
		zap.String("total", p.TotalAmount.StringFixed(2)),
		zap.Int("available", after.Available),
	)
	return &p, nil
}

// ListPurchases returns the company's purchases, newest first.
func (l *Ledger) ListPurchases(ctx context.Context, companyID string, limit int) ([]model.LeadPurchase, error) {
	out, err := l.store.ListPurchases(ctx, companyID, limit)
	return out, eris.Wrapf(err, "ledger: list purchases %s", companyID)
}

// ListConsumptions returns the company's unlocks, newest first.
func (l *Ledger) ListConsumptions(ctx context.Context, companyID string, limit int) ([]model.LeadConsumption, error) {
	out, err := l.store.ListConsumptions(ctx, companyID, limit)
	return out, eris.Wrapf(err, "ledger: list consumptions %s", companyID)
}

package store

import (
	"github.com/solarhub/marketplace/internal/model"
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanBalance reads the columns listed in balanceColumns. The raw scan error
// is returned so callers can match their driver's no-rows sentinel.
func scanBalance(row scannable) (*model.LeadBalance, error) {
	var b model.LeadBalance
	err := row.Scan(&b.CompanyID, &b.Available, &b.Consumed, &b.TotalPurchased, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanPurchase(row scannable) (*model.LeadPurchase, error) {
	var p model.LeadPurchase
	var pkg, status string
	err := row.Scan(&p.ID, &p.CompanyID, &pkg, &p.Quantity, &p.UnitPrice, &p.DiscountPercent, &p.TotalAmount,
		&status, &p.TransactionID, &p.PurchasedAt)
	if err != nil {
		return nil, err
	}
	p.Package = model.PackageType(pkg)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func scanOpportunity(row scannable) (*model.Opportunity, error) {
	var o model.Opportunity
	err := row.Scan(&o.ID, &o.CompanyID, &o.ClientID, &o.ClientName, &o.Email, &o.Phone, &o.Location, &o.Message,
		&o.CreatedAt, &o.Unlocked)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

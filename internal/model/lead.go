package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// PackageType names a purchasable bundle of lead credits.
type PackageType string

const (
	PackageSingle  PackageType = "single"
	PackagePack20  PackageType = "pack20"
	PackagePack50  PackageType = "pack50"
	PackagePack100 PackageType = "pack100"
)

// PaymentStatus is the settlement state of a lead purchase.
type PaymentStatus string

// PaymentCompleted is the only status a purchase is recorded with; there is
// no payment gateway behind it.
const PaymentCompleted PaymentStatus = "Completed"

// LeadBalance is a company's lead-credit account. Version increments on
// every write and guards compare-and-swap updates.
type LeadBalance struct {
	CompanyID      string    `json:"company_id"`
	Available      int       `json:"available_leads"`
	Consumed       int       `json:"consumed_leads"`
	TotalPurchased int       `json:"total_purchased_leads"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CheckInvariant reports an error if the balance counters disagree.
func (b LeadBalance) CheckInvariant() error {
	if b.Available < 0 || b.Consumed < 0 || b.TotalPurchased < 0 {
		return eris.Errorf("lead balance %s: negative counter (available=%d consumed=%d purchased=%d)",
			b.CompanyID, b.Available, b.Consumed, b.TotalPurchased)
	}
	if b.TotalPurchased != b.Available+b.Consumed {
		return eris.Errorf("lead balance %s: purchased %d != available %d + consumed %d",
			b.CompanyID, b.TotalPurchased, b.Available, b.Consumed)
	}
	return nil
}

// LeadPurchase is an append-only record of a package purchase.
type LeadPurchase struct {
	ID              string          `json:"id"`
	CompanyID       string          `json:"company_id"`
	Package         PackageType     `json:"package"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          PaymentStatus   `json:"payment_status"`
	TransactionID   string          `json:"transaction_id"`
	PurchasedAt     time.Time       `json:"purchased_at"`
}

// LeadConsumption records that a company unlocked an opportunity. At most
// one exists per (CompanyID, OpportunityID).
type LeadConsumption struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	OpportunityID string    `json:"opportunity_id"`
	ConsumedAt    time.Time `json:"consumed_at"`
}

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarhub/marketplace/internal/model"
)

func TestPriceList(t *testing.T) {
	useTestConfig(t)

	quotes, err := priceList(newPricer())
	require.NoError(t, err)
	require.Len(t, quotes, 4)
	assert.Equal(t, model.PackagePack50, quotes[2].Package)
	assert.True(t, decimal.NewFromInt(1125).Equal(quotes[2].Total))
}

func TestFormatPriceList(t *testing.T) {
	useTestConfig(t)
	quotes, err := priceList(newPricer())
	require.NoError(t, err)

	var buf bytes.Buffer
	formatPriceList(&buf, quotes, testMoney(t))

	out := buf.String()
	assert.Contains(t, out, "PACKAGE")
	assert.Contains(t, out, "PER LEAD")
	assert.Contains(t, out, "pack100")
	assert.Contains(t, out, "15%")
}

func TestFormatBalance(t *testing.T) {
	var buf bytes.Buffer
	formatBalance(&buf, &model.LeadBalance{CompanyID: "company-1", Available: 19, Consumed: 1, TotalPurchased: 20})

	out := buf.String()
	assert.Contains(t, out, "AVAILABLE")
	assert.Contains(t, out, "company-1")
	assert.Contains(t, out, "19")
	assert.Contains(t, out, "20")
}

func TestFormatOpportunity(t *testing.T) {
	var buf bytes.Buffer
	formatOpportunity(&buf, model.Opportunity{
		ID: "opp-1", ClientName: "Maria Silva", Email: "maria@example.com",
		Phone: "5511987654321", Location: "Campinas",
	})

	out := buf.String()
	assert.Contains(t, out, "maria@example.com")
	assert.Contains(t, out, "5511987654321")
	assert.NotContains(t, out, "Message")
}

func TestFormatPurchases(t *testing.T) {
	var buf bytes.Buffer
	formatPurchases(&buf, []model.LeadPurchase{{
		Package:       model.PackagePack20,
		Quantity:      20,
		TotalAmount:   decimal.NewFromInt(475),
		Status:        model.PaymentCompleted,
		TransactionID: "txn_123",
		PurchasedAt:   time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC),
	}}, testMoney(t))

	out := buf.String()
	assert.Contains(t, out, "TRANSACTION")
	assert.Contains(t, out, "pack20")
	assert.Contains(t, out, "2026-03-02 14:05")
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "txn_123")
}

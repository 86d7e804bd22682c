package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/solarhub/marketplace/internal/config"
	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/ledger"
	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/simulation"
	"github.com/solarhub/marketplace/internal/store"
)

const (
	companyID = "company-1"
	otherID   = "company-2"
	clientID  = "client-1"
)

type testEnv struct {
	store   *store.SQLiteStore
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg config.ServerConfig) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	for _, a := range []model.Account{
		{ID: companyID, Name: "Sol Sul", Role: model.RoleCompany, Active: true},
		{ID: otherID, Name: "Luz Norte", Role: model.RoleCompany, Active: true},
		{ID: clientID, Name: "Maria", Role: model.RoleClient, Active: true},
	} {
		require.NoError(t, st.UpsertAccount(ctx, a))
	}
	for _, o := range []model.Opportunity{
		{ID: "opp-1", CompanyID: companyID, ClientID: clientID, ClientName: "Maria Silva",
			Email: "maria@example.com", Phone: "5511987654321", Location: "Campinas", CreatedAt: time.Now().UTC()},
		{ID: "opp-2", CompanyID: otherID, ClientID: clientID, ClientName: "Maria Silva",
			Email: "maria@example.com", Phone: "5511987654321", Location: "Campinas", CreatedAt: time.Now().UTC()},
	} {
		require.NoError(t, st.CreateOpportunity(ctx, o))
	}

	money, err := export.NewMoneyFormatter("pt-BR", "BRL")
	require.NoError(t, err)

	sim := simulation.NewSimulator(st, simulation.DefaultParameters())
	l := ledger.New(st, ledger.NewPricer(decimal.NewFromInt(25)))
	return &testEnv{store: st, handler: New(st, sim, l, money, cfg).Handler()}
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{
		AllowedOrigins:     []string{"*"},
		RequestTimeoutSecs: 5,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func simulationBody() map[string]any {
	return map[string]any{
		"monthly_consumption_kwh": 450,
		"tariff_per_kwh":          "1.10",
		"coverage_percent":        85,
		"degradation_percent":     "1.2",
		"inflation_percent":       6,
		"horizon_years":           8,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSimulateAll(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	rec := env.do(t, http.MethodPost, "/api/v1/simulations", simulationBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sim model.Simulation
	decodeBody(t, rec, &sim)
	assert.Len(t, sim.Installation.Timeline, 8)
	assert.Len(t, sim.Rental.Timeline, 8)
	assert.Len(t, sim.Projection, 9)
	assert.True(t, sim.TotalInstallCost.Equal(sim.InstallationInvestment))
	assert.True(t, sim.InitialInvestment.Equal(sim.InstallationInvestment))
	assert.Empty(t, sim.CompanyID)
}

func TestSimulateAll_InvalidInput(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	body := simulationBody()
	body["horizon_years"] = 0

	rec := env.do(t, http.MethodPost, "/api/v1/simulations", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rec, &resp)
	assert.Contains(t, resp.Fields, "horizon_years")
}

func TestSimulateAll_BadJSON(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rec := env.do(t, http.MethodPost, "/api/v1/simulations", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := simulationBody()
	body["surprise"] = true
	rec = env.do(t, http.MethodPost, "/api/v1/simulations", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateAll_CompanyProfile(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	require.NoError(t, env.store.SaveProfile(context.Background(), model.CostProfile{
		CompanyID:   companyID,
		PricePerKwp: decimal.NewNullDecimal(decimal.NewFromInt(9000)),
	}))

	plain := env.do(t, http.MethodPost, "/api/v1/simulations", simulationBody())
	require.Equal(t, http.StatusOK, plain.Code)
	var base model.Simulation
	decodeBody(t, plain, &base)

	body := simulationBody()
	body["company_id"] = companyID
	rec := env.do(t, http.MethodPost, "/api/v1/simulations", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scoped model.Simulation
	decodeBody(t, rec, &scoped)

	assert.Equal(t, companyID, scoped.CompanyID)
	assert.True(t, scoped.InstallationInvestment.GreaterThan(base.InstallationInvestment))
}

func TestSimulateAll_CompanyChecks(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	body := simulationBody()
	body["company_id"] = clientID
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/simulations", body).Code)

	body["company_id"] = "nobody"
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/simulations", body).Code)
}

func TestSimulateScenario(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rec := env.do(t, http.MethodPost, "/api/v1/simulations/rental", simulationBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res model.ScenarioResult
	decodeBody(t, rec, &res)
	assert.Equal(t, model.ScenarioRental, res.Scenario)
	assert.Len(t, res.Timeline, 8)

	rec = env.do(t, http.MethodPost, "/api/v1/simulations/lease", simulationBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportSimulation(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rec := env.do(t, http.MethodPost, "/api/v1/simulations/export", simulationBody())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "simulation.xlsx")

	f, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Contains(t, f.Sheet, export.SheetSummary)
	assert.Contains(t, f.Sheet, export.SheetProjection)
}

func TestLeadPackages(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	rec := env.do(t, http.MethodGet, "/api/v1/lead-packages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Packages []struct {
			Package  model.PackageType `json:"package"`
			Quantity int               `json:"quantity"`
			Total    decimal.Decimal   `json:"total"`
			Currency string            `json:"currency"`
		} `json:"packages"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Packages, 4)
	assert.Equal(t, model.PackageSingle, resp.Packages[0].Package)
	assert.Equal(t, model.PackagePack50, resp.Packages[2].Package)
	assert.True(t, decimal.RequireFromString("1125").Equal(resp.Packages[2].Total))
	assert.Equal(t, "BRL", resp.Packages[2].Currency)
}

func TestCompanyEndpoints_AccountChecks(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/companies/nobody/leads/balance", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/v1/companies/"+clientID+"/leads/balance", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/api/v1/companies/"+clientID+"/leads/purchases",
		map[string]string{"package": "pack20"}).Code)
}

func TestLeadFlow(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	base := "/api/v1/companies/" + companyID + "/leads"

	var bal model.LeadBalance
	rec := env.do(t, http.MethodGet, base+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &bal)
	assert.Equal(t, 0, bal.Available)

	// No credit yet.
	rec = env.do(t, http.MethodPost, base+"/opp-1/unlock", nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Leads []model.Opportunity `json:"leads"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Leads, 1)
	assert.False(t, list.Leads[0].Unlocked)
	assert.Equal(t, "ma***@e******.com", list.Leads[0].Email)
	assert.Equal(t, "Campinas", list.Leads[0].Location)

	rec = env.do(t, http.MethodPost, base+"/purchases", map[string]string{"package": "pack20"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var purchase model.LeadPurchase
	decodeBody(t, rec, &purchase)
	assert.Equal(t, 20, purchase.Quantity)
	assert.Equal(t, model.PaymentCompleted, purchase.Status)
	assert.True(t, decimal.NewFromInt(475).Equal(purchase.TotalAmount))

	rec = env.do(t, http.MethodPost, base+"/opp-1/unlock", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var unlocked struct {
		Unlocked    bool              `json:"unlocked"`
		Opportunity model.Opportunity `json:"opportunity"`
	}
	decodeBody(t, rec, &unlocked)
	assert.True(t, unlocked.Unlocked)
	assert.Equal(t, "maria@example.com", unlocked.Opportunity.Email)

	// Unlocking again is free.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, base+"/opp-1/unlock", nil).Code)

	rec = env.do(t, http.MethodGet, base+"/balance", nil)
	decodeBody(t, rec, &bal)
	assert.Equal(t, 19, bal.Available)
	assert.Equal(t, 1, bal.Consumed)
	assert.Equal(t, 20, bal.TotalPurchased)

	rec = env.do(t, http.MethodGet, base+"/opp-1/access", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"company_id":"company-1","opportunity_id":"opp-1","has_access":true}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, base, nil)
	list.Leads = nil
	decodeBody(t, rec, &list)
	require.Len(t, list.Leads, 1)
	assert.True(t, list.Leads[0].Unlocked)
	assert.Equal(t, "Maria Silva", list.Leads[0].ClientName)

	rec = env.do(t, http.MethodGet, base+"/purchases", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Purchases []model.LeadPurchase `json:"purchases"`
	}
	decodeBody(t, rec, &history)
	assert.Len(t, history.Purchases, 1)
}

func TestUnlock_OpportunityMustBelongToCompany(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	base := "/api/v1/companies/" + companyID + "/leads"

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, base+"/opp-2/unlock", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, base+"/missing/unlock", nil).Code)
}

func TestLeadAccess_OpportunityMustBelongToCompany(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	base := "/api/v1/companies/" + companyID + "/leads"

	rec := env.do(t, http.MethodGet, base+"/opp-1/access", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"company_id":"company-1","opportunity_id":"opp-1","has_access":false}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/opp-2/access", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, base+"/missing/access", nil).Code)
}

func TestPurchase_BadRequests(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	path := "/api/v1/companies/" + companyID + "/leads/purchases"

	tests := []struct {
		name string
		body any
	}{
		{"unknown package", map[string]string{"package": "pack7"}},
		{"missing package", map[string]string{}},
		{"malformed", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, path, tt.body).Code)
		})
	}
}

func TestPurchase_ByQuantity(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	rec := env.do(t, http.MethodPost, "/api/v1/companies/"+companyID+"/leads/purchases", map[string]string{"package": "100"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p model.LeadPurchase
	decodeBody(t, rec, &p)
	assert.Equal(t, model.PackagePack100, p.Package)
}

func TestCostProfile(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	path := "/api/v1/companies/" + companyID + "/cost-profile"

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, nil).Code)

	rec := env.do(t, http.MethodPut, path, map[string]any{"price_per_kwp": "-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, path, map[string]any{
		"price_per_kwp": "4500",
		"size_costs":    []map[string]string{{"size_kwp": "3", "cost": "15000"}},
		"line_items":    []map[string]any{{"name": "Monitoring", "kind": "service", "cost": "300", "active": true}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.CostProfile
	decodeBody(t, rec, &p)
	assert.Equal(t, companyID, p.CompanyID)
	require.True(t, p.PricePerKwp.Valid)
	assert.True(t, decimal.NewFromInt(4500).Equal(p.PricePerKwp.Decimal))
	assert.False(t, p.RentalMinimum.Valid)
	assert.Len(t, p.SizeCosts, 1)
	assert.Len(t, p.LineItems, 1)
}

func TestRateLimit(t *testing.T) {
	cfg := defaultServerConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	env := newTestEnv(t, cfg)
	path := "/api/v1/companies/" + companyID + "/leads/purchases"

	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, map[string]string{"package": "single"}).Code)
	rec := env.do(t, http.MethodPost, path, map[string]string{"package": "single"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, defaultServerConfig())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/simulations", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"?limit=25", 25, false},
		{"?limit=abc", 0, true},
		{"?limit=-3", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := queryLimit(httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNilLimiterPassesThrough(t *testing.T) {
	l := newClientLimiter(0, 10)
	assert.Nil(t, l)

	called := false
	h := l.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
}

func TestLimiterIsPerClient(t *testing.T) {
	l := newClientLimiter(0.001, 1)
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
}

func TestFailStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &simulation.ValidationError{Fields: map[string]string{"x": "bad"}}, http.StatusBadRequest},
		{"unknown package", ledger.ErrUnknownPackage, http.StatusBadRequest},
		{"not company", errNotCompany, http.StatusForbidden},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"conflict", store.ErrConflict, http.StatusConflict},
		{"other", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))
		})
	}
}

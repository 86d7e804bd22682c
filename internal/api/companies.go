package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/solarhub/marketplace/internal/ledger"
	"github.com/solarhub/marketplace/internal/model"
	"github.com/solarhub/marketplace/internal/simulation"
)

// checkCompany returns store.ErrNotFound for an unknown account and
// errNotCompany for one that is not an active company.
func (s *Server) checkCompany(ctx context.Context, companyID string) error {
	acct, err := s.store.GetAccount(ctx, companyID)
	if err != nil {
		return err
	}
	if !acct.IsCompany() {
		return eris.Wrapf(errNotCompany, "account %s", companyID)
	}
	return nil
}

func (s *Server) requireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkCompany(r.Context(), chi.URLParam(r, "companyID")); err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	p, err := s.store.GetProfile(r.Context(), companyID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "company has no cost profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var p model.CostProfile
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.CompanyID = chi.URLParam(r, "companyID")
	p.UpdatedAt = time.Now().UTC()

	if err := simulation.ValidateProfile(p); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.SaveProfile(r.Context(), p); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// packageQuote is one priced row of the lead package list.
type packageQuote struct {
	ledger.Quote
	Currency string `json:"currency,omitempty"`
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	currency := ""
	if s.money != nil {
		currency = s.money.Currency()
	}
	pricer := s.ledger.Pricer()
	out := make([]packageQuote, 0, len(ledger.Packages()))
	for _, pkg := range ledger.Packages() {
		q, err := pricer.CalculatePrice(pkg.Type)
		if err != nil {
			fail(w, r, err)
			return
		}
		out = append(out, packageQuote{Quote: q, Currency: currency})
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": out})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opps, err := s.store.ListOpportunities(r.Context(), chi.URLParam(r, "companyID"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]model.Opportunity, len(opps))
	for i, o := range opps {
		out[i] = ledger.MaskOpportunity(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": out})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.GetBalance(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// companyOpportunity loads the opportunity named in the URL and checks that
// it was offered to the company. Other companies' opportunities read as not
// found.
func (s *Server) companyOpportunity(w http.ResponseWriter, r *http.Request) (*model.Opportunity, bool) {
	opp, err := s.store.GetOpportunity(r.Context(), chi.URLParam(r, "opportunityID"))
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	if opp.CompanyID != chi.URLParam(r, "companyID") {
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return opp, true
}

func (s *Server) leadAccess(w http.ResponseWriter, r *http.Request) {
	opp, found := s.companyOpportunity(w, r)
	if !found {
		return
	}
	ok, err := s.ledger.HasAccess(r.Context(), opp.CompanyID, opp.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id":     opp.CompanyID,
		"opportunity_id": opp.ID,
		"has_access":     ok,
	})
}

func (s *Server) unlockLead(w http.ResponseWriter, r *http.Request) {
	opp, found := s.companyOpportunity(w, r)
	if !found {
		return
	}
	companyID := opp.CompanyID

	ok, err := s.ledger.Consume(r.Context(), companyID, opp.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":    "insufficient lead credit",
			"unlocked": false,
		})
		return
	}
	opp.Unlocked = true
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": true, "opportunity": opp})
}

type purchaseRequest struct {
	Package string `json:"package" validate:"required"`
}

func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := simulation.Validator().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "package is required")
		return
	}
	pkg, err := ledger.ParsePackage(req.Package)
	if err != nil {
		fail(w, r, err)
		return
	}

	p, err := s.ledger.Purchase(r.Context(), chi.URLParam(r, "companyID"), pkg)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.ledger.ListPurchases(r.Context(), chi.URLParam(r, "companyID"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if out == nil {
		out = []model.LeadPurchase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"purchases": out})
}

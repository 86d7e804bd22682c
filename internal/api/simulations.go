package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/solarhub/marketplace/internal/export"
	"github.com/solarhub/marketplace/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// simulationRequest is a SimulationInput optionally scoped to a company's
// cost profile.
type simulationRequest struct {
	model.SimulationInput
	CompanyID string `json:"company_id,omitempty"`
}

func (s *Server) decodeSimulation(w http.ResponseWriter, r *http.Request) (simulationRequest, bool) {
	var req simulationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.CompanyID != "" {
		if err := s.checkCompany(r.Context(), req.CompanyID); err != nil {
			fail(w, r, err)
			return req, false
		}
	}
	return req, true
}

func (s *Server) runSimulation(ctx context.Context, req simulationRequest) (*model.Simulation, error) {
	return s.simulator.SimulateAll(ctx, req.SimulationInput, req.CompanyID)
}

func (s *Server) simulateAll(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSimulation(w, r)
	if !ok {
		return
	}
	sim, err := s.runSimulation(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (s *Server) simulateScenario(w http.ResponseWriter, r *http.Request) {
	scenario, err := model.ParseScenario(chi.URLParam(r, "scenario"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown scenario")
		return
	}
	req, ok := s.decodeSimulation(w, r)
	if !ok {
		return
	}
	res, err := s.simulator.Simulate(r.Context(), req.SimulationInput, scenario, req.CompanyID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) exportSimulation(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeSimulation(w, r)
	if !ok {
		return
	}
	sim, err := s.runSimulation(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, sim, s.money); err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="simulation.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

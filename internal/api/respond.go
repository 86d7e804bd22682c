package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/solarhub/marketplace/internal/ledger"
	"github.com/solarhub/marketplace/internal/simulation"
	"github.com/solarhub/marketplace/internal/store"
)

// errNotCompany is returned when a company endpoint is called for an
// account that is not an active installation company.
var errNotCompany = eris.New("api: account is not an active company")

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// fail maps err onto a status code and writes it.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *simulation.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid input", "fields": ve.Fields})
	case errors.Is(err, ledger.ErrUnknownPackage):
		writeError(w, http.StatusBadRequest, "unknown lead package")
	case errors.Is(err, errNotCompany):
		writeError(w, http.StatusForbidden, "account is not an active company")
	case store.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found")
	case store.IsConflict(err):
		writeError(w, http.StatusConflict, "concurrent update, try again")
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return eris.Wrap(err, "invalid JSON body")
	}
	return nil
}

// queryLimit reads the optional "limit" query parameter. Zero means the
// store default.
func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Errorf("limit must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

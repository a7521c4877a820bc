// Package api exposes the emulated bookkeeping backend over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zahanm/collect-beans/internal/emulator/ledger"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, bookkeeper.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// writeError maps a ledger error to a response. Caller mistakes become 400s.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrBadRequest) {
		writeJSONError(w, http.StatusBadRequest, "bad_request", detail(err))
		return
	}
	slog.Error("request failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "server_error", err.Error())
}

// detail strips the "bad request: " prefix from a wrapped ledger error.
func detail(err error) string {
	return strings.TrimPrefix(err.Error(), ledger.ErrBadRequest.Error()+": ")
}

// maxParam reads the optional max query parameter.
func maxParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("max")
	if raw == "" {
		return ledger.DefaultMax, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

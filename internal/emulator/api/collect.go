package api

import (
	"encoding/json"
	"net/http"

	"github.com/zahanm/collect-beans/internal/emulator/ledger"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

// CollectHandler handles the /collect endpoints.
type CollectHandler struct {
	collector *ledger.Collector
}

// NewCollectHandler creates a new CollectHandler.
func NewCollectHandler(c *ledger.Collector) *CollectHandler {
	return &CollectHandler{collector: c}
}

// Run handles POST /collect/run.
func (h *CollectHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req bookkeeper.CollectRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	resp, err := h.collector.Run(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Backup handles GET /collect/backup and, to take a backup, POST.
func (h *CollectHandler) Backup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.collector.Backup(r.Method == http.MethodPost)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// LastImported handles GET /collect/last-imported?accounts=...
func (h *CollectHandler) LastImported(w http.ResponseWriter, r *http.Request) {
	resp, err := h.collector.LastImported(r.URL.Query()["accounts"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// OtherImporters handles GET /collect/other-importers.
func (h *CollectHandler) OtherImporters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.OtherImporters())
}

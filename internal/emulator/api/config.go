package api

import (
	"net/http"

	"github.com/zahanm/collect-beans/internal/emulator/ledger"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

// ConfigHandler handles the /config endpoints.
type ConfigHandler struct {
	ledger *ledger.Ledger
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(l *ledger.Ledger) *ConfigHandler {
	return &ConfigHandler{ledger: l}
}

// Reload handles POST /config/reload.
func (h *ConfigHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Reload(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookkeeper.ReloadResponse{Success: true})
}

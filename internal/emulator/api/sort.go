package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/zahanm/collect-beans/internal/emulator/ledger"
	"github.com/zahanm/collect-beans/pkg/beancount"
	"github.com/zahanm/collect-beans/pkg/bookkeeper"
)

// SortHandler handles the /sort endpoints.
type SortHandler struct {
	session *ledger.Session
}

// NewSortHandler creates a new SortHandler.
func NewSortHandler(s *ledger.Session) *SortHandler {
	return &SortHandler{session: s}
}

// Progress handles GET /sort/progress.
func (h *SortHandler) Progress(w http.ResponseWriter, r *http.Request) {
	resp, err := h.session.Progress()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetDestination handles POST /sort/progress with a destination_file form field.
func (h *SortHandler) SetDestination(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse form")
		return
	}

	resp, err := h.session.SetDestination(r.PostForm.Get("destination_file"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Next handles GET /sort/next.
func (h *SortHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.next(w, r, nil)
}

// Submit handles POST /sort/next.
func (h *SortHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req bookkeeper.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	h.next(w, r, &req)
}

func (h *SortHandler) next(w http.ResponseWriter, r *http.Request, req *bookkeeper.SubmitRequest) {
	max, ok := maxParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid max")
		return
	}

	var mods []beancount.Mod
	if req != nil {
		mods = req.Sorted
	}

	resp, err := h.session.Next(mods, max)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Link handles GET /sort/link.
func (h *SortHandler) Link(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid amount")
		return
	}

	resp, err := h.session.Link(q.Get("txnID"), amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Commit handles GET and POST /sort/commit. Only a POST with write=true
// writes the file.
func (h *SortHandler) Commit(w http.ResponseWriter, r *http.Request) {
	write := r.URL.Query().Get("write") == "true"
	if write && r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "write requires POST")
		return
	}

	resp, err := h.session.Commit(write)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Check handles POST /sort/check.
func (h *SortHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp, err := h.session.Check()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sorted handles GET /sort/sorted.
func (h *SortHandler) Sorted(w http.ResponseWriter, r *http.Request) {
	max, ok := maxParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid max")
		return
	}
	writeJSON(w, http.StatusOK, h.session.Sorted(max))
}

// Revert handles POST /sort/sorted?txnID=.
func (h *SortHandler) Revert(w http.ResponseWriter, r *http.Request) {
	max, ok := maxParam(r)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid max")
		return
	}

	resp, err := h.session.Revert(r.URL.Query().Get("txnID"), max)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

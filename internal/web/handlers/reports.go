package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/store"
)

// ReportsHandler serves the aggregate attendance reports.
type ReportsHandler struct {
	st  store.Store
	log *zap.Logger
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(st store.Store, log *zap.Logger) *ReportsHandler {
	return &ReportsHandler{st: st, log: log}
}

// Summary handles GET /reports/summary.
func (h *ReportsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.st.AttendanceSummary(r.Context(), time.Now())
	if err != nil {
		h.log.Error("summary report failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "summary report failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Daily handles GET /reports/daily?days=N (default 7, max 90).
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 90 {
			days = n
		}
	}

	counts, err := h.st.DailyCounts(r.Context(), time.Now(), days)
	if err != nil {
		h.log.Error("daily report failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "daily report failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"daily": counts})
}

// Identities handles GET /reports/identities.
func (h *ReportsHandler) Identities(w http.ResponseWriter, r *http.Request) {
	totals, err := h.st.IdentityTotals(r.Context())
	if err != nil {
		h.log.Error("identity report failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "identity report failed")
		return
	}
	if totals == nil {
		totals = []store.IdentityTotal{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"identities": totals})
}

// Sessions handles GET /reports/sessions.
func (h *ReportsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	totals, err := h.st.SessionTotals(r.Context())
	if err != nil {
		h.log.Error("session report failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "session report failed")
		return
	}
	if totals == nil {
		totals = []store.SessionTotal{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": totals})
}

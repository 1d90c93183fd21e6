package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/attendance"
	"github.com/eduvision/attendance/internal/store"
)

// AttendanceHandler serves attendance taking and recent history.
type AttendanceHandler struct {
	svc *attendance.Service
	st  store.Store
	log *zap.Logger
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(svc *attendance.Service, st store.Store, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, st: st, log: log}
}

// TakeResponse is the per-image attendance result.
type TakeResponse struct {
	SessionKey string              `json:"session_key"`
	Results    []attendance.Result `json:"results"`
	Recognized int                 `json:"recognized"`
}

// Take handles POST /attendance: multipart form with session_key and one
// image. Every detected face gets a match decision; accepted matches also
// get an attendance outcome. An image with no faces is a normal, empty
// result.
func (h *AttendanceHandler) Take(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	sessionKey := strings.TrimSpace(r.FormValue("session_key"))
	if sessionKey == "" {
		sessionKey = "general"
	}

	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		respondError(w, http.StatusBadRequest, "exactly one image is required")
		return
	}
	image, err := readUpload(files[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded image")
		return
	}

	results, err := h.svc.TakeAttendance(r.Context(), sessionKey, image, time.Now())
	if err != nil {
		h.log.Error("attendance processing failed",
			zap.String("session_key", sanitizeForLog(sessionKey)),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "attendance processing failed")
		return
	}

	recognized := 0
	for _, res := range results {
		if res.Decision.Accepted {
			recognized++
		}
	}

	respondJSON(w, http.StatusOK, TakeResponse{
		SessionKey: sessionKey,
		Results:    results,
		Recognized: recognized,
	})
}

// Recent handles GET /attendance/recent.
func (h *AttendanceHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.st.ListRecentAttendance(r.Context(), limit)
	if err != nil {
		h.log.Error("listing attendance failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing attendance failed")
		return
	}
	if records == nil {
		records = []store.AttendanceRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

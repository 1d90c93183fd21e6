package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/attendance"
	"github.com/eduvision/attendance/internal/recognition"
	"github.com/eduvision/attendance/internal/store"
)

// IdentitiesHandler serves enrollment and identity management.
type IdentitiesHandler struct {
	svc *attendance.Service
	st  store.Store
	log *zap.Logger
}

// NewIdentitiesHandler creates an identities handler.
func NewIdentitiesHandler(svc *attendance.Service, st store.Store, log *zap.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{svc: svc, st: st, log: log}
}

// EnrollResponse is returned from a successful enrollment.
type EnrollResponse struct {
	Identity *store.Identity  `json:"identity"`
	Similar  []store.Neighbor `json:"similar,omitempty"`
}

// Enroll handles POST /identities: multipart form with identity_id, name
// and one or more image files.
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	identityID := strings.TrimSpace(r.FormValue("identity_id"))
	name := strings.TrimSpace(r.FormValue("name"))
	files := r.MultipartForm.File["image"]

	if identityID == "" || name == "" || len(files) == 0 {
		respondError(w, http.StatusBadRequest, "identity_id, name and at least one image are required")
		return
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read uploaded image")
			return
		}
		images = append(images, data)
	}

	identity, similar, err := h.svc.EnrollImages(r.Context(), identityID, name, images, time.Now())
	switch {
	case errors.Is(err, store.ErrIdentityExists):
		respondError(w, http.StatusConflict, "identity already exists")
		return
	case errors.Is(err, attendance.ErrNoFaceDetected), errors.Is(err, recognition.ErrNoUsableSamples):
		respondError(w, http.StatusUnprocessableEntity, "no usable face in uploaded images")
		return
	case err != nil:
		h.log.Error("enrollment failed", zap.String("identity_id", sanitizeForLog(identityID)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	respondJSON(w, http.StatusCreated, EnrollResponse{Identity: identity, Similar: similar})
}

// List handles GET /identities. The optional q parameter filters by
// normalized display name.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.st.ListIdentities(r.Context())
	if err != nil {
		h.log.Error("listing identities failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "listing identities failed")
		return
	}

	if q := recognition.NormalizeName(r.URL.Query().Get("q")); q != "" {
		filtered := identities[:0]
		for _, id := range identities {
			if strings.Contains(recognition.NormalizeName(id.Name), q) {
				filtered = append(filtered, id)
			}
		}
		identities = filtered
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"identities": identities,
		"count":      len(identities),
	})
}

// Delete handles DELETE /identities/{id}. Combined with Enroll it is the
// re-enrollment path: canonical embeddings are replaced, never merged.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.svc.DeleteIdentity(r.Context(), id)
	if errors.Is(err, store.ErrIdentityNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		h.log.Error("deleting identity failed", zap.String("identity_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "deleting identity failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Similar handles GET /identities/{id}/similar: enrolled identities whose
// canonical embedding is closest to the given one. Useful for spotting
// double enrollments.
func (h *IdentitiesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	neighbors, err := h.svc.SimilarIdentities(r.Context(), id, limit)
	if errors.Is(err, store.ErrIdentityNotFound) {
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	if err != nil {
		h.log.Error("similar lookup failed", zap.String("identity_id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "similar lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"similar": neighbors})
}

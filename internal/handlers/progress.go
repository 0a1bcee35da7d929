package handlers

import (
	"encoding/json"
	"net/http"

	"formaflix-backend/internal/middleware"
	"formaflix-backend/internal/models"
	"formaflix-backend/internal/services"
)

type ProgressHandler struct {
	learning *services.LearningService
}

func NewProgressHandler(learning *services.LearningService) *ProgressHandler {
	return &ProgressHandler{learning: learning}
}

func (h *ProgressHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req models.ProgressUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	progress, err := h.learning.UpsertProgress(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *ProgressHandler) Library(w http.ResponseWriter, r *http.Request) {
	items, err := h.learning.Library(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"formaflix-backend/internal/middleware"
	"formaflix-backend/internal/services"
)

type LessonHandler struct {
	learning *services.LearningService
}

func NewLessonHandler(learning *services.LearningService) *LessonHandler {
	return &LessonHandler{learning: learning}
}

// Playback hands out the lesson's playback descriptor. Anonymous requests
// reach here too; the service rejects them unless the lesson is a free
// preview.
func (h *LessonHandler) Playback(w http.ResponseWriter, r *http.Request) {
	lessonID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	desc, err := h.learning.LessonPlayback(r.Context(), middleware.GetUserID(r.Context()), lessonID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"formaflix-backend/internal/middleware"
	"formaflix-backend/internal/models"
	"formaflix-backend/internal/repository"
	"formaflix-backend/internal/services"
)

type CourseHandler struct {
	courses  *repository.CourseRepo
	lessons  *repository.LessonRepo
	learning *services.LearningService
}

func NewCourseHandler(courses *repository.CourseRepo, lessons *repository.LessonRepo, learning *services.LearningService) *CourseHandler {
	return &CourseHandler{courses: courses, lessons: lessons, learning: learning}
}

func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

func (h *CourseHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Course not found", r))
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	lessons, err := h.lessons.ListByCourse(r.Context(), course.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"course":  course,
		"lessons": lessons,
	})
}

func (h *CourseHandler) TrailerPlayback(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	desc, err := h.learning.TrailerPlayback(r.Context(), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	enrollment, err := h.learning.Enroll(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollment)
}

// Admin CRUD

type createCourseRequest struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Synopsis    string `json:"synopsis"`
	Description string `json:"description"`
	PriceCents  int    `json:"price_cents"`
	Currency    string `json:"currency"`
	IsActive    bool   `json:"is_active"`
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fieldErrors := make(map[string]string)
	if req.Title == "" {
		fieldErrors["title"] = "Title is required"
	}
	if req.Slug == "" {
		fieldErrors["slug"] = "Slug is required"
	}
	if len(fieldErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fieldErrors, r))
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}

	course := &models.Course{
		Title:       req.Title,
		Slug:        req.Slug,
		Synopsis:    req.Synopsis,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		IsActive:    req.IsActive,
	}
	if err := h.courses.Create(r.Context(), course); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

type createLessonRequest struct {
	Title         string `json:"title"`
	Position      int    `json:"position"`
	SourceURL     string `json:"source_url"`
	FilePath      string `json:"file_path"`
	IsFreePreview bool   `json:"is_free_preview"`
}

func (h *CourseHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	var req createLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"title": "Title is required"}, r))
		return
	}

	if _, err := h.courses.GetByID(r.Context(), courseID); errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Course not found", r))
		return
	} else if err != nil {
		handleServiceError(w, r, err)
		return
	}

	lesson := &models.Lesson{
		CourseID:      courseID,
		Title:         req.Title,
		Position:      req.Position,
		SourceURL:     req.SourceURL,
		FilePath:      req.FilePath,
		IsFreePreview: req.IsFreePreview,
	}
	if err := h.lessons.Create(r.Context(), lesson); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"formaflix-backend/internal/services"
)

// StreamAdminHandler exposes the operator surface for video ingestion:
// registering sources, forcing refreshes and resetting broken assets. Routes
// are keyed by entity kind ("lesson" or "trailer") plus entity id.
type StreamAdminHandler struct {
	ingestion *services.IngestionService
}

func NewStreamAdminHandler(ingestion *services.IngestionService) *StreamAdminHandler {
	return &StreamAdminHandler{ingestion: ingestion}
}

type ingestRequest struct {
	SourceURL     string `json:"source_url"`
	FilePath      string `json:"file_path"`
	Title         string `json:"title"`
	RequireSigned *bool  `json:"require_signed"`
}

func (h *StreamAdminHandler) IngestFromURL(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	assetID, err := h.ingestion.IngestFromURL(r.Context(), kind, entityID, req.SourceURL, req.Title, req.RequireSigned)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"asset_id": assetID})
}

func (h *StreamAdminHandler) CreateDirectUpload(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	slot, err := h.ingestion.CreateDirectUpload(r.Context(), kind, entityID, req.Title, req.RequireSigned)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, slot)
}

func (h *StreamAdminHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	assetID, err := h.ingestion.UploadLocalFile(r.Context(), kind, entityID, req.FilePath, req.Title, req.RequireSigned)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"asset_id": assetID})
}

func (h *StreamAdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	res, err := h.ingestion.Refresh(r.Context(), kind, entityID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"outcome": res.Outcome.String()})
}

func (h *StreamAdminHandler) SetRequireSigned(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	var req struct {
		Required bool `json:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.ingestion.SetRequireSigned(r.Context(), kind, entityID, req.Required); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StreamAdminHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	asset, err := h.ingestion.GetAsset(r.Context(), kind, entityID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *StreamAdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	kind, entityID, ok := entityParams(w, r)
	if !ok {
		return
	}

	if err := h.ingestion.Reset(r.Context(), kind, entityID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func entityParams(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	kind := chi.URLParam(r, "kind")
	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid entity ID", r))
		return "", uuid.Nil, false
	}
	return kind, entityID, true
}

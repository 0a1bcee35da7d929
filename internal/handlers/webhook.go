package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"formaflix-backend/internal/services"
	"formaflix-backend/internal/stream"
)

// WebhookHandler receives status notifications from the streaming platform.
// The endpoint is authenticated by a secret path segment; requests with a
// wrong or missing secret get a 403 and are never parsed.
type WebhookHandler struct {
	secret     string
	reconciler *services.Reconciler
	log        *logrus.Logger
}

func NewWebhookHandler(secret string, reconciler *services.Reconciler, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{secret: secret, reconciler: reconciler, log: log}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Invalid webhook secret", r))
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid JSON body", r))
		return
	}

	upd, err := stream.Normalize(payload)
	if err != nil {
		if errors.Is(err, stream.ErrUnrecognizedPayload) {
			// The platform retries on non-2xx; an unknown shape will not
			// become known on retry, so acknowledge and move on.
			h.log.Warn("Webhook payload not recognized, acknowledging anyway")
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid webhook payload", r))
		return
	}

	res, err := h.reconciler.Apply(r.Context(), upd)
	if err != nil {
		h.log.WithError(err).WithField("asset_id", upd.AssetID).Error("Failed to apply webhook update")
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to apply update", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"outcome": res.Outcome.String(),
	})
}

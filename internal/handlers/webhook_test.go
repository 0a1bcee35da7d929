package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/services"
	"formaflix-backend/internal/stream"
)

type memStore struct {
	kind    string
	entity  uuid.UUID
	assetID string
	ready   bool
}

func (m *memStore) Kind() string { return m.kind }

func (m *memStore) ApplyByAssetID(_ context.Context, assetID string, upd stream.Update) (models.StreamApply, error) {
	if assetID != m.assetID {
		return models.StreamApply{}, nil
	}
	return m.apply(upd), nil
}

func (m *memStore) ApplyByEntityID(_ context.Context, id uuid.UUID, upd stream.Update) (models.StreamApply, error) {
	if id != m.entity {
		return models.StreamApply{}, nil
	}
	return m.apply(upd), nil
}

func (m *memStore) apply(upd stream.Update) models.StreamApply {
	res := models.StreamApply{Matched: true, EntityID: m.entity}
	if upd.Ready && !m.ready {
		m.ready = true
		res.Changed = true
		res.BecameReady = true
	}
	return res
}

func webhookServer(t *testing.T, secret string, store services.AssetStore) *httptest.Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	rec := services.NewReconciler(nil, log, store)
	h := NewWebhookHandler(secret, rec, log)

	r := chi.NewRouter()
	r.Post("/webhooks/stream/{secret}", h.Receive)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postWebhook(t *testing.T, srv *httptest.Server, secret, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/webhooks/stream/"+secret, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	store := &memStore{kind: "lesson", entity: uuid.New(), assetID: "asset-1"}
	srv := webhookServer(t, "s3cret", store)

	resp := postWebhook(t, srv, "wrong", `{"uid":"asset-1","status":{"state":"ready"}}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, store.ready, "a rejected request must not touch state")
}

func TestWebhookRejectsWhenSecretUnconfigured(t *testing.T) {
	srv := webhookServer(t, "", &memStore{kind: "lesson"})

	resp := postWebhook(t, srv, "", `{"uid":"asset-1"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	srv := webhookServer(t, "s3cret", &memStore{kind: "lesson"})

	resp := postWebhook(t, srv, "s3cret", `{"uid": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookAcknowledgesUnknownShape(t *testing.T) {
	srv := webhookServer(t, "s3cret", &memStore{kind: "lesson"})

	resp := postWebhook(t, srv, "s3cret", `{"something":"else"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ignored")
}

func TestWebhookAppliesUpdate(t *testing.T) {
	store := &memStore{kind: "lesson", entity: uuid.New(), assetID: "asset-1"}
	srv := webhookServer(t, "s3cret", store)

	resp := postWebhook(t, srv, "s3cret", `{"uid":"asset-1","status":{"state":"ready"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, store.ready)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "updated")

	// Redelivery is acknowledged but changes nothing.
	resp = postWebhook(t, srv, "s3cret", `{"uid":"asset-1","status":{"state":"ready"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "no_op")
}

func TestWebhookUnmatchedAssetStillOK(t *testing.T) {
	srv := webhookServer(t, "s3cret", &memStore{kind: "lesson", entity: uuid.New(), assetID: "other"})

	resp := postWebhook(t, srv, "s3cret", `{"uid":"ghost","status":{"state":"ready"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "no_matching_entity")
}

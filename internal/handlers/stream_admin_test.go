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

// stubEntityRepo holds a single ingested asset so service calls reach the
// platform client.
type stubEntityRepo struct {
	asset models.VideoAsset
}

func (s *stubEntityRepo) Kind() string { return "lesson" }

func (s *stubEntityRepo) SetStreamAsset(context.Context, uuid.UUID, string, bool) error { return nil }
func (s *stubEntityRepo) ResetStreamAsset(context.Context, uuid.UUID) error             { return nil }

func (s *stubEntityRepo) GetStreamAsset(context.Context, uuid.UUID) (models.VideoAsset, error) {
	return s.asset, nil
}

func (s *stubEntityRepo) SetRequireSignedFlag(context.Context, uuid.UUID, bool) error { return nil }

func (s *stubEntityRepo) ListPendingAssets(context.Context, int) ([]models.PendingAsset, error) {
	return nil, nil
}

// failingClient reports the same error from every platform call.
type failingClient struct {
	err error
}

func (f *failingClient) CreateFromURL(context.Context, string, stream.Policy) (string, error) {
	return "", f.err
}

func (f *failingClient) CreateDirectUpload(context.Context, stream.Policy) (stream.DirectUpload, error) {
	return stream.DirectUpload{}, f.err
}

func (f *failingClient) UploadFile(context.Context, string, stream.Policy) (string, error) {
	return "", f.err
}

func (f *failingClient) FetchStatus(context.Context, string) (stream.Update, error) {
	return stream.Update{}, f.err
}

func (f *failingClient) SetRequireSigned(context.Context, string, bool) error { return f.err }
func (f *failingClient) Delete(context.Context, string) error                 { return f.err }

func streamAdminServer(t *testing.T, client services.IngestionClient, asset models.VideoAsset) *httptest.Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := &stubEntityRepo{asset: asset}
	rec := services.NewReconciler(nil, log)
	svc := services.NewIngestionService(client, rec, &stream.Config{}, log, repo)
	h := NewStreamAdminHandler(svc)

	r := chi.NewRouter()
	r.Post("/admin/stream/{kind}/{id}/refresh", h.Refresh)
	r.Post("/admin/stream/{kind}/{id}/ingest-url", h.IngestFromURL)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshSurfacesPlatformFailure(t *testing.T) {
	client := &failingClient{err: &stream.IngestionError{
		Op:     "status fetch",
		Status: http.StatusForbidden,
		Body:   "authentication error: invalid api token",
	}}
	srv := streamAdminServer(t, client, models.VideoAsset{AssetID: "asset-1"})

	resp, err := http.Post(srv.URL+"/admin/stream/lesson/"+uuid.NewString()+"/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "INGESTION_FAILED")
	assert.Contains(t, string(body), "403", "the platform's status code must reach the operator")
	assert.Contains(t, string(body), "invalid api token", "the platform's response body must reach the operator")
}

func TestIngestFromURLSurfacesPlatformFailure(t *testing.T) {
	client := &failingClient{err: &stream.IngestionError{
		Op:     "copy",
		Status: http.StatusUnprocessableEntity,
		Body:   "source url unreachable",
	}}
	srv := streamAdminServer(t, client, models.VideoAsset{})

	resp, err := http.Post(srv.URL+"/admin/stream/lesson/"+uuid.NewString()+"/ingest-url",
		"application/json", strings.NewReader(`{"source_url":"https://cdn.example.com/v.mp4"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "source url unreachable")
}

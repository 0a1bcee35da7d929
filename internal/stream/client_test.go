package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(cfg *Config, baseURL string) *Client {
	c := NewClient(cfg)
	c.baseURL = baseURL
	return c
}

func TestCreateFromURL(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/copy", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"uid": "asset-1"}})
	}))
	defer srv.Close()

	c := testClient(&Config{APIToken: "tok"}, srv.URL)

	assetID, err := c.CreateFromURL(context.Background(), "https://cdn.example.com/v.mp4", Policy{
		RequireSignedPlayback: true,
		Meta:                  map[string]string{"kind": "lesson"},
	})
	require.NoError(t, err)
	assert.Equal(t, "asset-1", assetID)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "https://cdn.example.com/v.mp4", gotBody["url"])
	assert.Equal(t, true, gotBody["requireSignedURLs"])
	assert.Equal(t, float64(14400), gotBody["maxDurationSeconds"])
	assert.Equal(t, map[string]any{"kind": "lesson"}, gotBody["meta"])
}

func TestCreateFromURLErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad token"}]}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := testClient(&Config{APIToken: "tok"}, srv.URL)

	_, err := c.CreateFromURL(context.Background(), "https://cdn.example.com/v.mp4", Policy{})
	var ierr *IngestionError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, http.StatusForbidden, ierr.Status)
	assert.Contains(t, ierr.Body, "bad token")
}

func TestCreateDirectUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/direct_upload", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"uid":       "asset-2",
			"uploadURL": "https://upload.example.com/slot",
		}})
	}))
	defer srv.Close()

	c := testClient(&Config{APIToken: "tok"}, srv.URL)

	slot, err := c.CreateDirectUpload(context.Background(), Policy{})
	require.NoError(t, err)
	assert.Equal(t, "asset-2", slot.AssetID)
	assert.Equal(t, "https://upload.example.com/slot", slot.UploadURL)
}

func TestFetchStatusNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/asset-3", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"uid":      "asset-3",
			"status":   map[string]any{"state": "ready"},
			"duration": 44.2,
			"playback": map[string]any{"hls": map[string]any{"id": "pb3"}},
		}})
	}))
	defer srv.Close()

	c := testClient(&Config{APIToken: "tok"}, srv.URL)

	upd, err := c.FetchStatus(context.Background(), "asset-3")
	require.NoError(t, err)
	assert.Equal(t, "asset-3", upd.AssetID)
	assert.True(t, upd.Ready)
	assert.Equal(t, "pb3", upd.PlaybackID)
	assert.Equal(t, 44, upd.DurationSeconds)
}

func TestSetRequireSigned(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/asset-4", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	c := testClient(&Config{APIToken: "tok"}, srv.URL)

	require.NoError(t, c.SetRequireSigned(context.Background(), "asset-4", true))
	assert.Equal(t, true, gotBody["requireSignedURLs"])
}

func TestUploadFileDirectPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("tiny video bytes"), 0o644))

	var pushed []byte

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/direct_upload", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"uid":       "asset-5",
			"uploadURL": srv.URL + "/push",
		}})
	})
	mux.HandleFunc("/push", func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"), "slot URLs are pre-authorized")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		buf := new(strings.Builder)
		_, err = io.Copy(buf, f)
		require.NoError(t, err)
		pushed = []byte(buf.String())
	})

	c := testClient(&Config{APIToken: "tok", DirectUploadMaxBytes: 1024}, srv.URL)

	assetID, err := c.UploadFile(context.Background(), path, Policy{})
	require.NoError(t, err)
	assert.Equal(t, "asset-5", assetID)
	assert.Equal(t, "tiny video bytes", string(pushed))
}

func TestEncodeMetaTruncation(t *testing.T) {
	longKey := strings.Repeat("k", 150)
	longVal := strings.Repeat("v", 600)

	out := encodeMeta(map[string]string{longKey: longVal, "short": "ok"})
	require.Len(t, out, 2)
	assert.Equal(t, "ok", out["short"])
	assert.Contains(t, out, longKey[:100])
	assert.Len(t, out[longKey[:100]], 500)
}

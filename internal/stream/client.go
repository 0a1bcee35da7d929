package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const controlTimeout = 60 * time.Second

// Client talks to the video platform's control API: registering assets,
// fetching their status and patching their flags. It never retries on its
// own; retry policy belongs to the caller.
type Client struct {
	cfg *Config

	// control is bounded for control-plane calls; upload has no global
	// timeout because large transfers are bounded per chunk instead.
	control *http.Client
	upload  *http.Client

	baseURL string
}

// DirectUpload is a one-shot upload slot. The asset id is assigned up front;
// the platform starts processing once the client pushes the file to the URL.
type DirectUpload struct {
	AssetID   string `json:"asset_id"`
	UploadURL string `json:"upload_url"`
}

func NewClient(cfg *Config) *Client {
	return &Client{
		cfg:     cfg,
		control: &http.Client{Timeout: controlTimeout},
		upload:  &http.Client{},
		baseURL: fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/stream", cfg.AccountID),
	}
}

// CreateFromURL registers an asset by having the platform copy the source
// URL. The returned asset id is available immediately; readiness arrives
// later via webhook or polling.
func (c *Client) CreateFromURL(ctx context.Context, sourceURL string, pol Policy) (string, error) {
	body := map[string]any{
		"url":               sourceURL,
		"requireSignedURLs": pol.RequireSignedPlayback,
	}
	if max := c.policyMaxDuration(pol); max > 0 {
		body["maxDurationSeconds"] = max
	}
	if meta := encodeMeta(pol.Meta); meta != nil {
		body["meta"] = meta
	}

	var result struct {
		UID string `json:"uid"`
	}
	if err := c.do(ctx, "copy", http.MethodPost, c.baseURL+"/copy", body, &result); err != nil {
		return "", err
	}
	if result.UID == "" {
		return "", fmt.Errorf("stream: copy response carried no uid")
	}
	return result.UID, nil
}

// CreateDirectUpload reserves an upload slot for a client-side push.
func (c *Client) CreateDirectUpload(ctx context.Context, pol Policy) (DirectUpload, error) {
	body := map[string]any{
		"requireSignedURLs":  pol.RequireSignedPlayback,
		"maxDurationSeconds": c.policyMaxDuration(pol),
	}
	if meta := encodeMeta(pol.Meta); meta != nil {
		body["meta"] = meta
	}

	var result struct {
		UID       string `json:"uid"`
		UploadURL string `json:"uploadURL"`
	}
	if err := c.do(ctx, "direct_upload", http.MethodPost, c.baseURL+"/direct_upload", body, &result); err != nil {
		return DirectUpload{}, err
	}
	return DirectUpload{AssetID: result.UID, UploadURL: result.UploadURL}, nil
}

// UploadFile sends a local file, choosing a direct upload below the
// configured size threshold and the resumable protocol above it. Either way
// the platform-assigned asset id is returned synchronously.
func (c *Client) UploadFile(ctx context.Context, path string, pol Policy) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stream: stat upload file: %w", err)
	}

	if info.Size() <= c.cfg.directUploadMaxBytes() {
		slot, err := c.CreateDirectUpload(ctx, pol)
		if err != nil {
			return "", err
		}
		if err := c.pushToDirectSlot(ctx, slot.UploadURL, path); err != nil {
			return "", err
		}
		return slot.AssetID, nil
	}

	return c.resumableUpload(ctx, path, info.Size(), pol)
}

// FetchStatus reads the asset's current state from the control API. The
// result goes through the same normalizer as webhook bodies, so polling and
// push delivery cannot disagree on semantics.
func (c *Client) FetchStatus(ctx context.Context, assetID string) (Update, error) {
	var result map[string]any
	if err := c.do(ctx, "status fetch", http.MethodGet, c.baseURL+"/"+assetID, nil, &result); err != nil {
		return Update{}, err
	}
	return Normalize(result)
}

// SetRequireSigned flips requireSignedURLs on an existing asset, e.g. when
// content moves between free preview and paid access.
func (c *Client) SetRequireSigned(ctx context.Context, assetID string, required bool) error {
	body := map[string]any{"requireSignedURLs": required}
	return c.do(ctx, "patch", http.MethodPatch, c.baseURL+"/"+assetID, body, nil)
}

// Delete removes the asset from the platform.
func (c *Client) Delete(ctx context.Context, assetID string) error {
	return c.do(ctx, "delete", http.MethodDelete, c.baseURL+"/"+assetID, nil, nil)
}

func (c *Client) policyMaxDuration(pol Policy) int {
	if pol.MaxDurationSeconds > 0 {
		return pol.MaxDurationSeconds
	}
	return c.cfg.maxDuration()
}

func (c *Client) pushToDirectSlot(ctx context.Context, uploadURL, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("stream: open upload file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
	if err != nil {
		return err
	}
	// The slot URL is pre-authorized; no bearer token here.
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.upload.Do(req)
	if err != nil {
		return fmt.Errorf("stream: direct upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &IngestionError{Op: "direct upload", Status: resp.StatusCode, Body: readBody(resp.Body)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, url string, body, result any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("stream: encode %s request: %w", op, err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.control.Do(req)
	if err != nil {
		return fmt.Errorf("stream: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("stream: read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &IngestionError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}
	if result == nil {
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("stream: decode %s response: %w", op, err)
	}
	if len(envelope.Result) == 0 {
		return fmt.Errorf("stream: %s response missing result", op)
	}
	return json.Unmarshal(envelope.Result, result)
}

func readBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(raw)
}

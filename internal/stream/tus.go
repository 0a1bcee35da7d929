package stream

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// The platform's resumable ingestion speaks the tus protocol: one creation
// request advertising the total length, then sequential PATCHes carrying
// Upload-Offset chunks. The creation response's Location is the upload URL
// and its last path segment doubles as the asset id.

const (
	tusVersion      = "1.0.0"
	chunkTimeout    = 5 * time.Minute
	chunkMaxRetries = 5
)

func (c *Client) resumableUpload(ctx context.Context, path string, size int64, pol Policy) (string, error) {
	uploadURL, assetID, err := c.createResumableUpload(ctx, size, filepath.Base(path), pol)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("stream: open upload file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, c.cfg.chunkSizeBytes())
	var offset int64
	for offset < size {
		n, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return "", fmt.Errorf("stream: read chunk at offset %d: %w", offset, err)
		}
		if err := c.patchChunk(ctx, uploadURL, offset, buf[:n]); err != nil {
			return "", err
		}
		offset += int64(n)
	}

	return assetID, nil
}

func (c *Client) createResumableUpload(ctx context.Context, size int64, name string, pol Policy) (uploadURL, assetID string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Tus-Resumable", tusVersion)
	req.Header.Set("Upload-Length", strconv.FormatInt(size, 10))
	req.Header.Set("Upload-Metadata", encodeTusMetadata(c.tusMetadata(name, pol)))

	resp, err := c.control.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("stream: create resumable upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", "", &IngestionError{Op: "resumable create", Status: resp.StatusCode, Body: readBody(resp.Body)}
	}

	uploadURL = resp.Header.Get("Location")
	if uploadURL == "" {
		return "", "", fmt.Errorf("stream: resumable create response missing Location")
	}

	assetID = resp.Header.Get("stream-media-id")
	if assetID == "" {
		trimmed := strings.TrimRight(uploadURL, "/")
		assetID = trimmed[strings.LastIndexByte(trimmed, '/')+1:]
	}
	if assetID == "" {
		return "", "", fmt.Errorf("stream: cannot derive asset id from upload location %q", uploadURL)
	}
	return uploadURL, assetID, nil
}

func (c *Client) tusMetadata(name string, pol Policy) map[string]string {
	meta := map[string]string{
		"name":               name,
		"maxDurationSeconds": strconv.Itoa(c.policyMaxDuration(pol)),
	}
	if pol.RequireSignedPlayback {
		meta["requiresignedurls"] = "true"
	}
	return meta
}

// patchChunk sends one chunk with its own timeout, retrying transport errors
// and 5xx responses with exponential backoff. Retries apply per chunk, never
// to the transfer as a whole.
func (c *Client) patchChunk(ctx context.Context, uploadURL string, offset int64, chunk []byte) error {
	attempt := func() error {
		cctx, cancel := context.WithTimeout(ctx, chunkTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(cctx, http.MethodPatch, uploadURL, bytes.NewReader(chunk))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
		req.Header.Set("Tus-Resumable", tusVersion)
		req.Header.Set("Upload-Offset", strconv.FormatInt(offset, 10))
		req.Header.Set("Content-Type", "application/offset+octet-stream")

		resp, err := c.upload.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		ierr := &IngestionError{Op: "chunk upload", Status: resp.StatusCode, Body: readBody(resp.Body)}
		if resp.StatusCode >= 500 {
			return ierr
		}
		return backoff.Permanent(ierr)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), chunkMaxRetries), ctx)
	return backoff.Retry(attempt, policy)
}

// encodeTusMetadata renders the Upload-Metadata header: comma-separated
// "key base64(value)" pairs, keys sorted for a stable header.
func encodeTusMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+base64.StdEncoding.EncodeToString([]byte(meta[k])))
	}
	return strings.Join(parts, ",")
}

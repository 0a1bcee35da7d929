package services

import (
	"errors"
	"fmt"
	"time"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/stream"
)

// PlaybackService turns stored asset state into viewer-facing playback
// descriptors. Access control happens before this layer; here the only
// questions are readiness and how the manifest URL should be formed.
type PlaybackService struct {
	signer *stream.Signer
	urls   *stream.URLBuilder
	ttl    time.Duration
}

func NewPlaybackService(signer *stream.Signer, urls *stream.URLBuilder, ttl time.Duration) *PlaybackService {
	if ttl <= 0 {
		ttl = stream.DefaultTokenTTL
	}
	return &PlaybackService{signer: signer, urls: urls, ttl: ttl}
}

// Describe builds the playback descriptor for an asset. A not-yet-playable
// asset yields ready=false with no URL, never a URL that would 404.
//
// Assets flagged as requiring signed playback fail hard when no signing key
// is configured; unflagged assets get a signed URL when possible and fall
// back to the public delivery form otherwise.
func (s *PlaybackService) Describe(asset models.VideoAsset) (models.PlaybackDescriptor, error) {
	if !asset.Playable() {
		return models.PlaybackDescriptor{}, nil
	}

	if asset.RequireSignedPlayback {
		token, err := s.signer.Sign(asset.AssetID, s.ttl)
		if err != nil {
			return models.PlaybackDescriptor{}, fmt.Errorf("signed playback required: %w", err)
		}
		url, err := s.urls.ManifestURL(asset.PlaybackID, token)
		if err != nil {
			return models.PlaybackDescriptor{}, err
		}
		return models.PlaybackDescriptor{Ready: true, ManifestURL: url}, nil
	}

	token, err := s.signer.Sign(asset.AssetID, s.ttl)
	if err != nil && !errors.Is(err, stream.ErrSigningKeyUnavailable) {
		return models.PlaybackDescriptor{}, err
	}
	url, err := s.urls.ManifestURL(asset.PlaybackID, token)
	if err != nil {
		// Signed form needs a customer domain; the public form always works.
		url, err = s.urls.ManifestURL(asset.PlaybackID, "")
		if err != nil {
			return models.PlaybackDescriptor{}, err
		}
	}
	return models.PlaybackDescriptor{Ready: true, ManifestURL: url}, nil
}

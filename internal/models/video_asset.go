package models

import "github.com/google/uuid"

// VideoAsset is the per-entity record of a video registered with the
// streaming platform. It is embedded in lessons and course trailers rather
// than stored as its own table.
//
// AssetID is set at most once per entity; re-ingesting requires an explicit
// reset first. Ready is a one-way latch, and DurationSeconds only moves
// upward via platform-reported values.
type VideoAsset struct {
	AssetID               string `json:"asset_id"`
	PlaybackID            string `json:"playback_id"`
	Ready                 bool   `json:"ready"`
	DurationSeconds       int    `json:"duration_seconds"`
	RequireSignedPlayback bool   `json:"require_signed_playback"`
}

// Ingested reports whether the entity has been registered with the platform.
func (a VideoAsset) Ingested() bool {
	return a.AssetID != ""
}

// Playable reports whether a manifest URL can be built. Ready with an empty
// playback id is a permitted transient state that the next update heals.
func (a VideoAsset) Playable() bool {
	return a.Ready && a.PlaybackID != ""
}

// PlaybackDescriptor is what the serialization layer hands to viewers. A
// non-ready asset yields ready=false and an empty URL, never a broken one.
type PlaybackDescriptor struct {
	Ready       bool   `json:"ready"`
	ManifestURL string `json:"manifest_url"`
}

// StreamApply reports the outcome of one guarded asset update against a
// store: whether an entity matched, whether anything changed, and whether
// this update is the one that flipped the asset to ready.
type StreamApply struct {
	Matched     bool
	Changed     bool
	BecameReady bool
	EntityID    uuid.UUID
}

// PendingAsset identifies an ingested-but-not-ready asset awaiting a status
// refresh.
type PendingAsset struct {
	Kind     string    `json:"kind"`
	EntityID uuid.UUID `json:"entity_id"`
	AssetID  string    `json:"asset_id"`
}

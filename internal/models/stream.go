package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshJob asks a worker to poll the platform for one asset's status.
type RefreshJob struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"` // "lesson" | "trailer"
	EntityID   uuid.UUID `json:"entity_id"`
	AssetID    string    `json:"asset_id"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AssetEvent is published on the asset_updates channel when reconciliation
// changes an entity's video state, and relayed to studio clients.
type AssetEvent struct {
	Kind       string    `json:"kind"`
	EntityID   uuid.UUID `json:"entity_id"`
	AssetID    string    `json:"asset_id"`
	PlaybackID string    `json:"playback_id"`
	Ready      bool      `json:"ready"`
}

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

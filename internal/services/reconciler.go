package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/stream"
)

// AssetStore is the persistence surface reconciliation writes through. The
// lesson and course-trailer repositories both implement it.
type AssetStore interface {
	Kind() string
	ApplyByAssetID(ctx context.Context, assetID string, upd stream.Update) (models.StreamApply, error)
	ApplyByEntityID(ctx context.Context, id uuid.UUID, upd stream.Update) (models.StreamApply, error)
}

type ApplyOutcome int

const (
	ApplyNoMatchingEntity ApplyOutcome = iota
	ApplyNoOp
	ApplyUpdated
)

func (o ApplyOutcome) String() string {
	switch o {
	case ApplyUpdated:
		return "updated"
	case ApplyNoOp:
		return "no_op"
	default:
		return "no_matching_entity"
	}
}

type ApplyResult struct {
	Outcome  ApplyOutcome
	Kind     string
	EntityID uuid.UUID
}

// AssetEventsChannel carries reconciliation events to websocket relays.
const AssetEventsChannel = "asset_updates"

// Reconciler routes normalized platform updates into entity state. It is the
// single write path for webhook deliveries, poll results and manual
// refreshes, so the monotonic update rules hold no matter how a report
// arrived.
type Reconciler struct {
	stores []AssetStore
	pubsub *redis.Client
	log    *logrus.Logger
}

func NewReconciler(pubsub *redis.Client, log *logrus.Logger, stores ...AssetStore) *Reconciler {
	return &Reconciler{stores: stores, pubsub: pubsub, log: log}
}

// Apply looks the asset up by platform id across every store, and when
// nothing matches falls back to the entity named by the update's correlation
// metadata. The fallback covers webhooks that arrive before the ingestion
// transaction committed the asset id; the guarded store update fills the
// missing id in as a side effect.
func (r *Reconciler) Apply(ctx context.Context, upd stream.Update) (ApplyResult, error) {
	for _, store := range r.stores {
		res, err := store.ApplyByAssetID(ctx, upd.AssetID, upd)
		if err != nil {
			return ApplyResult{}, err
		}
		if res.Matched {
			return r.finish(ctx, store.Kind(), upd, res), nil
		}
	}

	if kind, entityID, ok := correlationTarget(upd.Meta); ok {
		for _, store := range r.stores {
			if store.Kind() != kind {
				continue
			}
			res, err := store.ApplyByEntityID(ctx, entityID, upd)
			if err != nil {
				return ApplyResult{}, err
			}
			if res.Matched {
				r.log.WithFields(logrus.Fields{
					"asset_id":  upd.AssetID,
					"kind":      kind,
					"entity_id": entityID,
				}).Info("Stream update correlated via metadata")
				return r.finish(ctx, kind, upd, res), nil
			}
		}
	}

	r.log.WithField("asset_id", upd.AssetID).Warn("Stream update matched no entity")
	return ApplyResult{Outcome: ApplyNoMatchingEntity}, nil
}

func (r *Reconciler) finish(ctx context.Context, kind string, upd stream.Update, res models.StreamApply) ApplyResult {
	result := ApplyResult{Outcome: ApplyNoOp, Kind: kind, EntityID: res.EntityID}
	if res.Changed {
		result.Outcome = ApplyUpdated
	}
	if res.BecameReady {
		r.log.WithFields(logrus.Fields{
			"asset_id":  upd.AssetID,
			"kind":      kind,
			"entity_id": res.EntityID,
		}).Info("Stream asset became ready")
		r.publish(ctx, models.AssetEvent{
			Kind:       kind,
			EntityID:   res.EntityID,
			AssetID:    upd.AssetID,
			PlaybackID: upd.PlaybackID,
			Ready:      true,
		})
	}
	return result
}

func (r *Reconciler) publish(ctx context.Context, event models.AssetEvent) {
	if r.pubsub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := r.pubsub.Publish(ctx, AssetEventsChannel, payload).Err(); err != nil {
		r.log.WithError(err).Warn("Failed to publish asset event")
	}
}

// correlationTarget reads the entity reference ingestion stamps into asset
// metadata: a kind plus the matching id key.
func correlationTarget(meta map[string]string) (string, uuid.UUID, bool) {
	var raw string
	kind := meta["kind"]
	switch kind {
	case "lesson":
		raw = meta["lesson_id"]
	case "trailer":
		raw = meta["course_id"]
	default:
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, false
	}
	return kind, id, true
}

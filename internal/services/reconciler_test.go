package services

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/stream"
)

// fakeStore mirrors the repository's guarded-update semantics in memory:
// ready latches, playback id overwrites on non-empty, duration only moves
// up, an empty asset id is healed, and an update carrying a different asset
// id than the stored one touches nothing.
type fakeStore struct {
	kind    string
	byAsset map[string]uuid.UUID
	state   map[uuid.UUID]models.VideoAsset
}

func newFakeStore(kind string) *fakeStore {
	return &fakeStore{
		kind:    kind,
		byAsset: make(map[string]uuid.UUID),
		state:   make(map[uuid.UUID]models.VideoAsset),
	}
}

func (f *fakeStore) add(id uuid.UUID, asset models.VideoAsset) {
	f.state[id] = asset
	if asset.AssetID != "" {
		f.byAsset[asset.AssetID] = id
	}
}

func (f *fakeStore) Kind() string { return f.kind }

func (f *fakeStore) ApplyByAssetID(_ context.Context, assetID string, upd stream.Update) (models.StreamApply, error) {
	id, ok := f.byAsset[assetID]
	if !ok {
		return models.StreamApply{}, nil
	}
	return f.apply(id, upd), nil
}

func (f *fakeStore) ApplyByEntityID(_ context.Context, id uuid.UUID, upd stream.Update) (models.StreamApply, error) {
	if _, ok := f.state[id]; !ok {
		return models.StreamApply{}, nil
	}
	return f.apply(id, upd), nil
}

func (f *fakeStore) apply(id uuid.UUID, upd stream.Update) models.StreamApply {
	a := f.state[id]
	res := models.StreamApply{Matched: true, EntityID: id}

	if a.AssetID != "" && upd.AssetID != "" && a.AssetID != upd.AssetID {
		return res
	}

	if upd.Ready && !a.Ready {
		a.Ready = true
		res.Changed = true
		res.BecameReady = true
	}
	if upd.PlaybackID != "" && upd.PlaybackID != a.PlaybackID {
		a.PlaybackID = upd.PlaybackID
		res.Changed = true
	}
	if upd.DurationSeconds > a.DurationSeconds {
		a.DurationSeconds = upd.DurationSeconds
		res.Changed = true
	}
	if a.AssetID == "" && upd.AssetID != "" {
		a.AssetID = upd.AssetID
		f.byAsset[upd.AssetID] = id
		res.Changed = true
	}

	f.state[id] = a
	return res
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestApplyReadyLatchesOnce(t *testing.T) {
	store := newFakeStore("lesson")
	lessonID := uuid.New()
	store.add(lessonID, models.VideoAsset{AssetID: "asset-1"})

	rec := NewReconciler(nil, quietLogger(), store)
	upd := stream.Update{AssetID: "asset-1", Ready: true, PlaybackID: "pb1", DurationSeconds: 126}

	res, err := rec.Apply(context.Background(), upd)
	require.NoError(t, err)
	assert.Equal(t, ApplyUpdated, res.Outcome)
	assert.Equal(t, "lesson", res.Kind)
	assert.Equal(t, lessonID, res.EntityID)

	// A duplicate delivery changes nothing.
	res, err = rec.Apply(context.Background(), upd)
	require.NoError(t, err)
	assert.Equal(t, ApplyNoOp, res.Outcome)

	final := store.state[lessonID]
	assert.True(t, final.Ready)
	assert.Equal(t, "pb1", final.PlaybackID)
	assert.Equal(t, 126, final.DurationSeconds)
}

func TestApplyReadyNeverReverts(t *testing.T) {
	store := newFakeStore("lesson")
	lessonID := uuid.New()
	store.add(lessonID, models.VideoAsset{AssetID: "asset-1"})

	rec := NewReconciler(nil, quietLogger(), store)

	res, err := rec.Apply(context.Background(), stream.Update{AssetID: "asset-1", Ready: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyUpdated, res.Outcome)

	// A later report claiming the asset is not ready must not unlatch it.
	res, err = rec.Apply(context.Background(), stream.Update{AssetID: "asset-1", Ready: false})
	require.NoError(t, err)
	assert.Equal(t, ApplyNoOp, res.Outcome)
	assert.True(t, store.state[lessonID].Ready)
}

func TestApplyStaleAssetAfterReingest(t *testing.T) {
	store := newFakeStore("lesson")
	lessonID := uuid.New()
	// The lesson was reset and re-ingested; a delivery for the old asset is
	// still in flight.
	store.add(lessonID, models.VideoAsset{AssetID: "asset-new"})

	rec := NewReconciler(nil, quietLogger(), store)

	res, err := rec.Apply(context.Background(), stream.Update{
		AssetID:    "asset-old",
		Ready:      true,
		PlaybackID: "pb-old",
		Meta:       map[string]string{"kind": "lesson", "lesson_id": lessonID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyNoOp, res.Outcome)

	final := store.state[lessonID]
	assert.False(t, final.Ready, "the old asset's readiness must not leak onto the new one")
	assert.Empty(t, final.PlaybackID)
	assert.Equal(t, "asset-new", final.AssetID)
}

func TestApplyDurationNeverDecreases(t *testing.T) {
	store := newFakeStore("lesson")
	lessonID := uuid.New()
	store.add(lessonID, models.VideoAsset{AssetID: "asset-1", Ready: true})

	rec := NewReconciler(nil, quietLogger(), store)

	for _, step := range []struct {
		duration int
		outcome  ApplyOutcome
		stored   int
	}{
		{120, ApplyUpdated, 120},
		{90, ApplyNoOp, 120},
		{150, ApplyUpdated, 150},
	} {
		res, err := rec.Apply(context.Background(), stream.Update{
			AssetID: "asset-1", Ready: true, DurationSeconds: step.duration,
		})
		require.NoError(t, err)
		assert.Equal(t, step.outcome, res.Outcome)
		assert.Equal(t, step.stored, store.state[lessonID].DurationSeconds)
	}
}

func TestApplyCorrelationFallbackHealsAssetID(t *testing.T) {
	store := newFakeStore("lesson")
	lessonID := uuid.New()
	// Webhook outran the ingestion write: no asset id stored yet.
	store.add(lessonID, models.VideoAsset{})

	rec := NewReconciler(nil, quietLogger(), store)

	res, err := rec.Apply(context.Background(), stream.Update{
		AssetID: "asset-9",
		Ready:   true,
		Meta:    map[string]string{"kind": "lesson", "lesson_id": lessonID.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyUpdated, res.Outcome)
	assert.Equal(t, lessonID, res.EntityID)
	assert.Equal(t, "asset-9", store.state[lessonID].AssetID)

	// The next delivery matches by asset id directly.
	res, err = rec.Apply(context.Background(), stream.Update{AssetID: "asset-9", Ready: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyNoOp, res.Outcome)
}

func TestApplyRoutesAcrossStores(t *testing.T) {
	lessons := newFakeStore("lesson")
	trailers := newFakeStore("trailer")
	courseID := uuid.New()
	trailers.add(courseID, models.VideoAsset{AssetID: "asset-t"})

	rec := NewReconciler(nil, quietLogger(), lessons, trailers)

	res, err := rec.Apply(context.Background(), stream.Update{AssetID: "asset-t", Ready: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyUpdated, res.Outcome)
	assert.Equal(t, "trailer", res.Kind)
	assert.Equal(t, courseID, res.EntityID)
}

func TestApplyNoMatch(t *testing.T) {
	rec := NewReconciler(nil, quietLogger(), newFakeStore("lesson"))

	res, err := rec.Apply(context.Background(), stream.Update{AssetID: "ghost", Ready: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyNoMatchingEntity, res.Outcome)
}

func TestCorrelationTarget(t *testing.T) {
	lessonID := uuid.New()
	courseID := uuid.New()

	tests := []struct {
		name     string
		meta     map[string]string
		wantKind string
		wantID   uuid.UUID
		wantOK   bool
	}{
		{"lesson", map[string]string{"kind": "lesson", "lesson_id": lessonID.String()}, "lesson", lessonID, true},
		{"trailer", map[string]string{"kind": "trailer", "course_id": courseID.String()}, "trailer", courseID, true},
		{"unknown kind", map[string]string{"kind": "podcast", "lesson_id": lessonID.String()}, "", uuid.Nil, false},
		{"bad uuid", map[string]string{"kind": "lesson", "lesson_id": "nope"}, "", uuid.Nil, false},
		{"nil meta", nil, "", uuid.Nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, id, ok := correlationTarget(tc.meta)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantKind, kind)
			assert.Equal(t, tc.wantID, id)
		})
	}
}

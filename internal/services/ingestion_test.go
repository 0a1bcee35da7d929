package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/repository"
	"formaflix-backend/internal/stream"
)

type fakeEntityRepo struct {
	kind   string
	assets map[uuid.UUID]models.VideoAsset

	// failSetWith forces SetStreamAsset to fail, simulating a webhook that
	// filled the column first.
	failSetWith error
}

func newFakeEntityRepo(kind string) *fakeEntityRepo {
	return &fakeEntityRepo{kind: kind, assets: make(map[uuid.UUID]models.VideoAsset)}
}

func (f *fakeEntityRepo) Kind() string { return f.kind }

func (f *fakeEntityRepo) SetStreamAsset(_ context.Context, id uuid.UUID, assetID string, requireSigned bool) error {
	a, ok := f.assets[id]
	if !ok {
		return repository.ErrNotFound
	}
	if f.failSetWith != nil {
		return f.failSetWith
	}
	if a.AssetID != "" {
		return repository.ErrAssetAlreadySet
	}
	a.AssetID = assetID
	a.RequireSignedPlayback = requireSigned
	f.assets[id] = a
	return nil
}

func (f *fakeEntityRepo) ResetStreamAsset(_ context.Context, id uuid.UUID) error {
	if _, ok := f.assets[id]; !ok {
		return repository.ErrNotFound
	}
	f.assets[id] = models.VideoAsset{}
	return nil
}

func (f *fakeEntityRepo) GetStreamAsset(_ context.Context, id uuid.UUID) (models.VideoAsset, error) {
	a, ok := f.assets[id]
	if !ok {
		return models.VideoAsset{}, repository.ErrNotFound
	}
	return a, nil
}

func (f *fakeEntityRepo) SetRequireSignedFlag(_ context.Context, id uuid.UUID, required bool) error {
	a, ok := f.assets[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.RequireSignedPlayback = required
	f.assets[id] = a
	return nil
}

func (f *fakeEntityRepo) ListPendingAssets(_ context.Context, limit int) ([]models.PendingAsset, error) {
	var pending []models.PendingAsset
	for id, a := range f.assets {
		if a.AssetID != "" && !a.Ready && len(pending) < limit {
			pending = append(pending, models.PendingAsset{Kind: f.kind, EntityID: id, AssetID: a.AssetID})
		}
	}
	return pending, nil
}

type fakeClient struct {
	createdMeta   map[string]string
	createdSigned bool
	nextAssetID   string
	statusUpdate  stream.Update
	deleted       []string
	patched       map[string]bool
	createErr     error
}

func (f *fakeClient) CreateFromURL(_ context.Context, _ string, pol stream.Policy) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdMeta = pol.Meta
	f.createdSigned = pol.RequireSignedPlayback
	return f.nextAssetID, nil
}

func (f *fakeClient) CreateDirectUpload(_ context.Context, pol stream.Policy) (stream.DirectUpload, error) {
	f.createdMeta = pol.Meta
	f.createdSigned = pol.RequireSignedPlayback
	return stream.DirectUpload{AssetID: f.nextAssetID, UploadURL: "https://upload.example.com/slot"}, nil
}

func (f *fakeClient) UploadFile(_ context.Context, _ string, pol stream.Policy) (string, error) {
	f.createdMeta = pol.Meta
	f.createdSigned = pol.RequireSignedPlayback
	return f.nextAssetID, nil
}

func (f *fakeClient) FetchStatus(_ context.Context, _ string) (stream.Update, error) {
	return f.statusUpdate, nil
}

func (f *fakeClient) SetRequireSigned(_ context.Context, assetID string, required bool) error {
	if f.patched == nil {
		f.patched = make(map[string]bool)
	}
	f.patched[assetID] = required
	return nil
}

func (f *fakeClient) Delete(_ context.Context, assetID string) error {
	f.deleted = append(f.deleted, assetID)
	return nil
}

func ingestionFixture(t *testing.T) (*IngestionService, *fakeEntityRepo, *fakeClient) {
	t.Helper()
	repo := newFakeEntityRepo("lesson")
	client := &fakeClient{nextAssetID: "asset-new"}
	cfg := &stream.Config{RequireSignedDefault: true}
	rec := NewReconciler(nil, quietLogger(), repo.reconcilerStore())
	svc := NewIngestionService(client, rec, cfg, quietLogger(), repo)
	return svc, repo, client
}

// reconcilerStore adapts the entity repo fake into an AssetStore so Refresh
// tests run through the real reconciler.
func (f *fakeEntityRepo) reconcilerStore() AssetStore {
	return &entityRepoStore{repo: f}
}

type entityRepoStore struct {
	repo *fakeEntityRepo
}

func (s *entityRepoStore) Kind() string { return s.repo.kind }

func (s *entityRepoStore) ApplyByAssetID(_ context.Context, assetID string, upd stream.Update) (models.StreamApply, error) {
	for id, a := range s.repo.assets {
		if a.AssetID == assetID {
			return s.apply(id, upd), nil
		}
	}
	return models.StreamApply{}, nil
}

func (s *entityRepoStore) ApplyByEntityID(_ context.Context, id uuid.UUID, upd stream.Update) (models.StreamApply, error) {
	if _, ok := s.repo.assets[id]; !ok {
		return models.StreamApply{}, nil
	}
	return s.apply(id, upd), nil
}

func (s *entityRepoStore) apply(id uuid.UUID, upd stream.Update) models.StreamApply {
	a := s.repo.assets[id]
	res := models.StreamApply{Matched: true, EntityID: id}
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
	s.repo.assets[id] = a
	return res
}

func TestIngestFromURLPersistsAssetAndMeta(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{}

	assetID, err := svc.IngestFromURL(context.Background(), "lesson", lessonID, "https://cdn.example.com/v.mp4", "Intro", nil)
	require.NoError(t, err)
	assert.Equal(t, "asset-new", assetID)

	stored := repo.assets[lessonID]
	assert.Equal(t, "asset-new", stored.AssetID)
	assert.True(t, stored.RequireSignedPlayback, "config default should apply when the request does not specify")

	assert.Equal(t, "lesson", client.createdMeta["kind"])
	assert.Equal(t, lessonID.String(), client.createdMeta["lesson_id"])
	assert.Equal(t, "Intro", client.createdMeta["name"])
}

func TestIngestFromURLRequireSignedOverride(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{}

	unsigned := false
	_, err := svc.IngestFromURL(context.Background(), "lesson", lessonID, "https://cdn.example.com/v.mp4", "", &unsigned)
	require.NoError(t, err)
	assert.False(t, client.createdSigned)
	assert.False(t, repo.assets[lessonID].RequireSignedPlayback)
}

func TestIngestFromURLAlreadyIngested(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{AssetID: "existing"}

	_, err := svc.IngestFromURL(context.Background(), "lesson", lessonID, "https://cdn.example.com/v.mp4", "", nil)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Nil(t, client.createdMeta, "no platform call should happen for an already-ingested entity")
}

func TestIngestFromURLValidation(t *testing.T) {
	svc, repo, _ := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{}

	_, err := svc.IngestFromURL(context.Background(), "lesson", lessonID, "", "", nil)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.IngestFromURL(context.Background(), "podcast", lessonID, "https://x", "", nil)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPersistAssetToleratesWebhookRace(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	// The webhook's correlation fallback already filled the same asset id.
	repo.assets[lessonID] = models.VideoAsset{AssetID: "asset-new", Ready: true}
	repo.failSetWith = repository.ErrAssetAlreadySet

	err := svc.persistAsset(context.Background(), repo, lessonID, "asset-new", true)
	assert.NoError(t, err, "identical asset id means the race resolved itself")
	assert.Empty(t, client.deleted)
}

func TestPersistAssetConflictCleansUpRemote(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{AssetID: "someone-else"}
	repo.failSetWith = repository.ErrAssetAlreadySet

	err := svc.persistAsset(context.Background(), repo, lessonID, "asset-new", true)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"asset-new"}, client.deleted, "the orphaned platform asset should be deleted")
}

func TestRefreshFeedsReconciler(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{AssetID: "asset-7"}
	client.statusUpdate = stream.Update{Ready: true, PlaybackID: "pb7", DurationSeconds: 90}

	res, err := svc.Refresh(context.Background(), "lesson", lessonID)
	require.NoError(t, err)
	assert.Equal(t, ApplyUpdated, res.Outcome)

	stored := repo.assets[lessonID]
	assert.True(t, stored.Ready)
	assert.Equal(t, "pb7", stored.PlaybackID)
	assert.Equal(t, 90, stored.DurationSeconds)
}

func TestRefreshWithoutAsset(t *testing.T) {
	svc, repo, _ := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{}

	_, err := svc.Refresh(context.Background(), "lesson", lessonID)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestResetClearsLocalAndRemote(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{AssetID: "asset-9", Ready: true, PlaybackID: "pb"}

	require.NoError(t, svc.Reset(context.Background(), "lesson", lessonID))
	assert.Equal(t, []string{"asset-9"}, client.deleted)
	assert.Equal(t, models.VideoAsset{}, repo.assets[lessonID])
}

func TestSetRequireSignedPatchesRemoteFirst(t *testing.T) {
	svc, repo, client := ingestionFixture(t)
	lessonID := uuid.New()
	repo.assets[lessonID] = models.VideoAsset{AssetID: "asset-9"}

	require.NoError(t, svc.SetRequireSigned(context.Background(), "lesson", lessonID, true))
	assert.True(t, client.patched["asset-9"])
	assert.True(t, repo.assets[lessonID].RequireSignedPlayback)
}

func TestMapRepoErr(t *testing.T) {
	svc, _, _ := ingestionFixture(t)

	var nf *NotFoundError
	assert.ErrorAs(t, svc.mapRepoErr(repository.ErrNotFound), &nf)
	assert.NoError(t, svc.mapRepoErr(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, svc.mapRepoErr(plain))
}

package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/repository"
	"formaflix-backend/internal/stream"
)

// IngestionClient is the slice of the platform client ingestion needs.
type IngestionClient interface {
	CreateFromURL(ctx context.Context, sourceURL string, pol stream.Policy) (string, error)
	CreateDirectUpload(ctx context.Context, pol stream.Policy) (stream.DirectUpload, error)
	UploadFile(ctx context.Context, path string, pol stream.Policy) (string, error)
	FetchStatus(ctx context.Context, assetID string) (stream.Update, error)
	SetRequireSigned(ctx context.Context, assetID string, required bool) error
	Delete(ctx context.Context, assetID string) error
}

// StreamEntityRepo is what ingestion needs from an entity repository.
type StreamEntityRepo interface {
	Kind() string
	SetStreamAsset(ctx context.Context, id uuid.UUID, assetID string, requireSigned bool) error
	ResetStreamAsset(ctx context.Context, id uuid.UUID) error
	GetStreamAsset(ctx context.Context, id uuid.UUID) (models.VideoAsset, error)
	SetRequireSignedFlag(ctx context.Context, id uuid.UUID, required bool) error
	ListPendingAssets(ctx context.Context, limit int) ([]models.PendingAsset, error)
}

// IngestionService registers entity videos with the streaming platform and
// keeps the local asset columns in step with what the platform was told.
type IngestionService struct {
	client     IngestionClient
	reconciler *Reconciler
	cfg        *stream.Config
	repos      map[string]StreamEntityRepo
	log        *logrus.Logger
}

func NewIngestionService(client IngestionClient, reconciler *Reconciler, cfg *stream.Config, log *logrus.Logger, repos ...StreamEntityRepo) *IngestionService {
	byKind := make(map[string]StreamEntityRepo, len(repos))
	for _, r := range repos {
		byKind[r.Kind()] = r
	}
	return &IngestionService{
		client:     client,
		reconciler: reconciler,
		cfg:        cfg,
		repos:      byKind,
		log:        log,
	}
}

// IngestFromURL has the platform copy an externally hosted file. The asset
// id is persisted before returning; readiness arrives asynchronously.
func (s *IngestionService) IngestFromURL(ctx context.Context, kind string, entityID uuid.UUID, sourceURL, title string, requireSigned *bool) (string, error) {
	if sourceURL == "" {
		return "", &ValidationError{Fields: map[string]string{"source_url": "Source URL is required"}}
	}
	repo, pol, err := s.prepare(ctx, kind, entityID, title, requireSigned)
	if err != nil {
		return "", err
	}

	assetID, err := s.client.CreateFromURL(ctx, sourceURL, pol)
	if err != nil {
		return "", err
	}
	return assetID, s.persistAsset(ctx, repo, entityID, assetID, pol.RequireSignedPlayback)
}

// CreateDirectUpload reserves an upload slot the browser pushes the file to.
// The platform assigns the asset id up front, so it is persisted before the
// upload even starts.
func (s *IngestionService) CreateDirectUpload(ctx context.Context, kind string, entityID uuid.UUID, title string, requireSigned *bool) (stream.DirectUpload, error) {
	repo, pol, err := s.prepare(ctx, kind, entityID, title, requireSigned)
	if err != nil {
		return stream.DirectUpload{}, err
	}

	slot, err := s.client.CreateDirectUpload(ctx, pol)
	if err != nil {
		return stream.DirectUpload{}, err
	}
	if err := s.persistAsset(ctx, repo, entityID, slot.AssetID, pol.RequireSignedPlayback); err != nil {
		return stream.DirectUpload{}, err
	}
	return slot, nil
}

// UploadLocalFile sends a server-side file, letting the client pick direct
// or resumable transfer by size.
func (s *IngestionService) UploadLocalFile(ctx context.Context, kind string, entityID uuid.UUID, path, title string, requireSigned *bool) (string, error) {
	if path == "" {
		return "", &ValidationError{Fields: map[string]string{"file_path": "File path is required"}}
	}
	repo, pol, err := s.prepare(ctx, kind, entityID, title, requireSigned)
	if err != nil {
		return "", err
	}

	assetID, err := s.client.UploadFile(ctx, path, pol)
	if err != nil {
		return "", err
	}
	return assetID, s.persistAsset(ctx, repo, entityID, assetID, pol.RequireSignedPlayback)
}

// Refresh polls the platform for the asset's current state and pushes the
// result through the reconciler, the same path webhook deliveries take.
func (s *IngestionService) Refresh(ctx context.Context, kind string, entityID uuid.UUID) (ApplyResult, error) {
	repo, err := s.repo(kind)
	if err != nil {
		return ApplyResult{}, err
	}
	asset, err := repo.GetStreamAsset(ctx, entityID)
	if err != nil {
		return ApplyResult{}, s.mapRepoErr(err)
	}
	if !asset.Ingested() {
		return ApplyResult{}, &ConflictError{Message: "No stream asset registered for this entity"}
	}

	upd, err := s.client.FetchStatus(ctx, asset.AssetID)
	if err != nil {
		return ApplyResult{}, err
	}
	if upd.AssetID == "" {
		upd.AssetID = asset.AssetID
	}
	return s.reconciler.Apply(ctx, upd)
}

// SetRequireSigned flips the signed-playback flag on the platform first,
// then locally, so a failed remote patch leaves both sides agreeing.
func (s *IngestionService) SetRequireSigned(ctx context.Context, kind string, entityID uuid.UUID, required bool) error {
	repo, err := s.repo(kind)
	if err != nil {
		return err
	}
	asset, err := repo.GetStreamAsset(ctx, entityID)
	if err != nil {
		return s.mapRepoErr(err)
	}
	if asset.Ingested() {
		if err := s.client.SetRequireSigned(ctx, asset.AssetID, required); err != nil {
			return err
		}
	}
	return s.mapRepoErr(repo.SetRequireSignedFlag(ctx, entityID, required))
}

// Reset clears the entity's asset state so it can be re-ingested. The remote
// asset is deleted best-effort; a platform failure does not block the local
// reset.
func (s *IngestionService) Reset(ctx context.Context, kind string, entityID uuid.UUID) error {
	repo, err := s.repo(kind)
	if err != nil {
		return err
	}
	asset, err := repo.GetStreamAsset(ctx, entityID)
	if err != nil {
		return s.mapRepoErr(err)
	}
	if asset.Ingested() {
		if err := s.client.Delete(ctx, asset.AssetID); err != nil {
			s.log.WithError(err).WithField("asset_id", asset.AssetID).Warn("Failed to delete platform asset during reset")
		}
	}
	return s.mapRepoErr(repo.ResetStreamAsset(ctx, entityID))
}

// GetAsset exposes the raw asset columns for admin inspection.
func (s *IngestionService) GetAsset(ctx context.Context, kind string, entityID uuid.UUID) (models.VideoAsset, error) {
	repo, err := s.repo(kind)
	if err != nil {
		return models.VideoAsset{}, err
	}
	asset, err := repo.GetStreamAsset(ctx, entityID)
	return asset, s.mapRepoErr(err)
}

// ListPending gathers ingested-but-not-ready assets across all entity kinds.
func (s *IngestionService) ListPending(ctx context.Context, limit int) ([]models.PendingAsset, error) {
	var pending []models.PendingAsset
	for _, repo := range s.repos {
		batch, err := repo.ListPendingAssets(ctx, limit)
		if err != nil {
			return nil, err
		}
		pending = append(pending, batch...)
	}
	return pending, nil
}

func (s *IngestionService) prepare(ctx context.Context, kind string, entityID uuid.UUID, title string, requireSigned *bool) (StreamEntityRepo, stream.Policy, error) {
	repo, err := s.repo(kind)
	if err != nil {
		return nil, stream.Policy{}, err
	}

	asset, err := repo.GetStreamAsset(ctx, entityID)
	if err != nil {
		return nil, stream.Policy{}, s.mapRepoErr(err)
	}
	if asset.Ingested() {
		return nil, stream.Policy{}, &ConflictError{Message: "Entity already has a stream asset; reset it first"}
	}

	signed := s.cfg.RequireSignedDefault
	if requireSigned != nil {
		signed = *requireSigned
	}
	return repo, stream.Policy{
		RequireSignedPlayback: signed,
		Meta:                  s.correlationMeta(kind, entityID, title),
	}, nil
}

// persistAsset stores the platform-assigned id. When a webhook correlated by
// metadata already filled the id in, the write conflicts with an identical
// value; that is success, not a collision.
func (s *IngestionService) persistAsset(ctx context.Context, repo StreamEntityRepo, entityID uuid.UUID, assetID string, requireSigned bool) error {
	err := repo.SetStreamAsset(ctx, entityID, assetID, requireSigned)
	if errors.Is(err, repository.ErrAssetAlreadySet) {
		existing, lookupErr := repo.GetStreamAsset(ctx, entityID)
		if lookupErr == nil && existing.AssetID == assetID {
			return nil
		}
		if delErr := s.client.Delete(ctx, assetID); delErr != nil {
			s.log.WithError(delErr).WithField("asset_id", assetID).Warn("Failed to delete orphaned platform asset")
		}
		return &ConflictError{Message: "Entity already has a stream asset; reset it first"}
	}
	return s.mapRepoErr(err)
}

func (s *IngestionService) correlationMeta(kind string, entityID uuid.UUID, title string) map[string]string {
	meta := map[string]string{"kind": kind}
	switch kind {
	case "lesson":
		meta["lesson_id"] = entityID.String()
	case "trailer":
		meta["course_id"] = entityID.String()
	}
	if title != "" {
		meta["name"] = title
	}
	return meta
}

func (s *IngestionService) repo(kind string) (StreamEntityRepo, error) {
	repo, ok := s.repos[kind]
	if !ok {
		return nil, &NotFoundError{Message: "Unknown asset kind"}
	}
	return repo, nil
}

func (s *IngestionService) mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: "Entity not found"}
	}
	return err
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/stream"
)

type CourseRepo struct {
	pool *pgxpool.Pool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

const courseColumns = `id, title, slug, synopsis, description, price_cents, currency, is_active, created_at,
	trailer_cf_asset_id, trailer_cf_playback_id, trailer_cf_ready, trailer_duration_seconds, trailer_cf_require_signed`

func scanCourse(row pgx.Row) (*models.Course, error) {
	c := &models.Course{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Slug, &c.Synopsis, &c.Description, &c.PriceCents, &c.Currency, &c.IsActive, &c.CreatedAt,
		&c.Trailer.AssetID, &c.Trailer.PlaybackID, &c.Trailer.Ready, &c.Trailer.DurationSeconds, &c.Trailer.RequireSignedPlayback,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CourseRepo) Create(ctx context.Context, c *models.Course) error {
	c.ID = uuid.New()
	query := `INSERT INTO courses (id, title, slug, synopsis, description, price_cents, currency, is_active, trailer_cf_require_signed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		c.ID, c.Title, c.Slug, c.Synopsis, c.Description, c.PriceCents, c.Currency, c.IsActive, c.Trailer.RequireSignedPlayback,
	).Scan(&c.CreatedAt)
}

func (r *CourseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	return scanCourse(r.pool.QueryRow(ctx, query, id))
}

func (r *CourseRepo) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE slug = $1`, courseColumns)
	return scanCourse(r.pool.QueryRow(ctx, query, slug))
}

func (r *CourseRepo) ListActive(ctx context.Context) ([]*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE is_active ORDER BY created_at DESC`, courseColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// Kind names the correlation key trailers use in asset metadata.
func (r *CourseRepo) Kind() string { return "trailer" }

func (r *CourseRepo) SetStreamAsset(ctx context.Context, id uuid.UUID, assetID string, requireSigned bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE courses
		SET trailer_cf_asset_id = $2, trailer_cf_playback_id = '', trailer_cf_ready = FALSE, trailer_cf_require_signed = $3
		WHERE id = $1 AND trailer_cf_asset_id = ''`,
		id, assetID, requireSigned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAssetAlreadySet
	}
	return nil
}

func (r *CourseRepo) ResetStreamAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE courses
		SET trailer_cf_asset_id = '', trailer_cf_playback_id = '', trailer_cf_ready = FALSE
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CourseRepo) GetStreamAsset(ctx context.Context, id uuid.UUID) (models.VideoAsset, error) {
	var a models.VideoAsset
	err := r.pool.QueryRow(ctx, `
		SELECT trailer_cf_asset_id, trailer_cf_playback_id, trailer_cf_ready, trailer_duration_seconds, trailer_cf_require_signed
		FROM courses WHERE id = $1`, id).
		Scan(&a.AssetID, &a.PlaybackID, &a.Ready, &a.DurationSeconds, &a.RequireSignedPlayback)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VideoAsset{}, ErrNotFound
	}
	return a, err
}

// Same single-statement guarded update as lessons, over the trailer columns.
const courseApplyTmpl = `
	UPDATE courses c SET
		trailer_cf_ready         = c.trailer_cf_ready OR $2,
		trailer_cf_playback_id   = CASE WHEN $3 <> '' THEN $3 ELSE c.trailer_cf_playback_id END,
		trailer_duration_seconds = GREATEST(c.trailer_duration_seconds, $4),
		trailer_cf_asset_id      = CASE WHEN c.trailer_cf_asset_id = '' THEN $5 ELSE c.trailer_cf_asset_id END
	FROM (SELECT id, trailer_cf_ready AS was_ready FROM courses WHERE %s FOR UPDATE) prev
	WHERE c.id = prev.id
	  AND (c.trailer_cf_asset_id = '' OR $5 = '' OR c.trailer_cf_asset_id = $5)
	  AND (   ($2 AND NOT prev.was_ready)
	       OR ($3 <> '' AND c.trailer_cf_playback_id IS DISTINCT FROM $3)
	       OR ($4 > c.trailer_duration_seconds)
	       OR (c.trailer_cf_asset_id = '' AND $5 <> '') )
	RETURNING c.id, prev.was_ready`

func (r *CourseRepo) ApplyByAssetID(ctx context.Context, assetID string, upd stream.Update) (models.StreamApply, error) {
	if assetID == "" {
		return models.StreamApply{}, nil
	}
	return r.applyUpdate(ctx, "trailer_cf_asset_id = $1", assetID, upd)
}

func (r *CourseRepo) ApplyByEntityID(ctx context.Context, id uuid.UUID, upd stream.Update) (models.StreamApply, error) {
	return r.applyUpdate(ctx, "id = $1", id, upd)
}

func (r *CourseRepo) applyUpdate(ctx context.Context, where string, lookup any, upd stream.Update) (models.StreamApply, error) {
	query := fmt.Sprintf(courseApplyTmpl, where)

	var id uuid.UUID
	var wasReady bool
	err := r.pool.QueryRow(ctx, query, lookup, upd.Ready, upd.PlaybackID, upd.DurationSeconds, upd.AssetID).
		Scan(&id, &wasReady)
	if err == nil {
		return models.StreamApply{Matched: true, Changed: true, BecameReady: upd.Ready && !wasReady, EntityID: id}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.StreamApply{}, err
	}

	var existing uuid.UUID
	err = r.pool.QueryRow(ctx, fmt.Sprintf("SELECT id FROM courses WHERE %s", where), lookup).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StreamApply{}, nil
	}
	if err != nil {
		return models.StreamApply{}, err
	}
	return models.StreamApply{Matched: true, EntityID: existing}, nil
}

func (r *CourseRepo) SetRequireSignedFlag(ctx context.Context, id uuid.UUID, required bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE courses SET trailer_cf_require_signed = $2 WHERE id = $1`, id, required)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CourseRepo) ListPendingAssets(ctx context.Context, limit int) ([]models.PendingAsset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, trailer_cf_asset_id FROM courses
		WHERE trailer_cf_asset_id <> '' AND NOT trailer_cf_ready
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []models.PendingAsset
	for rows.Next() {
		p := models.PendingAsset{Kind: "trailer"}
		if err := rows.Scan(&p.EntityID, &p.AssetID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

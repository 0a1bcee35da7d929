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

type LessonRepo struct {
	pool *pgxpool.Pool
}

func NewLessonRepo(pool *pgxpool.Pool) *LessonRepo {
	return &LessonRepo{pool: pool}
}

const lessonColumns = `id, course_id, title, position, source_url, file_path, is_free_preview, created_at,
	cf_asset_id, cf_playback_id, cf_ready, duration_seconds, cf_require_signed`

func scanLesson(row pgx.Row) (*models.Lesson, error) {
	l := &models.Lesson{}
	err := row.Scan(
		&l.ID, &l.CourseID, &l.Title, &l.Position, &l.SourceURL, &l.FilePath, &l.IsFreePreview, &l.CreatedAt,
		&l.Video.AssetID, &l.Video.PlaybackID, &l.Video.Ready, &l.Video.DurationSeconds, &l.Video.RequireSignedPlayback,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LessonRepo) Create(ctx context.Context, l *models.Lesson) error {
	l.ID = uuid.New()
	query := `INSERT INTO lessons (id, course_id, title, position, source_url, file_path, is_free_preview, duration_seconds, cf_require_signed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		l.ID, l.CourseID, l.Title, l.Position, l.SourceURL, l.FilePath, l.IsFreePreview,
		l.Video.DurationSeconds, l.Video.RequireSignedPlayback,
	).Scan(&l.CreatedAt)
}

func (r *LessonRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE id = $1`, lessonColumns)
	return scanLesson(r.pool.QueryRow(ctx, query, id))
}

func (r *LessonRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE course_id = $1 ORDER BY position`, lessonColumns)
	rows, err := r.pool.Query(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []*models.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (r *LessonRepo) Kind() string { return "lesson" }

// SetStreamAsset records the platform-assigned asset id. The id is written
// at most once; a second ingestion attempt surfaces ErrAssetAlreadySet so
// the operator resets explicitly instead of silently re-ingesting.
func (r *LessonRepo) SetStreamAsset(ctx context.Context, id uuid.UUID, assetID string, requireSigned bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lessons
		SET cf_asset_id = $2, cf_playback_id = '', cf_ready = FALSE, cf_require_signed = $3
		WHERE id = $1 AND cf_asset_id = ''`,
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

func (r *LessonRepo) ResetStreamAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lessons
		SET cf_asset_id = '', cf_playback_id = '', cf_ready = FALSE
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LessonRepo) GetStreamAsset(ctx context.Context, id uuid.UUID) (models.VideoAsset, error) {
	var a models.VideoAsset
	err := r.pool.QueryRow(ctx, `
		SELECT cf_asset_id, cf_playback_id, cf_ready, duration_seconds, cf_require_signed
		FROM lessons WHERE id = $1`, id).
		Scan(&a.AssetID, &a.PlaybackID, &a.Ready, &a.DurationSeconds, &a.RequireSignedPlayback)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VideoAsset{}, ErrNotFound
	}
	return a, err
}

// The update rule in one statement so the compare-then-write cannot race a
// concurrent webhook or poll: ready is a one-way latch, playback id is
// overwritten by any non-empty value, duration only ever moves up, and an
// asset id missing because the webhook outran ingestion persistence is
// filled in. An update whose asset id differs from the stored one touches
// nothing, so a webhook for a reset-and-re-ingested entity cannot corrupt
// the new asset's state. The WHERE guard makes a no-change apply affect
// zero rows.
const lessonApplyTmpl = `
	UPDATE lessons l SET
		cf_ready         = l.cf_ready OR $2,
		cf_playback_id   = CASE WHEN $3 <> '' THEN $3 ELSE l.cf_playback_id END,
		duration_seconds = GREATEST(l.duration_seconds, $4),
		cf_asset_id      = CASE WHEN l.cf_asset_id = '' THEN $5 ELSE l.cf_asset_id END
	FROM (SELECT id, cf_ready AS was_ready FROM lessons WHERE %s FOR UPDATE) prev
	WHERE l.id = prev.id
	  AND (l.cf_asset_id = '' OR $5 = '' OR l.cf_asset_id = $5)
	  AND (   ($2 AND NOT prev.was_ready)
	       OR ($3 <> '' AND l.cf_playback_id IS DISTINCT FROM $3)
	       OR ($4 > l.duration_seconds)
	       OR (l.cf_asset_id = '' AND $5 <> '') )
	RETURNING l.id, prev.was_ready`

func (r *LessonRepo) ApplyByAssetID(ctx context.Context, assetID string, upd stream.Update) (models.StreamApply, error) {
	if assetID == "" {
		return models.StreamApply{}, nil
	}
	return r.applyUpdate(ctx, "cf_asset_id = $1", assetID, upd)
}

func (r *LessonRepo) ApplyByEntityID(ctx context.Context, id uuid.UUID, upd stream.Update) (models.StreamApply, error) {
	return r.applyUpdate(ctx, "id = $1", id, upd)
}

func (r *LessonRepo) applyUpdate(ctx context.Context, where string, lookup any, upd stream.Update) (models.StreamApply, error) {
	query := fmt.Sprintf(lessonApplyTmpl, where)

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

	// Zero rows: either nothing matched or nothing needed changing.
	var existing uuid.UUID
	err = r.pool.QueryRow(ctx, fmt.Sprintf("SELECT id FROM lessons WHERE %s", where), lookup).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StreamApply{}, nil
	}
	if err != nil {
		return models.StreamApply{}, err
	}
	return models.StreamApply{Matched: true, EntityID: existing}, nil
}

// RaiseDuration lifts the stored duration when a player reports a longer
// one. Platform-reported values flow through applyUpdate instead; both paths
// share the only-moves-up rule.
func (r *LessonRepo) RaiseDuration(ctx context.Context, id uuid.UUID, seconds int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE lessons SET duration_seconds = GREATEST(duration_seconds, $2)
		WHERE id = $1`, id, seconds)
	return err
}

func (r *LessonRepo) SetRequireSignedFlag(ctx context.Context, id uuid.UUID, required bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lessons SET cf_require_signed = $2 WHERE id = $1`, id, required)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LessonRepo) ListPendingAssets(ctx context.Context, limit int) ([]models.PendingAsset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, cf_asset_id FROM lessons
		WHERE cf_asset_id <> '' AND NOT cf_ready
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []models.PendingAsset
	for rows.Next() {
		p := models.PendingAsset{Kind: "lesson"}
		if err := rows.Scan(&p.EntityID, &p.AssetID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

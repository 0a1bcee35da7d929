package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"formaflix-backend/internal/models"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

// Upsert records a playback heartbeat. Position never moves backward and
// completed never un-completes, so out-of-order heartbeats are harmless.
func (r *ProgressRepo) Upsert(ctx context.Context, enrollmentID, lessonID uuid.UUID, positionSeconds int, completed bool) (*models.Progress, error) {
	p := &models.Progress{}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO progress (id, enrollment_id, lesson_id, position_seconds, completed, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (enrollment_id, lesson_id) DO UPDATE SET
			position_seconds = GREATEST(progress.position_seconds, EXCLUDED.position_seconds),
			completed        = progress.completed OR EXCLUDED.completed,
			updated_at       = NOW()
		RETURNING id, enrollment_id, lesson_id, position_seconds, completed, updated_at`,
		uuid.New(), enrollmentID, lessonID, positionSeconds, completed).
		Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.PositionSeconds, &p.Completed, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) Get(ctx context.Context, enrollmentID, lessonID uuid.UUID) (*models.Progress, error) {
	p := &models.Progress{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, enrollment_id, lesson_id, position_seconds, completed, updated_at
		FROM progress WHERE enrollment_id = $1 AND lesson_id = $2`,
		enrollmentID, lessonID).
		Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.PositionSeconds, &p.Completed, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CoursePercent computes watch-through as completed lessons over total
// lessons for the enrollment's course.
func (r *ProgressRepo) CoursePercent(ctx context.Context, enrollmentID, courseID uuid.UUID) (float64, error) {
	var completed, total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE p.completed), COUNT(*)
		FROM lessons l
		LEFT JOIN progress p ON p.lesson_id = l.id AND p.enrollment_id = $1
		WHERE l.course_id = $2`,
		enrollmentID, courseID).Scan(&completed, &total)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return float64(completed) / float64(total) * 100, nil
}

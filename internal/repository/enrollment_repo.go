package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"formaflix-backend/internal/models"
)

type EnrollmentRepo struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepo(pool *pgxpool.Pool) *EnrollmentRepo {
	return &EnrollmentRepo{pool: pool}
}

func (r *EnrollmentRepo) Create(ctx context.Context, e *models.Enrollment) error {
	e.ID = uuid.New()
	query := `INSERT INTO enrollments (id, user_id, course_id, access_expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, course_id) DO NOTHING
		RETURNING purchased_at`
	err := r.pool.QueryRow(ctx, query, e.ID, e.UserID, e.CourseID, e.AccessExpiresAt).Scan(&e.PurchasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already enrolled; hand back the existing row.
		existing, lookupErr := r.GetByUserAndCourse(ctx, e.UserID, e.CourseID)
		if lookupErr != nil {
			return lookupErr
		}
		*e = *existing
		return nil
	}
	return err
}

func (r *EnrollmentRepo) GetByUserAndCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, course_id, purchased_at, access_expires_at
		FROM enrollments WHERE user_id = $1 AND course_id = $2`,
		userID, courseID).
		Scan(&e.ID, &e.UserID, &e.CourseID, &e.PurchasedAt, &e.AccessExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EnrollmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Enrollment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, course_id, purchased_at, access_expires_at
		FROM enrollments WHERE user_id = $1
		ORDER BY purchased_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*models.Enrollment
	for rows.Next() {
		e := &models.Enrollment{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.PurchasedAt, &e.AccessExpiresAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

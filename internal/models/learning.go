package models

import (
	"time"

	"github.com/google/uuid"
)

type Enrollment struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	CourseID        uuid.UUID  `json:"course_id"`
	PurchasedAt     time.Time  `json:"purchased_at"`
	AccessExpiresAt *time.Time `json:"access_expires_at"`
}

func (e *Enrollment) Active(now time.Time) bool {
	return e.AccessExpiresAt == nil || e.AccessExpiresAt.After(now)
}

type Progress struct {
	ID              uuid.UUID `json:"id"`
	EnrollmentID    uuid.UUID `json:"enrollment_id"`
	LessonID        uuid.UUID `json:"lesson_id"`
	PositionSeconds int       `json:"position_seconds"`
	Completed       bool      `json:"completed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProgressUpsertRequest struct {
	CourseID        uuid.UUID `json:"course_id"`
	LessonID        uuid.UUID `json:"lesson_id"`
	PositionSeconds int       `json:"position_seconds"`
	DurationSeconds int       `json:"duration_seconds"`
	Completed       bool      `json:"completed"`
}

// LibraryItem is one purchased course plus watch-through percentage.
type LibraryItem struct {
	Course  Course  `json:"course"`
	Percent float64 `json:"percent"`
}

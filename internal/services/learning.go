package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"formaflix-backend/internal/models"
	"formaflix-backend/internal/repository"
)

// LearningService covers the viewer side: enrollment, gated playback,
// progress heartbeats and the purchased-course library.
type LearningService struct {
	courses     *repository.CourseRepo
	lessons     *repository.LessonRepo
	enrollments *repository.EnrollmentRepo
	progress    *repository.ProgressRepo
	playback    *PlaybackService
}

func NewLearningService(
	courses *repository.CourseRepo,
	lessons *repository.LessonRepo,
	enrollments *repository.EnrollmentRepo,
	progress *repository.ProgressRepo,
	playback *PlaybackService,
) *LearningService {
	return &LearningService{
		courses:     courses,
		lessons:     lessons,
		enrollments: enrollments,
		progress:    progress,
		playback:    playback,
	}
}

func (s *LearningService) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Course not found"}
	}
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, &ConflictError{Message: "Course is not available for enrollment"}
	}

	enrollment := &models.Enrollment{UserID: userID, CourseID: courseID}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// LessonPlayback gates the lesson behind an active enrollment unless it is a
// free preview, then hands the asset to the playback layer. userID may be
// uuid.Nil for anonymous viewers, who only ever pass the free-preview path.
func (s *LearningService) LessonPlayback(ctx context.Context, userID, lessonID uuid.UUID) (models.PlaybackDescriptor, error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.PlaybackDescriptor{}, &NotFoundError{Message: "Lesson not found"}
	}
	if err != nil {
		return models.PlaybackDescriptor{}, err
	}

	if !lesson.IsFreePreview {
		if err := s.requireActiveEnrollment(ctx, userID, lesson.CourseID); err != nil {
			return models.PlaybackDescriptor{}, err
		}
	}
	return s.playback.Describe(lesson.Video)
}

// TrailerPlayback is ungated; trailers exist to be watched before purchase.
func (s *LearningService) TrailerPlayback(ctx context.Context, courseID uuid.UUID) (models.PlaybackDescriptor, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.PlaybackDescriptor{}, &NotFoundError{Message: "Course not found"}
	}
	if err != nil {
		return models.PlaybackDescriptor{}, err
	}
	return s.playback.Describe(course.Trailer)
}

// UpsertProgress records a playback heartbeat. A player that measured a
// longer duration than the stored one raises the lesson's duration, the same
// only-moves-up rule platform reports follow.
func (s *LearningService) UpsertProgress(ctx context.Context, userID uuid.UUID, req models.ProgressUpsertRequest) (*models.Progress, error) {
	if req.PositionSeconds < 0 {
		return nil, &ValidationError{Fields: map[string]string{"position_seconds": "Must not be negative"}}
	}

	enrollment, err := s.activeEnrollment(ctx, userID, req.CourseID)
	if err != nil {
		return nil, err
	}

	lesson, err := s.lessons.GetByID(ctx, req.LessonID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Lesson not found"}
	}
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != req.CourseID {
		return nil, &ValidationError{Fields: map[string]string{"lesson_id": "Lesson does not belong to this course"}}
	}

	if req.DurationSeconds > lesson.Video.DurationSeconds {
		if err := s.lessons.RaiseDuration(ctx, lesson.ID, req.DurationSeconds); err != nil {
			return nil, err
		}
	}
	return s.progress.Upsert(ctx, enrollment.ID, req.LessonID, req.PositionSeconds, req.Completed)
}

// Library lists the user's purchased courses with watch-through percentages.
func (s *LearningService) Library(ctx context.Context, userID uuid.UUID) ([]models.LibraryItem, error) {
	enrollments, err := s.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]models.LibraryItem, 0, len(enrollments))
	for _, e := range enrollments {
		course, err := s.courses.GetByID(ctx, e.CourseID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		percent, err := s.progress.CoursePercent(ctx, e.ID, e.CourseID)
		if err != nil {
			return nil, err
		}
		items = append(items, models.LibraryItem{Course: *course, Percent: percent})
	}
	return items, nil
}

func (s *LearningService) activeEnrollment(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.GetByUserAndCourse(ctx, userID, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ForbiddenError{Message: "Not enrolled in this course"}
	}
	if err != nil {
		return nil, err
	}
	if !enrollment.Active(time.Now()) {
		return nil, &ForbiddenError{Message: "Enrollment has expired"}
	}
	return enrollment, nil
}

func (s *LearningService) requireActiveEnrollment(ctx context.Context, userID, courseID uuid.UUID) error {
	_, err := s.activeEnrollment(ctx, userID, courseID)
	return err
}

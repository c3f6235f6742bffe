package progress

import (
	"context"
	"errors"
	"fmt"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrNotEnrolled     = errors.New("user is not enrolled in course")
	ErrLectureNotFound = errors.New("lecture not found")
)

type ProgressStore interface {
	UpsertLectureViewed(ctx context.Context, userID, courseID, lectureID int64, viewed bool) error
	ListLectureProgress(ctx context.Context, userID, courseID int64) ([]pgrepo.LectureProgressRecord, error)
	GetCourseProgress(ctx context.Context, userID, courseID int64) (pgrepo.CourseProgressRecord, error)
	SetCourseCompleted(ctx context.Context, userID, courseID int64, completed bool, lectureIDs []int64) error
}

type LectureStore interface {
	FindByID(ctx context.Context, lectureID int64) (pgrepo.LectureRecord, error)
	ListByCourse(ctx context.Context, courseID int64) ([]pgrepo.LectureRecord, error)
}

type EnrollmentStore interface {
	Exists(ctx context.Context, courseID, userID int64) (bool, error)
}

type Service struct {
	progress    ProgressStore
	lectures    LectureStore
	enrollments EnrollmentStore
}

type Dependencies struct {
	Progress    ProgressStore
	Lectures    LectureStore
	Enrollments EnrollmentStore
}

type CourseProgress struct {
	Completed bool
	Lectures  []pgrepo.LectureProgressRecord
}

func NewService(deps Dependencies) *Service {
	return &Service{
		progress:    deps.Progress,
		lectures:    deps.Lectures,
		enrollments: deps.Enrollments,
	}
}

// ViewLecture records that the user watched a lecture. When every
// lecture of the course has been viewed the course flips to completed.
func (s *Service) ViewLecture(ctx context.Context, userID, courseID, lectureID int64) (CourseProgress, error) {
	if err := s.requireEnrollment(ctx, userID, courseID); err != nil {
		return CourseProgress{}, err
	}

	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrLectureNotFound) {
			return CourseProgress{}, ErrLectureNotFound
		}
		return CourseProgress{}, fmt.Errorf("find lecture: %w", err)
	}
	if lecture.CourseID != courseID {
		return CourseProgress{}, ErrLectureNotFound
	}

	if err := s.progress.UpsertLectureViewed(ctx, userID, courseID, lectureID, true); err != nil {
		return CourseProgress{}, fmt.Errorf("mark lecture viewed: %w", err)
	}

	allViewed, lectureIDs, err := s.allLecturesViewed(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, err
	}
	if allViewed {
		if err := s.progress.SetCourseCompleted(ctx, userID, courseID, true, lectureIDs); err != nil {
			return CourseProgress{}, fmt.Errorf("set course completed: %w", err)
		}
	}

	return s.snapshot(ctx, userID, courseID)
}

func (s *Service) GetProgress(ctx context.Context, userID, courseID int64) (CourseProgress, error) {
	if err := s.requireEnrollment(ctx, userID, courseID); err != nil {
		return CourseProgress{}, err
	}

	return s.snapshot(ctx, userID, courseID)
}

// Reset wipes the viewed flags and the completion mark so the user can
// rewatch the course from the start.
func (s *Service) Reset(ctx context.Context, userID, courseID int64) (CourseProgress, error) {
	if err := s.requireEnrollment(ctx, userID, courseID); err != nil {
		return CourseProgress{}, err
	}

	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return CourseProgress{}, fmt.Errorf("list lectures: %w", err)
	}

	lectureIDs := make([]int64, 0, len(lectures))
	for _, lecture := range lectures {
		lectureIDs = append(lectureIDs, lecture.ID)
	}

	if err := s.progress.SetCourseCompleted(ctx, userID, courseID, false, lectureIDs); err != nil {
		return CourseProgress{}, fmt.Errorf("reset course progress: %w", err)
	}

	return s.snapshot(ctx, userID, courseID)
}

func (s *Service) requireEnrollment(ctx context.Context, userID, courseID int64) error {
	if userID <= 0 || courseID <= 0 {
		return ErrValidation
	}

	enrolled, err := s.enrollments.Exists(ctx, courseID, userID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return ErrNotEnrolled
	}

	return nil
}

func (s *Service) allLecturesViewed(ctx context.Context, userID, courseID int64) (bool, []int64, error) {
	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return false, nil, fmt.Errorf("list lectures: %w", err)
	}
	if len(lectures) == 0 {
		return false, nil, nil
	}

	records, err := s.progress.ListLectureProgress(ctx, userID, courseID)
	if err != nil {
		return false, nil, fmt.Errorf("list lecture progress: %w", err)
	}

	viewed := map[int64]bool{}
	for _, record := range records {
		if record.Viewed {
			viewed[record.LectureID] = true
		}
	}

	lectureIDs := make([]int64, 0, len(lectures))
	for _, lecture := range lectures {
		lectureIDs = append(lectureIDs, lecture.ID)
		if !viewed[lecture.ID] {
			return false, nil, nil
		}
	}

	return true, lectureIDs, nil
}

func (s *Service) snapshot(ctx context.Context, userID, courseID int64) (CourseProgress, error) {
	course, err := s.progress.GetCourseProgress(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, fmt.Errorf("get course progress: %w", err)
	}

	records, err := s.progress.ListLectureProgress(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, fmt.Errorf("list lecture progress: %w", err)
	}
	if records == nil {
		records = []pgrepo.LectureProgressRecord{}
	}

	return CourseProgress{
		Completed: course.Completed,
		Lectures:  records,
	}, nil
}

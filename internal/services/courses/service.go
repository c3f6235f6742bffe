package courses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrCourseNotFound  = errors.New("course not found")
	ErrLectureNotFound = errors.New("lecture not found")
	ErrForbidden       = errors.New("forbidden")
	ErrNoLectures      = errors.New("course has no lectures")
)

var validLevels = map[string]bool{
	"beginner":     true,
	"intermediate": true,
	"advanced":     true,
}

type CourseStore interface {
	Create(ctx context.Context, creatorID int64, title, category string) (pgrepo.CourseRecord, error)
	FindByID(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error)
	Update(ctx context.Context, courseID int64, update pgrepo.CourseUpdate) (pgrepo.CourseRecord, error)
	SetPublished(ctx context.Context, courseID int64, published bool) (pgrepo.CourseRecord, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]pgrepo.CourseRecord, error)
	SearchPublished(ctx context.Context, filter pgrepo.CourseFilter) ([]pgrepo.CourseRecord, error)
}

type LectureStore interface {
	Create(ctx context.Context, courseID int64, title string) (pgrepo.LectureRecord, error)
	FindByID(ctx context.Context, lectureID int64) (pgrepo.LectureRecord, error)
	Update(ctx context.Context, lectureID int64, update pgrepo.LectureUpdate) (pgrepo.LectureRecord, error)
	Delete(ctx context.Context, lectureID int64) error
	ListByCourse(ctx context.Context, courseID int64) ([]pgrepo.LectureRecord, error)
	CountByCourse(ctx context.Context, courseID int64) (int, error)
}

// CatalogCache is best effort: lookup and store failures degrade to a
// database query, they never fail the request.
type CatalogCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	courses  CourseStore
	lectures LectureStore
	cache    CatalogCache
	cacheTTL time.Duration
}

type Dependencies struct {
	Courses  CourseStore
	Lectures LectureStore
	Cache    CatalogCache
}

type CreateCourseInput struct {
	Title    string
	Category string
}

type UpdateCourseInput struct {
	Title        *string
	Subtitle     *string
	Description  *string
	Category     *string
	Level        *string
	Price        *int64
	ThumbnailKey *string
}

type SearchInput struct {
	Query    string
	Category string
	Limit    int
}

type UpdateLectureInput struct {
	Title     *string
	VideoKey  *string
	IsPreview *bool
	Position  *int
}

func NewService(deps Dependencies, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}

	return &Service{
		courses:  deps.Courses,
		lectures: deps.Lectures,
		cache:    deps.Cache,
		cacheTTL: cacheTTL,
	}
}

func (s *Service) CreateCourse(ctx context.Context, creatorID int64, input CreateCourseInput) (pgrepo.CourseRecord, error) {
	title := strings.TrimSpace(input.Title)
	category := strings.TrimSpace(input.Category)
	if creatorID <= 0 || title == "" || category == "" {
		return pgrepo.CourseRecord{}, ErrValidation
	}

	record, err := s.courses.Create(ctx, creatorID, title, category)
	if err != nil {
		return pgrepo.CourseRecord{}, fmt.Errorf("create course: %w", err)
	}

	return record, nil
}

func (s *Service) GetCourse(ctx context.Context, courseID int64) (pgrepo.CourseRecord, []pgrepo.LectureRecord, error) {
	if courseID <= 0 {
		return pgrepo.CourseRecord{}, nil, ErrValidation
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return pgrepo.CourseRecord{}, nil, ErrCourseNotFound
		}
		return pgrepo.CourseRecord{}, nil, fmt.Errorf("find course: %w", err)
	}

	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return pgrepo.CourseRecord{}, nil, fmt.Errorf("list lectures: %w", err)
	}

	return course, lectures, nil
}

func (s *Service) UpdateCourse(ctx context.Context, actorID, courseID int64, input UpdateCourseInput) (pgrepo.CourseRecord, error) {
	course, err := s.requireOwnedCourse(ctx, actorID, courseID)
	if err != nil {
		return pgrepo.CourseRecord{}, err
	}

	if input.Price != nil && *input.Price < 0 {
		return pgrepo.CourseRecord{}, ErrValidation
	}
	if input.Level != nil {
		level := strings.ToLower(strings.TrimSpace(*input.Level))
		if !validLevels[level] {
			return pgrepo.CourseRecord{}, ErrValidation
		}
		input.Level = &level
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return pgrepo.CourseRecord{}, ErrValidation
	}

	updated, err := s.courses.Update(ctx, course.ID, pgrepo.CourseUpdate{
		Title:        input.Title,
		Subtitle:     input.Subtitle,
		Description:  input.Description,
		Category:     input.Category,
		Level:        input.Level,
		Price:        input.Price,
		ThumbnailKey: input.ThumbnailKey,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return pgrepo.CourseRecord{}, ErrCourseNotFound
		}
		return pgrepo.CourseRecord{}, fmt.Errorf("update course: %w", err)
	}

	s.dropCatalogCache(ctx)

	return updated, nil
}

// PublishCourse requires at least one lecture before a course becomes
// visible in the catalog. Unpublishing has no such requirement.
func (s *Service) PublishCourse(ctx context.Context, actorID, courseID int64, publish bool) (pgrepo.CourseRecord, error) {
	course, err := s.requireOwnedCourse(ctx, actorID, courseID)
	if err != nil {
		return pgrepo.CourseRecord{}, err
	}

	if publish {
		count, err := s.lectures.CountByCourse(ctx, course.ID)
		if err != nil {
			return pgrepo.CourseRecord{}, fmt.Errorf("count lectures: %w", err)
		}
		if count == 0 {
			return pgrepo.CourseRecord{}, ErrNoLectures
		}
	}

	updated, err := s.courses.SetPublished(ctx, course.ID, publish)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return pgrepo.CourseRecord{}, ErrCourseNotFound
		}
		return pgrepo.CourseRecord{}, fmt.Errorf("set course published: %w", err)
	}

	s.dropCatalogCache(ctx)

	return updated, nil
}

func (s *Service) ListMine(ctx context.Context, creatorID int64) ([]pgrepo.CourseRecord, error) {
	if creatorID <= 0 {
		return nil, ErrValidation
	}

	records, err := s.courses.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list courses by creator: %w", err)
	}

	return records, nil
}

func (s *Service) SearchPublished(ctx context.Context, input SearchInput) ([]pgrepo.CourseRecord, error) {
	filter := pgrepo.CourseFilter{
		Query:    strings.TrimSpace(input.Query),
		Category: strings.TrimSpace(input.Category),
		Limit:    input.Limit,
	}

	cacheKey := searchCacheKey(filter)
	if s.cache != nil {
		if payload, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			var cached []pgrepo.CourseRecord
			if unmarshalErr := json.Unmarshal(payload, &cached); unmarshalErr == nil {
				return cached, nil
			}
		}
	}

	records, err := s.courses.SearchPublished(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search published courses: %w", err)
	}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(records); marshalErr == nil {
			_ = s.cache.Set(ctx, cacheKey, payload, s.cacheTTL)
		}
	}

	return records, nil
}

func (s *Service) AddLecture(ctx context.Context, actorID, courseID int64, title string) (pgrepo.LectureRecord, error) {
	course, err := s.requireOwnedCourse(ctx, actorID, courseID)
	if err != nil {
		return pgrepo.LectureRecord{}, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return pgrepo.LectureRecord{}, ErrValidation
	}

	record, err := s.lectures.Create(ctx, course.ID, title)
	if err != nil {
		return pgrepo.LectureRecord{}, fmt.Errorf("create lecture: %w", err)
	}

	return record, nil
}

func (s *Service) UpdateLecture(ctx context.Context, actorID, courseID, lectureID int64, input UpdateLectureInput) (pgrepo.LectureRecord, error) {
	if _, err := s.requireOwnedCourse(ctx, actorID, courseID); err != nil {
		return pgrepo.LectureRecord{}, err
	}

	lecture, err := s.requireCourseLecture(ctx, courseID, lectureID)
	if err != nil {
		return pgrepo.LectureRecord{}, err
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return pgrepo.LectureRecord{}, ErrValidation
	}
	if input.Position != nil && *input.Position < 0 {
		return pgrepo.LectureRecord{}, ErrValidation
	}

	updated, err := s.lectures.Update(ctx, lecture.ID, pgrepo.LectureUpdate{
		Title:     input.Title,
		VideoKey:  input.VideoKey,
		IsPreview: input.IsPreview,
		Position:  input.Position,
	})
	if err != nil {
		if errors.Is(err, pgrepo.ErrLectureNotFound) {
			return pgrepo.LectureRecord{}, ErrLectureNotFound
		}
		return pgrepo.LectureRecord{}, fmt.Errorf("update lecture: %w", err)
	}

	return updated, nil
}

func (s *Service) DeleteLecture(ctx context.Context, actorID, courseID, lectureID int64) error {
	if _, err := s.requireOwnedCourse(ctx, actorID, courseID); err != nil {
		return err
	}
	if _, err := s.requireCourseLecture(ctx, courseID, lectureID); err != nil {
		return err
	}

	if err := s.lectures.Delete(ctx, lectureID); err != nil {
		if errors.Is(err, pgrepo.ErrLectureNotFound) {
			return ErrLectureNotFound
		}
		return fmt.Errorf("delete lecture: %w", err)
	}

	return nil
}

func (s *Service) ListLectures(ctx context.Context, courseID int64) ([]pgrepo.LectureRecord, error) {
	if courseID <= 0 {
		return nil, ErrValidation
	}

	records, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}

	return records, nil
}

func (s *Service) requireOwnedCourse(ctx context.Context, actorID, courseID int64) (pgrepo.CourseRecord, error) {
	if actorID <= 0 || courseID <= 0 {
		return pgrepo.CourseRecord{}, ErrValidation
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return pgrepo.CourseRecord{}, ErrCourseNotFound
		}
		return pgrepo.CourseRecord{}, fmt.Errorf("find course: %w", err)
	}
	if course.CreatorID != actorID {
		return pgrepo.CourseRecord{}, ErrForbidden
	}

	return course, nil
}

func (s *Service) requireCourseLecture(ctx context.Context, courseID, lectureID int64) (pgrepo.LectureRecord, error) {
	if lectureID <= 0 {
		return pgrepo.LectureRecord{}, ErrValidation
	}

	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrLectureNotFound) {
			return pgrepo.LectureRecord{}, ErrLectureNotFound
		}
		return pgrepo.LectureRecord{}, fmt.Errorf("find lecture: %w", err)
	}
	if lecture.CourseID != courseID {
		return pgrepo.LectureRecord{}, ErrLectureNotFound
	}

	return lecture, nil
}

func (s *Service) dropCatalogCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx)
}

func searchCacheKey(filter pgrepo.CourseFilter) string {
	return strings.ToLower(filter.Query) + "|" + strings.ToLower(filter.Category) + "|" + strconv.Itoa(filter.Limit)
}

package courses_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
	redrepo "github.com/nikitagusev/learnhub/backend/internal/repo/redis"
	coursesvc "github.com/nikitagusev/learnhub/backend/internal/services/courses"
)

type fakeCourseStore struct {
	mu          sync.Mutex
	nextID      int64
	courses     map[int64]pgrepo.CourseRecord
	searchCalls int
}

func newFakeCourseStore() *fakeCourseStore {
	return &fakeCourseStore{courses: map[int64]pgrepo.CourseRecord{}}
}

func (s *fakeCourseStore) Create(_ context.Context, creatorID int64, title, category string) (pgrepo.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record := pgrepo.CourseRecord{
		ID:        s.nextID,
		CreatorID: creatorID,
		Title:     title,
		Category:  category,
		Level:     "beginner",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.courses[record.ID] = record
	return record, nil
}

func (s *fakeCourseStore) FindByID(_ context.Context, courseID int64) (pgrepo.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.courses[courseID]
	if !ok {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	return record, nil
}

func (s *fakeCourseStore) Update(_ context.Context, courseID int64, update pgrepo.CourseUpdate) (pgrepo.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.courses[courseID]
	if !ok {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	if update.Title != nil {
		record.Title = *update.Title
	}
	if update.Subtitle != nil {
		record.Subtitle = update.Subtitle
	}
	if update.Description != nil {
		record.Description = update.Description
	}
	if update.Category != nil {
		record.Category = *update.Category
	}
	if update.Level != nil {
		record.Level = *update.Level
	}
	if update.Price != nil {
		record.Price = *update.Price
	}
	if update.ThumbnailKey != nil {
		record.ThumbnailKey = update.ThumbnailKey
	}
	s.courses[courseID] = record
	return record, nil
}

func (s *fakeCourseStore) SetPublished(_ context.Context, courseID int64, published bool) (pgrepo.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.courses[courseID]
	if !ok {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	record.Published = published
	s.courses[courseID] = record
	return record, nil
}

func (s *fakeCourseStore) ListByCreator(_ context.Context, creatorID int64) ([]pgrepo.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []pgrepo.CourseRecord
	for _, record := range s.courses {
		if record.CreatorID == creatorID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *fakeCourseStore) SearchPublished(_ context.Context, filter pgrepo.CourseFilter) ([]pgrepo.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchCalls++

	var records []pgrepo.CourseRecord
	for _, record := range s.courses {
		if !record.Published {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(record.Title), strings.ToLower(filter.Query)) {
			continue
		}
		if filter.Category != "" && record.Category != filter.Category {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

type fakeLectureStore struct {
	mu       sync.Mutex
	nextID   int64
	lectures map[int64]pgrepo.LectureRecord
}

func newFakeLectureStore() *fakeLectureStore {
	return &fakeLectureStore{lectures: map[int64]pgrepo.LectureRecord{}}
}

func (s *fakeLectureStore) Create(_ context.Context, courseID int64, title string) (pgrepo.LectureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := 0
	for _, lecture := range s.lectures {
		if lecture.CourseID == courseID && lecture.Position >= position {
			position = lecture.Position + 1
		}
	}

	s.nextID++
	record := pgrepo.LectureRecord{
		ID:       s.nextID,
		CourseID: courseID,
		Title:    title,
		Position: position,
	}
	s.lectures[record.ID] = record
	return record, nil
}

func (s *fakeLectureStore) FindByID(_ context.Context, lectureID int64) (pgrepo.LectureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.lectures[lectureID]
	if !ok {
		return pgrepo.LectureRecord{}, pgrepo.ErrLectureNotFound
	}
	return record, nil
}

func (s *fakeLectureStore) Update(_ context.Context, lectureID int64, update pgrepo.LectureUpdate) (pgrepo.LectureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.lectures[lectureID]
	if !ok {
		return pgrepo.LectureRecord{}, pgrepo.ErrLectureNotFound
	}
	if update.Title != nil {
		record.Title = *update.Title
	}
	if update.VideoKey != nil {
		record.VideoKey = update.VideoKey
	}
	if update.IsPreview != nil {
		record.IsPreview = *update.IsPreview
	}
	if update.Position != nil {
		record.Position = *update.Position
	}
	s.lectures[lectureID] = record
	return record, nil
}

func (s *fakeLectureStore) Delete(_ context.Context, lectureID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lectures[lectureID]; !ok {
		return pgrepo.ErrLectureNotFound
	}
	delete(s.lectures, lectureID)
	return nil
}

func (s *fakeLectureStore) ListByCourse(_ context.Context, courseID int64) ([]pgrepo.LectureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []pgrepo.LectureRecord
	for _, record := range s.lectures {
		if record.CourseID == courseID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Position < records[j].Position })
	return records, nil
}

func (s *fakeLectureStore) CountByCourse(_ context.Context, courseID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.lectures {
		if record.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

type testEnv struct {
	svc      *coursesvc.Service
	courses  *fakeCourseStore
	lectures *fakeLectureStore
}

func newTestService(t *testing.T) testEnv {
	t.Helper()

	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	courseStore := newFakeCourseStore()
	lectureStore := newFakeLectureStore()

	svc := coursesvc.NewService(coursesvc.Dependencies{
		Courses:  courseStore,
		Lectures: lectureStore,
		Cache:    redrepo.NewCacheRepo(client),
	}, time.Minute)

	return testEnv{svc: svc, courses: courseStore, lectures: lectureStore}
}

func TestCreateCourseValidation(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	if _, err := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "", Category: "dev"}); !errors.Is(err, coursesvc.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty title, got %v", err)
	}

	course, err := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "Go Basics", Category: "dev"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if course.CreatorID != 1 || course.Published {
		t.Fatalf("unexpected course record: %+v", course)
	}
}

func TestUpdateCourseOwnershipAndValidation(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	course, err := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "Go Basics", Category: "dev"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}

	title := "Go Basics II"
	if _, err := env.svc.UpdateCourse(ctx, 2, course.ID, coursesvc.UpdateCourseInput{Title: &title}); !errors.Is(err, coursesvc.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign actor, got %v", err)
	}

	badPrice := int64(-1)
	if _, err := env.svc.UpdateCourse(ctx, 1, course.ID, coursesvc.UpdateCourseInput{Price: &badPrice}); !errors.Is(err, coursesvc.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative price, got %v", err)
	}

	badLevel := "ninja"
	if _, err := env.svc.UpdateCourse(ctx, 1, course.ID, coursesvc.UpdateCourseInput{Level: &badLevel}); !errors.Is(err, coursesvc.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown level, got %v", err)
	}

	price := int64(500)
	updated, err := env.svc.UpdateCourse(ctx, 1, course.ID, coursesvc.UpdateCourseInput{Title: &title, Price: &price})
	if err != nil {
		t.Fatalf("update course: %v", err)
	}
	if updated.Title != title || updated.Price != 500 {
		t.Fatalf("unexpected updated course: %+v", updated)
	}
}

func TestPublishRequiresLecture(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	course, err := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "Go Basics", Category: "dev"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}

	if _, err := env.svc.PublishCourse(ctx, 1, course.ID, true); !errors.Is(err, coursesvc.ErrNoLectures) {
		t.Fatalf("expected ErrNoLectures, got %v", err)
	}

	if _, err := env.svc.AddLecture(ctx, 1, course.ID, "Intro"); err != nil {
		t.Fatalf("add lecture: %v", err)
	}

	published, err := env.svc.PublishCourse(ctx, 1, course.ID, true)
	if err != nil {
		t.Fatalf("publish course: %v", err)
	}
	if !published.Published {
		t.Fatalf("course not marked published: %+v", published)
	}

	unpublished, err := env.svc.PublishCourse(ctx, 1, course.ID, false)
	if err != nil {
		t.Fatalf("unpublish course: %v", err)
	}
	if unpublished.Published {
		t.Fatalf("course still published: %+v", unpublished)
	}
}

func TestSearchPublishedUsesCache(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	course, err := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "Go Basics", Category: "dev"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if _, err := env.svc.AddLecture(ctx, 1, course.ID, "Intro"); err != nil {
		t.Fatalf("add lecture: %v", err)
	}
	if _, err := env.svc.PublishCourse(ctx, 1, course.ID, true); err != nil {
		t.Fatalf("publish course: %v", err)
	}

	first, err := env.svc.SearchPublished(ctx, coursesvc.SearchInput{Query: "go"})
	if err != nil {
		t.Fatalf("first search: %v", err)
	}
	if len(first) != 1 || first[0].ID != course.ID {
		t.Fatalf("unexpected first search result: %+v", first)
	}

	second, err := env.svc.SearchPublished(ctx, coursesvc.SearchInput{Query: "go"})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("unexpected second search result: %+v", second)
	}

	if env.courses.searchCalls != 1 {
		t.Fatalf("expected one database search, got %d", env.courses.searchCalls)
	}

	// Unpublishing drops the cache, so the next search hits the database
	// and no longer returns the course.
	if _, err := env.svc.PublishCourse(ctx, 1, course.ID, false); err != nil {
		t.Fatalf("unpublish course: %v", err)
	}

	third, err := env.svc.SearchPublished(ctx, coursesvc.SearchInput{Query: "go"})
	if err != nil {
		t.Fatalf("third search: %v", err)
	}
	if len(third) != 0 {
		t.Fatalf("stale search result after unpublish: %+v", third)
	}
	if env.courses.searchCalls != 2 {
		t.Fatalf("expected cache invalidation to force a second database search, got %d", env.courses.searchCalls)
	}
}

func TestLectureLifecycle(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	course, err := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "Go Basics", Category: "dev"})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}

	first, err := env.svc.AddLecture(ctx, 1, course.ID, "Intro")
	if err != nil {
		t.Fatalf("add first lecture: %v", err)
	}
	second, err := env.svc.AddLecture(ctx, 1, course.ID, "Types")
	if err != nil {
		t.Fatalf("add second lecture: %v", err)
	}
	if second.Position <= first.Position {
		t.Fatalf("positions not monotonic: %d then %d", first.Position, second.Position)
	}

	if _, err := env.svc.AddLecture(ctx, 2, course.ID, "Hijack"); !errors.Is(err, coursesvc.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign actor, got %v", err)
	}

	preview := true
	updated, err := env.svc.UpdateLecture(ctx, 1, course.ID, first.ID, coursesvc.UpdateLectureInput{IsPreview: &preview})
	if err != nil {
		t.Fatalf("update lecture: %v", err)
	}
	if !updated.IsPreview {
		t.Fatalf("lecture not marked preview: %+v", updated)
	}

	if err := env.svc.DeleteLecture(ctx, 1, course.ID, second.ID); err != nil {
		t.Fatalf("delete lecture: %v", err)
	}

	remaining, err := env.svc.ListLectures(ctx, course.ID)
	if err != nil {
		t.Fatalf("list lectures: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != first.ID {
		t.Fatalf("unexpected remaining lectures: %+v", remaining)
	}
}

func TestLectureFromAnotherCourseIsNotFound(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	courseA, _ := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "A", Category: "dev"})
	courseB, _ := env.svc.CreateCourse(ctx, 1, coursesvc.CreateCourseInput{Title: "B", Category: "dev"})

	lecture, err := env.svc.AddLecture(ctx, 1, courseA.ID, "Intro")
	if err != nil {
		t.Fatalf("add lecture: %v", err)
	}

	if err := env.svc.DeleteLecture(ctx, 1, courseB.ID, lecture.ID); !errors.Is(err, coursesvc.ErrLectureNotFound) {
		t.Fatalf("expected ErrLectureNotFound for cross-course delete, got %v", err)
	}
}

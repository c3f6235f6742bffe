package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
)

const eventCheckoutCompleted = "checkout.session.completed"

var (
	ErrValidation         = errors.New("validation error")
	ErrCourseNotFound     = errors.New("course not found")
	ErrCourseNotPublished = errors.New("course is not published")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrSignatureInvalid   = errors.New("invalid webhook signature")
	ErrGateway            = errors.New("payment gateway error")
)

type PurchaseStore interface {
	CreatePending(ctx context.Context, courseID, userID, amount int64) (pgrepo.PurchaseRecord, error)
	AttachSession(ctx context.Context, purchaseID int64, sessionID string) (pgrepo.PurchaseRecord, error)
	MarkFailed(ctx context.Context, purchaseID int64) error
	FindBySession(ctx context.Context, sessionID string) (pgrepo.PurchaseRecord, error)
	FindForUserCourse(ctx context.Context, userID, courseID int64) (pgrepo.PurchaseRecord, error)
	MarkCompleted(ctx context.Context, purchaseID int64) (pgrepo.PurchaseRecord, bool, error)
	ListSalesByCourses(ctx context.Context, courseIDs []int64) ([]pgrepo.SaleRecord, error)
}

type CourseStore interface {
	FindByID(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error)
	ListByCreator(ctx context.Context, creatorID int64) ([]pgrepo.CourseRecord, error)
}

type EnrollmentStore interface {
	Add(ctx context.Context, courseID, userID int64) error
	ListCourseIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

type LectureStore interface {
	ListByCourse(ctx context.Context, courseID int64) ([]pgrepo.LectureRecord, error)
}

// ThumbnailResolver signs a fetchable URL for a stored thumbnail key so
// the hosted checkout page can show the course image.
type ThumbnailResolver interface {
	ResolveURL(ctx context.Context, key string) (string, error)
}

// SessionInput carries everything the gateway needs to open a hosted
// checkout page. Amount is in the currency's minor unit. ThumbnailURL
// is empty when the course has no thumbnail.
type SessionInput struct {
	PurchaseID   int64
	CourseID     int64
	UserID       int64
	CourseTitle  string
	ThumbnailURL string
	AmountMinor  int64
	SuccessURL   string
	CancelURL    string
}

type Session struct {
	ID  string
	URL string
}

type Event struct {
	Type      string
	SessionID string
}

// Gateway abstracts the external payment processor. VerifyEvent must be
// fed the raw request body: any re-serialization breaks the signature.
type Gateway interface {
	CreateSession(ctx context.Context, input SessionInput) (Session, error)
	VerifyEvent(payload []byte, signature string) (Event, error)
}

type Service struct {
	purchases   PurchaseStore
	courses     CourseStore
	enrollments EnrollmentStore
	lectures    LectureStore
	gateway     Gateway
	thumbnails  ThumbnailResolver
	redirectURL string
	logger      *zap.Logger
}

type Dependencies struct {
	Purchases   PurchaseStore
	Courses     CourseStore
	Enrollments EnrollmentStore
	Lectures    LectureStore
	Gateway     Gateway
	Thumbnails  ThumbnailResolver
	Logger      *zap.Logger
}

type CheckoutResult struct {
	PurchaseID  int64
	CheckoutURL string
}

type CourseDetail struct {
	Course    pgrepo.CourseRecord
	Lectures  []pgrepo.LectureRecord
	Purchased bool
}

func NewService(deps Dependencies, redirectBaseURL string) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		purchases:   deps.Purchases,
		courses:     deps.Courses,
		enrollments: deps.Enrollments,
		lectures:    deps.Lectures,
		gateway:     deps.Gateway,
		thumbnails:  deps.Thumbnails,
		redirectURL: strings.TrimRight(strings.TrimSpace(redirectBaseURL), "/"),
		logger:      logger,
	}
}

// Checkout persists the pending purchase before the gateway call so a
// crash mid-flight can never produce an external session with no local
// record. A gateway failure flips the row to failed and surfaces
// ErrGateway.
func (s *Service) Checkout(ctx context.Context, userID, courseID int64) (CheckoutResult, error) {
	if userID <= 0 || courseID <= 0 {
		return CheckoutResult{}, ErrValidation
	}
	if s.gateway == nil {
		return CheckoutResult{}, fmt.Errorf("%w: gateway is not configured", ErrGateway)
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return CheckoutResult{}, ErrCourseNotFound
		}
		return CheckoutResult{}, fmt.Errorf("find course: %w", err)
	}
	if !course.Published {
		return CheckoutResult{}, ErrCourseNotPublished
	}

	purchase, err := s.purchases.CreatePending(ctx, course.ID, userID, course.Price)
	if err != nil {
		return CheckoutResult{}, fmt.Errorf("create pending purchase: %w", err)
	}

	session, err := s.gateway.CreateSession(ctx, SessionInput{
		PurchaseID:   purchase.ID,
		CourseID:     course.ID,
		UserID:       userID,
		CourseTitle:  course.Title,
		ThumbnailURL: s.thumbnailURL(ctx, course),
		AmountMinor:  course.Price * 100,
		SuccessURL:   fmt.Sprintf("%s/course-progress/%d", s.redirectURL, course.ID),
		CancelURL:    fmt.Sprintf("%s/course-detail/%d", s.redirectURL, course.ID),
	})
	if err != nil {
		if failErr := s.purchases.MarkFailed(ctx, purchase.ID); failErr != nil {
			return CheckoutResult{}, fmt.Errorf("mark purchase failed: %w", failErr)
		}
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.URL) == "" {
		if failErr := s.purchases.MarkFailed(ctx, purchase.ID); failErr != nil {
			return CheckoutResult{}, fmt.Errorf("mark purchase failed: %w", failErr)
		}
		return CheckoutResult{}, fmt.Errorf("%w: gateway returned no session url", ErrGateway)
	}

	if _, err := s.purchases.AttachSession(ctx, purchase.ID, session.ID); err != nil {
		return CheckoutResult{}, fmt.Errorf("attach session to purchase: %w", err)
	}

	return CheckoutResult{
		PurchaseID:  purchase.ID,
		CheckoutURL: session.URL,
	}, nil
}

// HandleWebhook verifies the event signature against the raw payload and
// completes the referenced purchase. Events other than checkout
// completion are acknowledged and dropped. Duplicate delivery is a no-op.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if len(payload) == 0 {
		return ErrValidation
	}
	if s.gateway == nil {
		return fmt.Errorf("%w: gateway is not configured", ErrGateway)
	}

	event, err := s.gateway.VerifyEvent(payload, signature)
	if err != nil {
		return ErrSignatureInvalid
	}
	if event.Type != eventCheckoutCompleted {
		return nil
	}
	if strings.TrimSpace(event.SessionID) == "" {
		return ErrValidation
	}

	purchase, err := s.purchases.FindBySession(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			s.logger.Warn("webhook references unknown checkout session",
				zap.String("session_id", event.SessionID))
			return ErrPurchaseNotFound
		}
		return fmt.Errorf("find purchase by session: %w", err)
	}

	if err := s.complete(ctx, purchase); err != nil {
		return err
	}

	return nil
}

// CourseDetail returns the course payload with the caller's purchase
// state. A pending purchase found here is completed defensively, which
// covers missed or delayed webhook delivery. Purchased means a completed
// purchase exists, nothing weaker.
func (s *Service) CourseDetail(ctx context.Context, userID, courseID int64) (CourseDetail, error) {
	if userID <= 0 || courseID <= 0 {
		return CourseDetail{}, ErrValidation
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return CourseDetail{}, ErrCourseNotFound
		}
		return CourseDetail{}, fmt.Errorf("find course: %w", err)
	}

	lectures, err := s.lectures.ListByCourse(ctx, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list lectures: %w", err)
	}

	purchased := false
	purchase, err := s.purchases.FindForUserCourse(ctx, userID, courseID)
	switch {
	case err == nil:
		if purchase.Status == pgrepo.PurchaseStatusPending {
			if err := s.complete(ctx, purchase); err != nil {
				return CourseDetail{}, err
			}
			purchased = true
		} else if purchase.Status == pgrepo.PurchaseStatusCompleted {
			if err := s.enrollments.Add(ctx, courseID, userID); err != nil {
				return CourseDetail{}, fmt.Errorf("add enrollment: %w", err)
			}
			purchased = true
		}
	case errors.Is(err, pgrepo.ErrPurchaseNotFound):
	default:
		return CourseDetail{}, fmt.Errorf("find purchase for user course: %w", err)
	}

	if !purchased && userID != course.CreatorID {
		lectures = hidePaidVideoKeys(lectures)
	}

	return CourseDetail{
		Course:    course,
		Lectures:  lectures,
		Purchased: purchased,
	}, nil
}

// hidePaidVideoKeys strips video keys from non-preview lectures. Callers
// without a completed purchase get the full syllabus but no playable
// keys for paid content.
func hidePaidVideoKeys(lectures []pgrepo.LectureRecord) []pgrepo.LectureRecord {
	hidden := make([]pgrepo.LectureRecord, len(lectures))
	for i, lecture := range lectures {
		if !lecture.IsPreview {
			lecture.VideoKey = nil
		}
		hidden[i] = lecture
	}
	return hidden
}

// thumbnailURL is best effort. A missing resolver or a signing failure
// only drops the image from the checkout page, never the checkout.
func (s *Service) thumbnailURL(ctx context.Context, course pgrepo.CourseRecord) string {
	if s.thumbnails == nil || course.ThumbnailKey == nil {
		return ""
	}

	url, err := s.thumbnails.ResolveURL(ctx, *course.ThumbnailKey)
	if err != nil {
		s.logger.Warn("resolve course thumbnail failed",
			zap.Int64("course_id", course.ID), zap.Error(err))
		return ""
	}
	return url
}

// InstructorSales reports every completed purchase across the
// instructor's courses.
func (s *Service) InstructorSales(ctx context.Context, instructorID int64) ([]pgrepo.SaleRecord, error) {
	if instructorID <= 0 {
		return nil, ErrValidation
	}

	courses, err := s.courses.ListByCreator(ctx, instructorID)
	if err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	if len(courses) == 0 {
		return []pgrepo.SaleRecord{}, nil
	}

	courseIDs := make([]int64, 0, len(courses))
	for _, course := range courses {
		courseIDs = append(courseIDs, course.ID)
	}

	sales, err := s.purchases.ListSalesByCourses(ctx, courseIDs)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if sales == nil {
		sales = []pgrepo.SaleRecord{}
	}

	return sales, nil
}

// EnrolledCourses lists the courses the user holds an enrollment for,
// newest first.
func (s *Service) EnrolledCourses(ctx context.Context, userID int64) ([]pgrepo.CourseRecord, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}

	courseIDs, err := s.enrollments.ListCourseIDsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled course ids: %w", err)
	}

	courses := make([]pgrepo.CourseRecord, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		course, err := s.courses.FindByID(ctx, courseID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrCourseNotFound) {
				continue
			}
			return nil, fmt.Errorf("find enrolled course: %w", err)
		}
		courses = append(courses, course)
	}

	return courses, nil
}

// complete is the single path from pending to completed. The guarded
// update makes duplicate webhook delivery and a racing defensive
// completion converge on one state, and the enrollment insert is an
// idempotent set-insert on both sides of the relation.
func (s *Service) complete(ctx context.Context, purchase pgrepo.PurchaseRecord) error {
	record, _, err := s.purchases.MarkCompleted(ctx, purchase.ID)
	if err != nil {
		return fmt.Errorf("mark purchase completed: %w", err)
	}

	if err := s.enrollments.Add(ctx, record.CourseID, record.UserID); err != nil {
		return fmt.Errorf("add enrollment: %w", err)
	}

	return nil
}

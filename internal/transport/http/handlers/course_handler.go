package handlers

import (
	"errors"
	"net/http"
	"strconv"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
	coursesvc "github.com/nikitagusev/learnhub/backend/internal/services/courses"
	"github.com/nikitagusev/learnhub/backend/internal/transport/http/dto"
	httperrors "github.com/nikitagusev/learnhub/backend/internal/transport/http/errors"
)

type CourseHandler struct {
	service *coursesvc.Service
}

func NewCourseHandler(service *coursesvc.Service) *CourseHandler {
	return &CourseHandler{service: service}
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	var req dto.CourseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	course, err := h.service.CreateCourse(r.Context(), identity.UserID, coursesvc.CreateCourseInput{
		Title:    req.Title,
		Category: req.Category,
	})
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, courseToDTO(course))
}

func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	var req dto.CourseUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	course, err := h.service.UpdateCourse(r.Context(), identity.UserID, courseID, coursesvc.UpdateCourseInput{
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		Description:  req.Description,
		Category:     req.Category,
		Level:        req.Level,
		Price:        req.Price,
		ThumbnailKey: req.ThumbnailKey,
	})
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, courseToDTO(course))
}

func (h *CourseHandler) Publish(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	var req dto.CoursePublishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	course, err := h.service.PublishCourse(r.Context(), identity.UserID, courseID, req.Published)
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, courseToDTO(course))
}

func (h *CourseHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	courses, err := h.service.ListMine(r.Context(), identity.UserID)
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, coursesToDTO(courses))
}

func (h *CourseHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	courses, err := h.service.SearchPublished(r.Context(), coursesvc.SearchInput{
		Query:    query.Get("q"),
		Category: query.Get("category"),
		Limit:    limit,
	})
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, coursesToDTO(courses))
}

func (h *CourseHandler) AddLecture(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	var req dto.LectureCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	lecture, err := h.service.AddLecture(r.Context(), identity.UserID, courseID, req.Title)
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, lectureToDTO(lecture))
}

func (h *CourseHandler) UpdateLecture(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	lectureID, ok := pathID(r, "lectureID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid lecture id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	var req dto.LectureUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	lecture, err := h.service.UpdateLecture(r.Context(), identity.UserID, courseID, lectureID, coursesvc.UpdateLectureInput{
		Title:     req.Title,
		VideoKey:  req.VideoKey,
		IsPreview: req.IsPreview,
		Position:  req.Position,
	})
	if err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, lectureToDTO(lecture))
}

func (h *CourseHandler) DeleteLecture(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	lectureID, ok := pathID(r, "lectureID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid lecture id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	if err := h.service.DeleteLecture(r.Context(), identity.UserID, courseID, lectureID); err != nil {
		handleCourseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteResponse{OK: true})
}

// Get is the public course view. Unpublished courses are invisible
// here; their owners read them through /courses/mine and buyers through
// the authenticated detail route.
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	course, lectures, err := h.service.GetCourse(r.Context(), courseID)
	if err != nil {
		handleCourseError(w, err)
		return
	}
	if !course.Published {
		writeNotFound(w, "COURSE_NOT_FOUND", "course not found")
		return
	}

	// Anonymous callers only see preview lectures; paid video keys stay behind
	// the authenticated detail route.
	previews := lectures[:0:0]
	for _, lecture := range lectures {
		if lecture.IsPreview {
			previews = append(previews, lecture)
		}
	}

	httperrors.Write(w, http.StatusOK, dto.CourseViewResponse{
		Course:   courseToDTO(course),
		Lectures: lecturesToDTO(previews).Lectures,
	})
}

func (h *CourseHandler) ListLectures(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(r, "courseID")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course id")
		return
	}
	if h.service == nil {
		writeInternal(w, "COURSE_SERVICE_UNAVAILABLE", "course service is unavailable")
		return
	}

	lectures, err := h.service.ListLectures(r.Context(), courseID)
	if err != nil {
		handleCourseError(w, err)
		return
	}

	// Unauthenticated route: expose the syllabus, strip playable keys for
	// everything that is not a preview.
	for i := range lectures {
		if !lectures[i].IsPreview {
			lectures[i].VideoKey = nil
		}
	}

	httperrors.Write(w, http.StatusOK, lecturesToDTO(lectures))
}

func handleCourseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coursesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course payload")
	case errors.Is(err, coursesvc.ErrNoLectures):
		writeBadRequest(w, "COURSE_HAS_NO_LECTURES", "add a lecture before publishing")
	case errors.Is(err, coursesvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "course belongs to another instructor")
	case errors.Is(err, coursesvc.ErrCourseNotFound):
		writeNotFound(w, "COURSE_NOT_FOUND", "course not found")
	case errors.Is(err, coursesvc.ErrLectureNotFound):
		writeNotFound(w, "LECTURE_NOT_FOUND", "lecture not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "course request failed")
	}
}

func courseToDTO(record pgrepo.CourseRecord) dto.CourseResponse {
	return dto.CourseResponse{
		ID:           record.ID,
		CreatorID:    record.CreatorID,
		Title:        record.Title,
		Subtitle:     record.Subtitle,
		Description:  record.Description,
		Category:     record.Category,
		Level:        record.Level,
		Price:        record.Price,
		ThumbnailKey: record.ThumbnailKey,
		Published:    record.Published,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func coursesToDTO(records []pgrepo.CourseRecord) dto.CourseListResponse {
	courses := make([]dto.CourseResponse, 0, len(records))
	for _, record := range records {
		courses = append(courses, courseToDTO(record))
	}
	return dto.CourseListResponse{Courses: courses}
}

func lectureToDTO(record pgrepo.LectureRecord) dto.LectureResponse {
	return dto.LectureResponse{
		ID:        record.ID,
		CourseID:  record.CourseID,
		Title:     record.Title,
		VideoKey:  record.VideoKey,
		IsPreview: record.IsPreview,
		Position:  record.Position,
	}
}

func lecturesToDTO(records []pgrepo.LectureRecord) dto.LectureListResponse {
	lectures := make([]dto.LectureResponse, 0, len(records))
	for _, record := range records {
		lectures = append(lectures, lectureToDTO(record))
	}
	return dto.LectureListResponse{Lectures: lectures}
}

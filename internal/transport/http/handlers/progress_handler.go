package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
	progresssvc "github.com/nikitagusev/learnhub/backend/internal/services/progress"
	"github.com/nikitagusev/learnhub/backend/internal/transport/http/dto"
	httperrors "github.com/nikitagusev/learnhub/backend/internal/transport/http/errors"
)

type ProgressHandler struct {
	service *progresssvc.Service
}

func NewProgressHandler(service *progresssvc.Service) *ProgressHandler {
	return &ProgressHandler{service: service}
}

func (h *ProgressHandler) ViewLecture(w http.ResponseWriter, r *http.Request) {
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
		writeInternal(w, "PROGRESS_SERVICE_UNAVAILABLE", "progress service is unavailable")
		return
	}

	snapshot, err := h.service.ViewLecture(r.Context(), identity.UserID, courseID, lectureID)
	if err != nil {
		handleProgressError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, progressToDTO(snapshot))
}

func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
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
		writeInternal(w, "PROGRESS_SERVICE_UNAVAILABLE", "progress service is unavailable")
		return
	}

	snapshot, err := h.service.GetProgress(r.Context(), identity.UserID, courseID)
	if err != nil {
		handleProgressError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, progressToDTO(snapshot))
}

func (h *ProgressHandler) Reset(w http.ResponseWriter, r *http.Request) {
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
		writeInternal(w, "PROGRESS_SERVICE_UNAVAILABLE", "progress service is unavailable")
		return
	}

	snapshot, err := h.service.Reset(r.Context(), identity.UserID, courseID)
	if err != nil {
		handleProgressError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, progressToDTO(snapshot))
}

func handleProgressError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, progresssvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid progress payload")
	case errors.Is(err, progresssvc.ErrNotEnrolled):
		writeForbidden(w, "NOT_ENROLLED", "purchase the course to track progress")
	case errors.Is(err, progresssvc.ErrLectureNotFound):
		writeNotFound(w, "LECTURE_NOT_FOUND", "lecture not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "progress request failed")
	}
}

func progressToDTO(snapshot progresssvc.CourseProgress) dto.CourseProgressResponse {
	lectures := make([]dto.LectureProgressResponse, 0, len(snapshot.Lectures))
	for _, record := range snapshot.Lectures {
		lectures = append(lectures, dto.LectureProgressResponse{
			LectureID: record.LectureID,
			Viewed:    record.Viewed,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return dto.CourseProgressResponse{
		Completed: snapshot.Completed,
		Lectures:  lectures,
	}
}

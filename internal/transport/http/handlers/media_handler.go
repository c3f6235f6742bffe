package handlers

import (
	"errors"
	"net/http"

	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
	mediasvc "github.com/nikitagusev/learnhub/backend/internal/services/media"
	"github.com/nikitagusev/learnhub/backend/internal/transport/http/dto"
	httperrors "github.com/nikitagusev/learnhub/backend/internal/transport/http/errors"
)

const maxUploadBytes = 512 << 20

type MediaHandler struct {
	service *mediasvc.Service
}

func NewMediaHandler(service *mediasvc.Service) *MediaHandler {
	return &MediaHandler{service: service}
}

func (h *MediaHandler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, mediasvc.KindThumbnail)
}

func (h *MediaHandler) UploadLectureVideo(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, mediasvc.KindLectureVideo)
}

func (h *MediaHandler) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, mediasvc.KindProfilePhoto)
}

func (h *MediaHandler) upload(w http.ResponseWriter, r *http.Request, kind string) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "file field is required")
		return
	}
	defer file.Close()

	object, err := h.service.Upload(
		r.Context(),
		kind,
		identity.UserID,
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
		header.Size,
	)
	if err != nil {
		handleMediaError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.MediaUploadResponse{
		Key: object.Key,
		URL: object.URL,
	})
}

func (h *MediaHandler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}

	key := r.URL.Query().Get("key")
	url, err := h.service.ResolveURL(r.Context(), key)
	if err != nil {
		handleMediaError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.MediaURLResponse{URL: url})
}

func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}

	key := r.URL.Query().Get("key")
	if err := h.service.Remove(r.Context(), key); err != nil {
		handleMediaError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.DeleteResponse{OK: true})
}

func handleMediaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mediasvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid media payload")
	case errors.Is(err, mediasvc.ErrUnsupportedContent):
		httperrors.Write(w, http.StatusUnsupportedMediaType, httperrors.APIError{
			Code:    "UNSUPPORTED_CONTENT_TYPE",
			Message: "content type is not allowed for this upload",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "media request failed")
	}
}

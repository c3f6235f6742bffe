package handlers

import (
	"errors"
	"io"
	"net/http"

	pgrepo "github.com/nikitagusev/learnhub/backend/internal/repo/postgres"
	authsvc "github.com/nikitagusev/learnhub/backend/internal/services/auth"
	purchasesvc "github.com/nikitagusev/learnhub/backend/internal/services/purchases"
	"github.com/nikitagusev/learnhub/backend/internal/transport/http/dto"
	httperrors "github.com/nikitagusev/learnhub/backend/internal/transport/http/errors"
)

// webhook bodies are small; the cap only guards against a hostile peer.
const maxWebhookBody = 1 << 20

type PurchaseHandler struct {
	service *purchasesvc.Service
}

func NewPurchaseHandler(service *purchasesvc.Service) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

func (h *PurchaseHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	result, err := h.service.Checkout(r.Context(), identity.UserID, req.CourseID)
	if err != nil {
		handlePurchaseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		Success:     true,
		PurchaseID:  result.PurchaseID,
		CheckoutURL: result.CheckoutURL,
	})
}

// Webhook reads the raw body before any JSON handling: the gateway
// signature covers the exact bytes on the wire, so this route must never
// sit behind body-parsing middleware.
func (h *PurchaseHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "failed to read webhook body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.service.HandleWebhook(r.Context(), payload, signature); err != nil {
		handlePurchaseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{Received: true})
}

func (h *PurchaseHandler) CourseDetail(w http.ResponseWriter, r *http.Request) {
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
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	detail, err := h.service.CourseDetail(r.Context(), identity.UserID, courseID)
	if err != nil {
		handlePurchaseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CourseDetailResponse{
		Course:    courseToDTO(detail.Course),
		Lectures:  lecturesToDTO(detail.Lectures).Lectures,
		Purchased: detail.Purchased,
	})
}

func (h *PurchaseHandler) EnrolledCourses(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	courses, err := h.service.EnrolledCourses(r.Context(), identity.UserID)
	if err != nil {
		handlePurchaseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, coursesToDTO(courses))
}

func (h *PurchaseHandler) InstructorSales(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "PURCHASE_SERVICE_UNAVAILABLE", "purchase service is unavailable")
		return
	}

	sales, err := h.service.InstructorSales(r.Context(), identity.UserID)
	if err != nil {
		handlePurchaseError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, salesToDTO(sales))
}

func handlePurchaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, purchasesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
	case errors.Is(err, purchasesvc.ErrSignatureInvalid):
		writeBadRequest(w, "SIGNATURE_INVALID", "webhook signature verification failed")
	case errors.Is(err, purchasesvc.ErrCourseNotPublished):
		writeBadRequest(w, "COURSE_NOT_PUBLISHED", "course is not available for purchase")
	case errors.Is(err, purchasesvc.ErrCourseNotFound):
		writeNotFound(w, "COURSE_NOT_FOUND", "course not found")
	case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, purchasesvc.ErrGateway):
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "GATEWAY_ERROR",
			Message: "payment gateway request failed",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "purchase request failed")
	}
}

func salesToDTO(records []pgrepo.SaleRecord) dto.InstructorSalesResponse {
	sales := make([]dto.SaleResponse, 0, len(records))
	for _, record := range records {
		sales = append(sales, dto.SaleResponse{
			PurchaseID:  record.PurchaseID,
			CourseID:    record.CourseID,
			UserID:      record.UserID,
			CourseTitle: record.CourseTitle,
			CoursePrice: record.CoursePrice,
			Amount:      record.Amount,
			CreatedAt:   record.CreatedAt,
		})
	}
	return dto.InstructorSalesResponse{PurchasedCourse: sales}
}

package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
)

type PaymentAPI interface {
	Plans() []models.SubscriptionPlan
	CreatePayment(ctx context.Context, userID uuid.UUID, planID string) (*models.CreatePaymentResponse, error)
	HandleCallback(ctx context.Context, cb models.PaymentCallback) (bool, error)
	Status(ctx context.Context, userID uuid.UUID) (*models.SubscriptionStatus, error)
	Cancel(ctx context.Context, userID uuid.UUID) error
	History(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
}

type PaymentHandler struct {
	payments PaymentAPI
}

func NewPaymentHandler(payments PaymentAPI) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": h.payments.Plans()})
}

func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	resp, err := h.payments.CreatePayment(r.Context(), middleware.GetUserID(r.Context()), req.PlanID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Callback is called by the gateway without a user token.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var cb models.PaymentCallback
	if err := decodeSanitized(r, &cb); err != nil {
		writeBadBody(w, r)
		return
	}

	activated, err := h.payments.HandleCallback(r.Context(), cb)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	msg := "Payment not completed"
	if activated {
		msg = "Payment processed successfully"
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: msg})
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.payments.Status(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.payments.Cancel(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Subscription cancelled successfully"})
}

func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

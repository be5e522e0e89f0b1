package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

type SubscriptionPlan struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        int      `json:"price"`
	Currency     string   `json:"currency"`
	DurationDays int      `json:"duration_days"`
	Features     []string `json:"features"`
}

type Payment struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	PlanID      string     `json:"plan_id"`
	APIRef      string     `json:"api_ref"`
	Amount      int        `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CheckoutURL string     `json:"checkout_url"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

type CreatePaymentRequest struct {
	PlanID string `json:"plan_id"`
}

type CreatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
	APIRef      string `json:"api_ref"`
	Amount      int    `json:"amount"`
	Currency    string `json:"currency"`
}

// PaymentCallback is posted by the gateway. Amount arrives as either a number or a string.
type PaymentCallback struct {
	APIRef string      `json:"api_ref"`
	Status string      `json:"status"`
	Amount json.Number `json:"amount"`
}

type SubscriptionStatus struct {
	IsPremium      bool       `json:"is_premium"`
	PremiumExpires *time.Time `json:"premium_expires"`
	IsActive       bool       `json:"is_active"`
	DaysRemaining  int        `json:"days_remaining"`
}

package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

const (
	PlanPremiumYearly = "premium_yearly"

	callbackStatusComplete = "COMPLETE"
	callbackStatusFailed   = "FAILED"
	apiRefPrefix           = "studybuddy"
)

var subscriptionPlans = []models.SubscriptionPlan{
	{
		ID:           PlanPremiumYearly,
		Name:         "Premium Yearly",
		Description:  "Full access to all StudyBuddy features for one year",
		Price:        650,
		Currency:     "KES",
		DurationDays: 365,
		Features: []string{
			"Unlimited study rooms",
			"Advanced AI tutor",
			"Unlimited document uploads",
			"Priority support",
			"Advanced analytics",
			"Custom branding for study rooms",
			"Export study data",
			"Offline access to documents",
		},
	},
}

type UserAccounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetPremium(ctx context.Context, userID uuid.UUID, isPremium bool, expires *time.Time) error
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	MarkStatus(ctx context.Context, apiRef, status string, completedAt *time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
}

type CheckoutRequest struct {
	APIRef    string
	Amount    int
	Currency  string
	Email     string
	FirstName string
	LastName  string
}

type Checkout struct {
	ID  string
	URL string
}

// CheckoutGateway opens a hosted checkout with the payment provider.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// SandboxGateway simulates the IntaSend sandbox: it never calls out and always
// returns a checkout URL under baseURL.
type SandboxGateway struct {
	baseURL string
	now     func() time.Time
}

func NewSandboxGateway(baseURL string) *SandboxGateway {
	return &SandboxGateway{baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (g *SandboxGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	return &Checkout{
		ID:  fmt.Sprintf("payment_%d", g.now().Unix()),
		URL: g.baseURL + "/" + req.APIRef,
	}, nil
}

type PaymentService struct {
	tx       TxRunner
	users    UserAccounts
	payments PaymentStore
	gateway  CheckoutGateway
	now      func() time.Time
}

func NewPaymentService(tx TxRunner, users UserAccounts, payments PaymentStore, gateway CheckoutGateway) *PaymentService {
	return &PaymentService{tx: tx, users: users, payments: payments, gateway: gateway, now: time.Now}
}

func (s *PaymentService) Plans() []models.SubscriptionPlan {
	return subscriptionPlans
}

func findPlan(id string) (models.SubscriptionPlan, bool) {
	for _, p := range subscriptionPlans {
		if p.ID == id {
			return p, true
		}
	}
	return models.SubscriptionPlan{}, false
}

func (s *PaymentService) CreatePayment(ctx context.Context, userID uuid.UUID, planID string) (*models.CreatePaymentResponse, error) {
	plan, ok := findPlan(planID)
	if !ok {
		return nil, newValidationError("plan_id", "Invalid plan")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}

	apiRef := fmt.Sprintf("%s_%s_%d", apiRefPrefix, user.ID, s.now().Unix())
	checkout, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		APIRef:    apiRef,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	payment := &models.Payment{
		UserID:      user.ID,
		PlanID:      plan.ID,
		APIRef:      apiRef,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Status:      models.PaymentPending,
		CheckoutURL: checkout.URL,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("store payment: %w", err)
	}

	return &models.CreatePaymentResponse{
		PaymentID:   checkout.ID,
		CheckoutURL: checkout.URL,
		APIRef:      apiRef,
		Amount:      plan.Price,
		Currency:    plan.Currency,
	}, nil
}

// parseAPIRef recovers the user id from studybuddy_<user_id>_<unix>.
func parseAPIRef(apiRef string) (uuid.UUID, error) {
	parts := strings.Split(apiRef, "_")
	if len(parts) != 3 || parts[0] != apiRefPrefix {
		return uuid.Nil, fmt.Errorf("malformed api_ref %q", apiRef)
	}
	return uuid.Parse(parts[1])
}

// HandleCallback applies a gateway notification. It reports whether premium was activated.
// Callbacks are not signed.
func (s *PaymentService) HandleCallback(ctx context.Context, cb models.PaymentCallback) (bool, error) {
	apiRef := strings.TrimSpace(cb.APIRef)
	if apiRef == "" {
		return false, newValidationError("api_ref", "Invalid callback data")
	}
	userID, err := parseAPIRef(apiRef)
	if err != nil {
		return false, newValidationError("api_ref", "Invalid API reference")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, notFoundOr(err, "User not found")
	}

	plan, _ := findPlan(PlanPremiumYearly)
	amount, amountErr := cb.Amount.Float64()
	if cb.Status != callbackStatusComplete || amountErr != nil || amount != float64(plan.Price) {
		if cb.Status == callbackStatusFailed {
			if err := s.payments.MarkStatus(ctx, apiRef, models.PaymentFailed, nil); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	now := s.now().UTC()
	expires := now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetPremium(ctx, user.ID, true, &expires); err != nil {
			return err
		}
		return s.payments.MarkStatus(ctx, apiRef, models.PaymentCompleted, &now)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PaymentService) Status(ctx context.Context, userID uuid.UUID) (*models.SubscriptionStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "User not found")
	}
	return subscriptionStatus(user, s.now()), nil
}

func subscriptionStatus(user *models.User, now time.Time) *models.SubscriptionStatus {
	status := &models.SubscriptionStatus{
		IsPremium:      user.IsPremium,
		PremiumExpires: user.PremiumExpires,
	}
	status.IsActive = user.IsPremium && (user.PremiumExpires == nil || user.PremiumExpires.After(now))
	if status.IsActive && user.PremiumExpires != nil {
		status.DaysRemaining = int(math.Floor(user.PremiumExpires.Sub(now).Hours() / 24))
	}
	return status
}

// Cancel clears the premium flag. The expiry date is kept for the record.
func (s *PaymentService) Cancel(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "User not found")
	}
	if !user.IsPremium {
		return &BadRequestError{Message: "No active subscription to cancel"}
	}
	return s.users.SetPremium(ctx, user.ID, false, nil)
}

func (s *PaymentService) History(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	return s.payments.ListByUser(ctx, userID)
}

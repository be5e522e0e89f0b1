package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type PaymentRepo struct {
	db DB
}

func NewPaymentRepo(db DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	p.ID = uuid.New()
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO payments (id, user_id, plan_id, api_ref, amount, currency, status, checkout_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		p.ID, p.UserID, p.PlanID, p.APIRef, p.Amount, p.Currency, p.Status, p.CheckoutURL,
	).Scan(&p.CreatedAt)
}

// MarkStatus updates the payment identified by apiRef. A missing row is not an error.
func (r *PaymentRepo) MarkStatus(ctx context.Context, apiRef, status string, completedAt *time.Time) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE payments SET status = $1, completed_at = $2 WHERE api_ref = $3`,
		status, completedAt, apiRef,
	)
	if err != nil {
		return fmt.Errorf("mark payment %s: %w", status, err)
	}
	return nil
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx,
		`SELECT id, user_id, plan_id, api_ref, amount, currency, status, checkout_url, created_at, completed_at
		 FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p := &models.Payment{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.PlanID, &p.APIRef, &p.Amount, &p.Currency,
			&p.Status, &p.CheckoutURL, &p.CreatedAt, &p.CompletedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type PracticeTestRepo struct {
	db DB
}

func NewPracticeTestRepo(db DB) *PracticeTestRepo {
	return &PracticeTestRepo{db: db}
}

func (r *PracticeTestRepo) Create(ctx context.Context, t *models.PracticeTest) error {
	t.ID = uuid.New()
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO practice_tests (id, user_id, document_id, title, questions, total_questions)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		t.ID, t.UserID, t.DocumentID, t.Title, t.Questions, t.TotalQuestions,
	).Scan(&t.CreatedAt)
}

func (r *PracticeTestRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.PracticeTest, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx,
		`SELECT id, user_id, document_id, title, questions, total_questions, created_at
		 FROM practice_tests WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list practice tests: %w", err)
	}
	defer rows.Close()

	tests := []*models.PracticeTest{}
	for rows.Next() {
		t := &models.PracticeTest{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.DocumentID, &t.Title, &t.Questions, &t.TotalQuestions, &t.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

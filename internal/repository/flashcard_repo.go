package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type FlashcardRepo struct {
	db DB
}

func NewFlashcardRepo(db DB) *FlashcardRepo {
	return &FlashcardRepo{db: db}
}

const flashcardColumns = `id, user_id, document_id, question, answer, difficulty, category,
	times_reviewed, correct_count, last_reviewed, next_review, created_at`

func scanFlashcard(row rowScanner) (*models.Flashcard, error) {
	c := &models.Flashcard{}
	err := row.Scan(
		&c.ID, &c.UserID, &c.DocumentID, &c.Question, &c.Answer, &c.Difficulty, &c.Category,
		&c.TimesReviewed, &c.CorrectCount, &c.LastReviewed, &c.NextReview, &c.CreatedAt,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return c, nil
}

func (r *FlashcardRepo) Create(ctx context.Context, c *models.Flashcard) error {
	c.ID = uuid.New()
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO flashcards (id, user_id, document_id, question, answer, difficulty, category)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		c.ID, c.UserID, c.DocumentID, c.Question, c.Answer, c.Difficulty, c.Category,
	).Scan(&c.CreatedAt)
}

func (r *FlashcardRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Flashcard, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE id = $1 AND user_id = $2`, id, userID)
	return scanFlashcard(row)
}

func (r *FlashcardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Flashcard, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx,
		`SELECT `+flashcardColumns+` FROM flashcards WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}
	defer rows.Close()

	cards := []*models.Flashcard{}
	for rows.Next() {
		c, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SaveReview persists the counters and dates produced by a review.
func (r *FlashcardRepo) SaveReview(ctx context.Context, c *models.Flashcard) error {
	tag, err := QuerierFromCtx(ctx, r.db).Exec(ctx,
		`UPDATE flashcards SET times_reviewed = $1, correct_count = $2, last_reviewed = $3, next_review = $4
		 WHERE id = $5 AND user_id = $6`,
		c.TimesReviewed, c.CorrectCount, c.LastReviewed, c.NextReview, c.ID, c.UserID,
	)
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studybuddy-backend/internal/metrics"
	"studybuddy-backend/internal/models"
)

type FlashcardStore interface {
	Create(ctx context.Context, c *models.Flashcard) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Flashcard, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Flashcard, error)
	SaveReview(ctx context.Context, c *models.Flashcard) error
}

type FlashcardService struct {
	cards   FlashcardStore
	metrics metrics.Recorder
	now     func() time.Time
}

func NewFlashcardService(cards FlashcardStore, m metrics.Recorder) *FlashcardService {
	return &FlashcardService{cards: cards, metrics: m, now: time.Now}
}

func (s *FlashcardService) List(ctx context.Context, userID uuid.UUID) ([]*models.Flashcard, error) {
	return s.cards.ListByUser(ctx, userID)
}

// Review applies one review outcome to a card owned by userID.
func (s *FlashcardService) Review(ctx context.Context, userID, cardID uuid.UUID, correct bool) (*models.Flashcard, error) {
	card, err := s.cards.GetForUser(ctx, cardID, userID)
	if err != nil {
		return nil, notFoundOr(err, "Flashcard not found")
	}

	ApplyReview(card, correct, s.now().UTC())

	if err := s.cards.SaveReview(ctx, card); err != nil {
		return nil, notFoundOr(err, "Flashcard not found")
	}

	s.metrics.RecordFlashcardReview(correct)
	return card, nil
}

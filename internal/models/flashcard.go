package models

import (
	"time"

	"github.com/google/uuid"
)

type Flashcard struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	DocumentID    *uuid.UUID `json:"document_id"`
	Question      string     `json:"question"`
	Answer        string     `json:"answer"`
	Difficulty    string     `json:"difficulty"`
	Category      string     `json:"category"`
	TimesReviewed int        `json:"times_reviewed"`
	CorrectCount  int        `json:"correct_count"`
	LastReviewed  *time.Time `json:"last_reviewed"`
	NextReview    *time.Time `json:"next_review"`
	CreatedAt     time.Time  `json:"created_at"`
}

type ReviewFlashcardRequest struct {
	Correct bool `json:"correct"`
}

type GenerateFlashcardsRequest struct {
	Text       string     `json:"text"`
	DocumentID *uuid.UUID `json:"document_id"`
	Count      int        `json:"count"`
	Category   string     `json:"category"`
}

package services

import (
	"time"

	"studybuddy-backend/internal/models"
)

// MaxReviewIntervalDays caps the gap between two reviews of a card.
const MaxReviewIntervalDays = 30

// ReviewIntervalDays returns the days until the next review. correctCount is the
// count after the current review has been applied.
func ReviewIntervalDays(correctCount int, wasCorrect bool) int {
	if !wasCorrect {
		return 1
	}
	return min(correctCount*2, MaxReviewIntervalDays)
}

// ApplyReview records one review outcome on card and schedules its next review.
func ApplyReview(card *models.Flashcard, wasCorrect bool, now time.Time) {
	card.TimesReviewed++
	if wasCorrect {
		card.CorrectCount++
	}

	reviewed := now
	next := now.Add(time.Duration(ReviewIntervalDays(card.CorrectCount, wasCorrect)) * 24 * time.Hour)
	card.LastReviewed = &reviewed
	card.NextReview = &next
}

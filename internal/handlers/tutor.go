package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/models"
)

type TutorAPI interface {
	ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.AIConversation, error)
	CreateConversation(ctx context.Context, userID uuid.UUID, req models.CreateConversationRequest) (*models.AIConversation, error)
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.AIMessage, error)
	SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*models.SendMessageResponse, error)
	GenerateSummary(ctx context.Context, userID uuid.UUID, req models.GenerateSummaryRequest) (string, error)
	GenerateFlashcards(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) ([]*models.Flashcard, error)
	GeneratePracticeTest(ctx context.Context, userID uuid.UUID, req models.GeneratePracticeTestRequest) (*models.PracticeTest, error)
	ListPracticeTests(ctx context.Context, userID uuid.UUID) ([]*models.PracticeTest, error)
}

type FlashcardAPI interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.Flashcard, error)
	Review(ctx context.Context, userID, cardID uuid.UUID, correct bool) (*models.Flashcard, error)
}

type TutorHandler struct {
	tutor TutorAPI
	cards FlashcardAPI
}

func NewTutorHandler(tutor TutorAPI, cards FlashcardAPI) *TutorHandler {
	return &TutorHandler{tutor: tutor, cards: cards}
}

func (h *TutorHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.tutor.ListConversations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (h *TutorHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	conv, err := h.tutor.CreateConversation(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Conversation created",
		"conversation": conv,
	})
}

func (h *TutorHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID, ok := uuidParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	msgs, err := h.tutor.ListMessages(r.Context(), middleware.GetUserID(r.Context()), convID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *TutorHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID, ok := uuidParam(w, r, "id", "conversation")
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	resp, err := h.tutor.SendMessage(r.Context(), middleware.GetUserID(r.Context()), convID, req.Content)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TutorHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateSummaryRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	summary, err := h.tutor.GenerateSummary(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *TutorHandler) GenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateFlashcardsRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	cards, err := h.tutor.GenerateFlashcards(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"flashcards": cards})
}

func (h *TutorHandler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"flashcards": cards})
}

func (h *TutorHandler) ReviewFlashcard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := uuidParam(w, r, "id", "flashcard")
	if !ok {
		return
	}

	var req models.ReviewFlashcardRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	card, err := h.cards.Review(r.Context(), middleware.GetUserID(r.Context()), cardID, req.Correct)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Flashcard reviewed",
		"flashcard": card,
	})
}

func (h *TutorHandler) GeneratePracticeTest(w http.ResponseWriter, r *http.Request) {
	var req models.GeneratePracticeTestRequest
	if err := decodeSanitized(r, &req); err != nil {
		writeBadBody(w, r)
		return
	}

	test, err := h.tutor.GeneratePracticeTest(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"practice_test": test})
}

func (h *TutorHandler) ListPracticeTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.tutor.ListPracticeTests(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"practice_tests": tests})
}

package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConversationQA           = "qa"
	ConversationSummary      = "summary"
	ConversationFlashcard    = "flashcard"
	ConversationPracticeTest = "practice_test"

	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

type AIConversation struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	DocumentID       *uuid.UUID `json:"document_id"`
	Title            string     `json:"title"`
	ConversationType string     `json:"conversation_type"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type AIMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessage is one role-tagged turn handed to the completion collaborator.
type ChatMessage struct {
	Role    string
	Content string
}

type PracticeTest struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	DocumentID     *uuid.UUID `json:"document_id"`
	Title          string     `json:"title"`
	Questions      string     `json:"questions"`
	TotalQuestions int        `json:"total_questions"`
	CreatedAt      time.Time  `json:"created_at"`
}

type CreateConversationRequest struct {
	ConversationType string     `json:"conversation_type"`
	Title            string     `json:"title"`
	DocumentID       *uuid.UUID `json:"document_id"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type SendMessageResponse struct {
	UserMessage *AIMessage `json:"user_message"`
	AIMessage   *AIMessage `json:"ai_message"`
}

type GenerateSummaryRequest struct {
	Text       string     `json:"text"`
	DocumentID *uuid.UUID `json:"document_id"`
}

type GeneratePracticeTestRequest struct {
	Text          string     `json:"text"`
	DocumentID    *uuid.UUID `json:"document_id"`
	QuestionCount int        `json:"question_count"`
	Title         string     `json:"title"`
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

const (
	historyWindow        = 10
	defaultGenerateCount = 10
	maxGenerateCount     = 20
)

type ConversationStore interface {
	Create(ctx context.Context, c *models.AIConversation) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.AIConversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.AIConversation, error)
	Touch(ctx context.Context, id uuid.UUID) error
	AddMessage(ctx context.Context, m *models.AIMessage) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.AIMessage, error)
	RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.AIMessage, error)
}

type PracticeTestStore interface {
	Create(ctx context.Context, t *models.PracticeTest) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.PracticeTest, error)
}

// DocumentLookup resolves a document owned by userID.
type DocumentLookup interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Document, error)
}

type TutorService struct {
	tx            TxRunner
	conversations ConversationStore
	cards         FlashcardStore
	tests         PracticeTestStore
	documents     DocumentLookup
	ai            Completer
}

func NewTutorService(tx TxRunner, conversations ConversationStore, cards FlashcardStore, tests PracticeTestStore, documents DocumentLookup, ai Completer) *TutorService {
	return &TutorService{
		tx:            tx,
		conversations: conversations,
		cards:         cards,
		tests:         tests,
		documents:     documents,
		ai:            ai,
	}
}

func validConversationType(t string) bool {
	_, ok := systemPrompts[t]
	return ok
}

// conversationTitle builds "New <Type> Session", capitalizing every letter run.
func conversationTitle(kind string) string {
	var b strings.Builder
	upper := true
	for _, r := range kind {
		if upper && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		upper = !unicode.IsLetter(r)
	}
	return "New " + b.String() + " Session"
}

func (s *TutorService) ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.AIConversation, error) {
	return s.conversations.ListByUser(ctx, userID)
}

func (s *TutorService) CreateConversation(ctx context.Context, userID uuid.UUID, req models.CreateConversationRequest) (*models.AIConversation, error) {
	kind := req.ConversationType
	if kind == "" {
		kind = models.ConversationQA
	}
	if !validConversationType(kind) {
		return nil, newValidationError("conversation_type", "Invalid conversation type")
	}

	if req.DocumentID != nil {
		if _, err := s.documents.GetForUser(ctx, *req.DocumentID, userID); err != nil {
			return nil, notFoundOr(err, "Document not found")
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = conversationTitle(kind)
	}

	conv := &models.AIConversation{
		UserID:           userID,
		DocumentID:       req.DocumentID,
		Title:            title,
		ConversationType: kind,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *TutorService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID) ([]*models.AIMessage, error) {
	if _, err := s.conversations.GetForUser(ctx, conversationID, userID); err != nil {
		return nil, notFoundOr(err, "Conversation not found")
	}
	return s.conversations.ListMessages(ctx, conversationID)
}

// SendMessage asks the tutor for a reply using the most recent turns as context,
// then stores both turns together.
func (s *TutorService) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (*models.SendMessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, newValidationError("content", "Message content is required")
	}

	conv, err := s.conversations.GetForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, notFoundOr(err, "Conversation not found")
	}

	recent, err := s.conversations.RecentMessages(ctx, conv.ID, historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]models.ChatMessage, 0, len(recent)+1)
	for _, m := range recent {
		history = append(history, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	history = append(history, models.ChatMessage{Role: models.MessageRoleUser, Content: content})

	reply := s.ai.Complete(ctx, history, conv.ConversationType)

	resp := &models.SendMessageResponse{
		UserMessage: &models.AIMessage{ConversationID: conv.ID, Role: models.MessageRoleUser, Content: content},
		AIMessage:   &models.AIMessage{ConversationID: conv.ID, Role: models.MessageRoleAssistant, Content: reply},
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.conversations.AddMessage(ctx, resp.UserMessage); err != nil {
			return fmt.Errorf("store user message: %w", err)
		}
		if err := s.conversations.AddMessage(ctx, resp.AIMessage); err != nil {
			return fmt.Errorf("store assistant message: %w", err)
		}
		return s.conversations.Touch(ctx, conv.ID)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// sourceText returns the inline text, or the extracted text of an owned document.
func (s *TutorService) sourceText(ctx context.Context, userID uuid.UUID, text string, documentID *uuid.UUID) (string, error) {
	if strings.TrimSpace(text) == "" && documentID == nil {
		return "", newValidationError("text", "Text content or document ID required")
	}
	if documentID != nil {
		doc, err := s.documents.GetForUser(ctx, *documentID, userID)
		if err != nil {
			return "", notFoundOr(err, "Document not found")
		}
		text = doc.ExtractedText
	}
	if strings.TrimSpace(text) == "" {
		return "", newValidationError("text", "No text content available")
	}
	return text, nil
}

func (s *TutorService) GenerateSummary(ctx context.Context, userID uuid.UUID, req models.GenerateSummaryRequest) (string, error) {
	text, err := s.sourceText(ctx, userID, req.Text, req.DocumentID)
	if err != nil {
		return "", err
	}
	prompt := "Please provide a comprehensive summary of the following text:\n\n" + text
	return s.ai.Complete(ctx, []models.ChatMessage{{Role: models.MessageRoleUser, Content: prompt}}, models.ConversationSummary), nil
}

func clampCount(n int) int {
	if n <= 0 {
		return defaultGenerateCount
	}
	return min(n, maxGenerateCount)
}

func (s *TutorService) GenerateFlashcards(ctx context.Context, userID uuid.UUID, req models.GenerateFlashcardsRequest) ([]*models.Flashcard, error) {
	text, err := s.sourceText(ctx, userID, req.Text, req.DocumentID)
	if err != nil {
		return nil, err
	}
	count := clampCount(req.Count)
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "General"
	}

	prompt := fmt.Sprintf("Create %d educational flashcards from the following text. Format as JSON with 'question' and 'answer' fields:\n\n%s", count, text)
	reply := s.ai.Complete(ctx, []models.ChatMessage{{Role: models.MessageRoleUser, Content: prompt}}, models.ConversationFlashcard)

	parsed := parseFlashcardReply(reply)
	if len(parsed) > count {
		parsed = parsed[:count]
	}

	cards := make([]*models.Flashcard, 0, len(parsed))
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for _, p := range parsed {
			card := &models.Flashcard{
				UserID:     userID,
				DocumentID: req.DocumentID,
				Question:   p.Question,
				Answer:     p.Answer,
				Difficulty: p.Difficulty,
				Category:   category,
			}
			if err := s.cards.Create(ctx, card); err != nil {
				return fmt.Errorf("store flashcard: %w", err)
			}
			cards = append(cards, card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

type generatedCard struct {
	Question   string
	Answer     string
	Difficulty string
}

// parseFlashcardReply reads the model's JSON array of cards. Code fences and
// surrounding prose are tolerated. An unparseable reply becomes a single card
// whose answer is the raw reply.
func parseFlashcardReply(reply string) []generatedCard {
	items, ok := decodeCardItems(reply)
	if !ok {
		return []generatedCard{{Question: "Generated Flashcard", Answer: reply, Difficulty: "medium"}}
	}

	cards := make([]generatedCard, 0, len(items))
	for _, item := range items {
		cards = append(cards, generatedCard{
			Question:   stringField(item, "question", "Generated Question"),
			Answer:     stringField(item, "answer", "Generated Answer"),
			Difficulty: stringField(item, "difficulty", "medium"),
		})
	}
	return cards
}

func decodeCardItems(reply string) ([]map[string]any, bool) {
	cleaned := stripCodeFence(reply)
	candidates := []string{cleaned}
	if start, end := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]"); start >= 0 && end > start {
		candidates = append(candidates, cleaned[start:end+1])
	}

	for _, c := range candidates {
		var list []map[string]any
		if err := json.Unmarshal([]byte(c), &list); err == nil && list != nil {
			return list, true
		}
		var single map[string]any
		if err := json.Unmarshal([]byte(c), &single); err == nil && single != nil {
			return []map[string]any{single}, true
		}
	}
	return nil, false
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringField(item map[string]any, key, fallback string) string {
	v, ok := item[key]
	if !ok || v == nil {
		return fallback
	}
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	return fmt.Sprint(v)
}

func (s *TutorService) GeneratePracticeTest(ctx context.Context, userID uuid.UUID, req models.GeneratePracticeTestRequest) (*models.PracticeTest, error) {
	text, err := s.sourceText(ctx, userID, req.Text, req.DocumentID)
	if err != nil {
		return nil, err
	}
	count := clampCount(req.QuestionCount)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Generated Practice Test"
	}

	prompt := fmt.Sprintf("Create a practice test with %d questions from the following text. Include multiple choice, true/false, and short answer questions. Format as JSON:\n\n%s", count, text)
	reply := s.ai.Complete(ctx, []models.ChatMessage{{Role: models.MessageRoleUser, Content: prompt}}, models.ConversationPracticeTest)

	test := &models.PracticeTest{
		UserID:         userID,
		DocumentID:     req.DocumentID,
		Title:          title,
		Questions:      reply,
		TotalQuestions: count,
	}
	if err := s.tests.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("store practice test: %w", err)
	}
	return test, nil
}

func (s *TutorService) ListPracticeTests(ctx context.Context, userID uuid.UUID) ([]*models.PracticeTest, error) {
	return s.tests.ListByUser(ctx, userID)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"studybuddy-backend/internal/metrics"
	"studybuddy-backend/internal/models"
)

// AIFallbackReply is returned whenever the completion backend fails or is not configured.
const AIFallbackReply = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

// Completer turns a chat history into one assistant reply. It never fails:
// backend errors degrade to AIFallbackReply.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage, kind string) string
}

var systemPrompts = map[string]string{
	models.ConversationQA:           "You are StudyBuddy AI, a helpful and knowledgeable tutor. Provide clear, accurate, and educational responses to student questions. Always encourage learning and critical thinking.",
	models.ConversationSummary:      "You are StudyBuddy AI. Create concise, well-structured summaries that capture the key points and main ideas. Use bullet points and clear headings when appropriate.",
	models.ConversationFlashcard:    "You are StudyBuddy AI. Generate educational flashcards with clear questions and comprehensive answers. Focus on key concepts, definitions, and important facts.",
	models.ConversationPracticeTest: "You are StudyBuddy AI. Create practice test questions with multiple choice, true/false, and short answer formats. Include detailed explanations for correct answers.",
}

func systemPrompt(kind string) string {
	if p, ok := systemPrompts[kind]; ok {
		return p
	}
	return systemPrompts[models.ConversationQA]
}

type GeminiCompleter struct {
	client    *genai.Client
	modelName string
	metrics   metrics.Recorder
}

// NewGeminiCompleter connects to Gemini. An empty apiKey yields a completer that
// always answers with AIFallbackReply.
func NewGeminiCompleter(ctx context.Context, apiKey, modelName string, m metrics.Recorder) (*GeminiCompleter, error) {
	c := &GeminiCompleter{modelName: modelName, metrics: m}
	if apiKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *GeminiCompleter) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *GeminiCompleter) Complete(ctx context.Context, messages []models.ChatMessage, kind string) string {
	reply, err := c.complete(ctx, messages, kind)
	if err != nil {
		slog.WarnContext(ctx, "ai completion failed", "kind", kind, "error", err)
		c.metrics.RecordAICompletion(kind, false)
		return AIFallbackReply
	}
	c.metrics.RecordAICompletion(kind, true)
	return reply
}

func (c *GeminiCompleter) complete(ctx context.Context, messages []models.ChatMessage, kind string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini is not configured")
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	model := c.client.GenerativeModel(c.modelName)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(1000)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt(kind))}}

	last := messages[len(messages)-1]
	cs := model.StartChat()
	cs.History = toGenaiHistory(messages[:len(messages)-1])

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("Gemini returned an empty reply")
	}
	return text, nil
}

// toGenaiHistory maps stored roles onto Gemini's user/model roles.
func toGenaiHistory(messages []models.ChatMessage) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == models.MessageRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

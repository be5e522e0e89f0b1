package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"studybuddy-backend/internal/models"
)

type ConversationRepo struct {
	db DB
}

func NewConversationRepo(db DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, user_id, document_id, title, conversation_type, created_at, updated_at`

func scanConversation(row rowScanner) (*models.AIConversation, error) {
	c := &models.AIConversation{}
	err := row.Scan(&c.ID, &c.UserID, &c.DocumentID, &c.Title, &c.ConversationType, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *models.AIConversation) error {
	c.ID = uuid.New()
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO ai_conversations (id, user_id, document_id, title, conversation_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.DocumentID, c.Title, c.ConversationType,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ConversationRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.AIConversation, error) {
	row := QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM ai_conversations WHERE id = $1 AND user_id = $2`, id, userID)
	return scanConversation(row)
}

func (r *ConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.AIConversation, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx,
		`SELECT `+conversationColumns+` FROM ai_conversations WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := []*models.AIConversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := QuerierFromCtx(ctx, r.db).Exec(ctx, `UPDATE ai_conversations SET updated_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *ConversationRepo) AddMessage(ctx context.Context, m *models.AIMessage) error {
	m.ID = uuid.New()
	return QuerierFromCtx(ctx, r.db).QueryRow(ctx,
		`INSERT INTO ai_messages (id, conversation_id, role, content) VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		m.ID, m.ConversationID, m.Role, m.Content,
	).Scan(&m.CreatedAt)
}

func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.AIMessage, error) {
	return r.queryMessages(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM ai_messages WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
}

// RecentMessages returns the newest limit messages in chronological order.
func (r *ConversationRepo) RecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.AIMessage, error) {
	return r.queryMessages(ctx, `
		SELECT id, conversation_id, role, content, created_at FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM ai_messages WHERE conversation_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at`, conversationID, limit)
}

func (r *ConversationRepo) queryMessages(ctx context.Context, query string, args ...any) ([]*models.AIMessage, error) {
	rows, err := QuerierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []*models.AIMessage{}
	for rows.Next() {
		m := &models.AIMessage{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

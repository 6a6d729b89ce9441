package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"yuno/models"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    id         UUID PRIMARY KEY,
    user_id    TEXT NOT NULL,
    mode       TEXT NOT NULL,
    title      TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_user_updated_idx ON conversations (user_id, updated_at DESC);
CREATE TABLE IF NOT EXISTS messages (
    id              UUID PRIMARY KEY,
    conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at);
`

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings, and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, postgresURI string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", withSSLMode(postgresURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// withSSLMode disables TLS unless the URI says otherwise; local Postgres rarely has it.
func withSSLMode(uri string) string {
	if strings.Contains(uri, "sslmode=") {
		return uri
	}
	if strings.Contains(uri, "://") {
		if strings.Contains(uri, "?") {
			return uri + "&sslmode=disable"
		}
		return uri + "?sslmode=disable"
	}
	return strings.TrimSpace(uri + " sslmode=disable")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateConversation(ctx context.Context, userID string, mode models.Mode, title string) (models.Conversation, error) {
	ts := now()
	conversation := models.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mode:      mode,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO conversations (id, user_id, mode, title, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		conversation.ID, conversation.UserID, string(conversation.Mode), conversation.Title, conversation.CreatedAt, conversation.UpdatedAt)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return conversation, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Conversation{}, ErrConversationNotFound
	}

	row := s.db.QueryRowContext(ctx, `
        SELECT id, user_id, mode, title, created_at, updated_at
        FROM conversations
        WHERE id = $1`, id)

	conversation, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	return conversation, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, user_id, mode, title, created_at, updated_at
        FROM conversations
        WHERE user_id = $1
        ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		conversations = append(conversations, conversation)
	}
	return conversations, rows.Err()
}

func (s *PostgresStore) TouchConversation(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrConversationNotFound
	}
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, id, now())
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrConversationNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) SaveMessage(ctx context.Context, conversationID string, role models.Role, content string) (models.StoredMessage, error) {
	message := models.StoredMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now(),
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		message.ID, message.ConversationID, string(message.Role), message.Content, message.CreatedAt)
	if err != nil {
		return models.StoredMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]models.StoredMessage, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, conversation_id, role, content, created_at
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.StoredMessage, 0)
	for rows.Next() {
		var m models.StoredMessage
		var role string
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		m.Role = models.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	var mode string
	if err := row.Scan(&c.ID, &c.UserID, &mode, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return models.Conversation{}, err
	}
	c.Mode = models.Mode(mode)
	return c, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"yuno/config"
	"yuno/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore persists conversations and their messages per user.
type ConversationStore interface {
	CreateConversation(ctx context.Context, userID string, mode models.Mode, title string) (models.Conversation, error)
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	// ListConversations returns the user's conversations, most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error

	SaveMessage(ctx context.Context, conversationID string, role models.Role, content string) (models.StoredMessage, error)
	// ListMessages returns a conversation's messages, oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]models.StoredMessage, error)
}

func sortByUpdatedDesc(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
}

func sortByCreatedAsc(messages []models.StoredMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}

// now is replaced in tests that need deterministic timestamps.
var now = func() time.Time {
	return time.Now().UTC()
}

// OpenStore builds the backend named by cfg.StoreBackend. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config) (ConversationStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		return NewMemoryStore(), func() {}, nil
	case config.StorePostgres:
		if cfg.PostgresURI == "" {
			return nil, nil, errors.New("POSTGRES_URI is required for the postgres store")
		}
		store, err := NewPostgresStore(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.StoreDynamoDB:
		client, err := NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return NewDynamoStore(ctx, client), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

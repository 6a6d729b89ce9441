package services

import (
	"context"
	"sync"

	"yuno/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Used by tests and when no database is configured.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]models.Conversation
	messages      map[string][]models.StoredMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.StoredMessage),
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, userID string, mode models.Mode, title string) (models.Conversation, error) {
	ts := now()
	conversation := models.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mode:      mode,
		Title:     title,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversation.ID] = conversation
	return conversation, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversations := make([]models.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			conversations = append(conversations, c)
		}
	}
	sortByUpdatedDesc(conversations)
	return conversations, nil
}

func (s *MemoryStore) TouchConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conversation, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	conversation.UpdatedAt = now()
	s.conversations[id] = conversation
	return nil
}

func (s *MemoryStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, conversationID string, role models.Role, content string) (models.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return models.StoredMessage{}, ErrConversationNotFound
	}

	message := models.StoredMessage{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], message)
	return message, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]models.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}

	messages := make([]models.StoredMessage, len(s.messages[conversationID]))
	copy(messages, s.messages[conversationID])
	sortByCreatedAsc(messages)
	return messages, nil
}

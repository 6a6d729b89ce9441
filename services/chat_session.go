package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"yuno/models"

	"github.com/go-resty/resty/v2"
)

const (
	defaultImagePrompt = "What do you see in this image?"
	imageTitle         = "Image conversation"
	maxTitleRunes      = 50
)

var ErrSessionBusy = errors.New("a message is already being answered")

type ChatErrorKind string

const (
	ChatErrorRateLimited     ChatErrorKind = "rate_limited"
	ChatErrorPaymentRequired ChatErrorKind = "payment_required"
	ChatErrorConnection      ChatErrorKind = "connection"
)

// ChatError is what Submit returns after a notice has been shown for a failed turn.
type ChatError struct {
	Kind       ChatErrorKind
	StatusCode int
	Err        error
}

func (e *ChatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("chat %s (status %d)", e.Kind, e.StatusCode)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// Notice is a user-facing message, e.g. a toast.
type Notice struct {
	Title       string
	Description string
	Destructive bool
}

var (
	noticeRateLimited = Notice{
		Title:       "Rate limit reached",
		Description: "Please wait a moment before sending another message.",
		Destructive: true,
	}
	noticeCreditsNeeded = Notice{
		Title:       "Credits needed",
		Description: "Please add credits to continue using YUNO.",
		Destructive: true,
	}
	noticeConnection = Notice{
		Title:       "Connection error",
		Description: "Failed to connect to YUNO. Please try again.",
		Destructive: true,
	}
)

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// ChatRequest is the body POSTed to /chat.
type ChatRequest struct {
	Messages []models.Message `json:"messages" binding:"required,dive"`
	Mode     models.Mode      `json:"mode" binding:"required,oneof=emotional study support productivity casual"`
	HasImage bool             `json:"hasImage"`
}

type ChatSessionOptions struct {
	UserID  string
	Mode    models.Mode
	ChatURL string
	// APIKey is sent as the bearer token.
	APIKey   string
	Store    ConversationStore
	Notifier Notifier
	Client   *resty.Client
	// OnUpdate receives a copy of the transcript after every change.
	OnUpdate func([]models.Message)
}

// ChatSession is one user's conversation in one mode. Only one Submit runs at a time.
type ChatSession struct {
	mu             sync.Mutex
	userID         string
	mode           models.Mode
	conversationID string
	transcript     []models.Message
	busy           bool

	chatURL  string
	apiKey   string
	client   *resty.Client
	store    ConversationStore
	notifier Notifier
	onUpdate func([]models.Message)
}

// NewChatSession starts a fresh conversation whose transcript holds the mode greeting.
func NewChatSession(opts ChatSessionOptions) (*ChatSession, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if opts.Client == nil {
		opts.Client = resty.New()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(n Notice) {
			slog.Warn("chat notice", "title", n.Title, "description", n.Description)
		})
	}

	return &ChatSession{
		userID:     opts.UserID,
		mode:       opts.Mode,
		transcript: []models.Message{{Role: models.RoleAssistant, Content: opts.Mode.Greeting()}},
		chatURL:    opts.ChatURL,
		apiKey:     opts.APIKey,
		client:     opts.Client,
		store:      opts.Store,
		notifier:   opts.Notifier,
		onUpdate:   opts.OnUpdate,
	}, nil
}

// ResumeChatSession loads a stored conversation. opts.Mode is replaced by the conversation's mode.
func ResumeChatSession(ctx context.Context, opts ChatSessionOptions, conversationID string) (*ChatSession, error) {
	if opts.Store == nil {
		return nil, errors.New("resume requires a store")
	}
	conversation, err := opts.Store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	stored, err := opts.Store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	opts.Mode = conversation.Mode
	s, err := NewChatSession(opts)
	if err != nil {
		return nil, err
	}
	s.conversationID = conversation.ID
	if len(stored) > 0 {
		s.transcript = make([]models.Message, 0, len(stored))
		for _, m := range stored {
			s.transcript = append(s.transcript, models.Message{Role: m.Role, Content: m.Content})
		}
	}
	return s, nil
}

func (s *ChatSession) Mode() models.Mode {
	return s.mode
}

func (s *ChatSession) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *ChatSession) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Transcript returns a copy of the visible messages.
func (s *ChatSession) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Submit sends one user turn and streams the answer into the transcript.
// Empty input is a no-op. Failures are shown through the Notifier and
// also returned as *ChatError.
func (s *ChatSession) Submit(ctx context.Context, text, image string) error {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.busy = true

	content := text
	if content == "" {
		content = defaultImagePrompt
	}
	userMessage := models.Message{Role: models.RoleUser, Content: content, Image: image}
	s.transcript = append(s.transcript, userMessage)
	history := s.snapshot()
	s.mu.Unlock()
	s.publish()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	s.persistTurn(ctx, models.RoleUser, content, text)

	return s.stream(ctx, ChatRequest{Messages: history, Mode: s.mode, HasImage: image != ""})
}

func (s *ChatSession) stream(ctx context.Context, request ChatRequest) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		SetDoNotParseResponse(true).
		Post(s.chatURL)
	if err != nil {
		return s.fail(ChatErrorConnection, 0, err, false)
	}

	body := resp.RawBody()
	if body != nil {
		defer body.Close()
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusTooManyRequests:
		return s.fail(ChatErrorRateLimited, status, nil, false)
	case status == http.StatusPaymentRequired:
		return s.fail(ChatErrorPaymentRequired, status, nil, false)
	case !resp.IsSuccess():
		return s.fail(ChatErrorConnection, status, errors.New("failed to start chat stream"), false)
	case body == nil:
		return s.fail(ChatErrorConnection, status, ErrNoResponseBody, false)
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, models.Message{Role: models.RoleAssistant})
	s.mu.Unlock()
	s.publish()

	decoder := NewStreamDecoder(func(_, total string) {
		s.mu.Lock()
		s.transcript[len(s.transcript)-1].Content = total
		s.mu.Unlock()
		s.publish()
	})
	content, err := decoder.DecodeStream(ctx, body)
	if err != nil {
		return s.fail(ChatErrorConnection, resp.StatusCode(), err, true)
	}

	s.persistTurn(ctx, models.RoleAssistant, content, "")
	return nil
}

// fail shows the notice for kind and, when the placeholder was appended, removes it.
func (s *ChatSession) fail(kind ChatErrorKind, status int, err error, placeholder bool) error {
	switch kind {
	case ChatErrorRateLimited:
		s.notifier.Notify(noticeRateLimited)
	case ChatErrorPaymentRequired:
		s.notifier.Notify(noticeCreditsNeeded)
	default:
		slog.Error("chat error", "status", status, "error", err)
		s.notifier.Notify(noticeConnection)
	}

	if placeholder {
		s.mu.Lock()
		if n := len(s.transcript); n > 0 && s.transcript[n-1].Role == models.RoleAssistant {
			s.transcript = s.transcript[:n-1]
		}
		s.mu.Unlock()
		s.publish()
	}
	return &ChatError{Kind: kind, StatusCode: status, Err: err}
}

// persistTurn writes one message, creating the conversation on first use.
// Errors are logged only; the chat continues without history.
func (s *ChatSession) persistTurn(ctx context.Context, role models.Role, content, titleSource string) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()

	if conversationID == "" && role == models.RoleAssistant {
		slog.Warn("no conversation to attach assistant reply to", "user", s.userID)
		return
	}
	if conversationID == "" {
		conversation, err := s.store.CreateConversation(ctx, s.userID, s.mode, conversationTitle(titleSource))
		if err != nil {
			slog.Error("failed to create conversation", "user", s.userID, "error", err)
			return
		}
		conversationID = conversation.ID
		s.mu.Lock()
		s.conversationID = conversationID
		s.mu.Unlock()
	}

	if _, err := s.store.SaveMessage(ctx, conversationID, role, content); err != nil {
		slog.Error("failed to save message", "conversation", conversationID, "role", role, "error", err)
		return
	}
	if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		slog.Warn("failed to bump conversation", "conversation", conversationID, "error", err)
	}
}

func (s *ChatSession) snapshot() []models.Message {
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *ChatSession) publish() {
	if s.onUpdate == nil {
		return
	}
	s.onUpdate(s.Transcript())
}

func conversationTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return imageTitle
	}
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}
	return string(runes[:maxTitleRunes]) + "..."
}

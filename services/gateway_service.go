package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"yuno/config"
	"yuno/models"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
)

var (
	ErrGatewayKeyMissing = errors.New("AI_GATEWAY_API_KEY is not configured")
	ErrNoResponseBody    = errors.New("no response body")
)

// UpstreamError is a non-2xx answer from the AI gateway.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("AI gateway returned status %d", e.StatusCode)
}

// GatewayService forwards chat turns to the hosted completions endpoint.
type GatewayService struct {
	client  *resty.Client
	url     string
	apiKey  string
	model   string
	metrics *Metrics
}

func NewGatewayService(cfg config.Config, metrics *Metrics) *GatewayService {
	return &GatewayService{
		client:  resty.New(),
		url:     cfg.GatewayURL,
		apiKey:  cfg.GatewayAPIKey,
		model:   cfg.Model,
		metrics: metrics,
	}
}

// BuildRequest prepends the mode's system prompt and always asks for a stream.
// Messages carrying an image are sent as text + image_url parts.
func (g *GatewayService) BuildRequest(messages []models.Message, mode models.Mode) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	out = append(out, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(mode),
	})

	for _, m := range messages {
		if m.Image == "" {
			out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
			continue
		}
		out = append(out, openai.ChatCompletionMessage{
			Role: string(m.Role),
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    m.Image,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: out,
		Stream:   true,
	}
}

// StreamChat returns the gateway's SSE body untouched. The caller must close it.
// A non-2xx answer is returned as *UpstreamError.
func (g *GatewayService) StreamChat(ctx context.Context, messages []models.Message, mode models.Mode) (io.ReadCloser, error) {
	if g.apiKey == "" {
		return nil, ErrGatewayKeyMissing
	}

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(g.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(g.BuildRequest(messages, mode)).
		SetDoNotParseResponse(true).
		Post(g.url)
	if err != nil {
		return nil, fmt.Errorf("call AI gateway: %w", err)
	}
	if g.metrics != nil {
		g.metrics.UpstreamLatency.WithLabelValues(strconv.Itoa(resp.StatusCode())).Observe(time.Since(start).Seconds())
	}

	body := resp.RawBody()
	if !resp.IsSuccess() {
		var text []byte
		if body != nil {
			text, _ = io.ReadAll(io.LimitReader(body, 4096))
			body.Close()
		}
		slog.Error("AI gateway error", "status", resp.StatusCode(), "body", string(text))
		return nil, &UpstreamError{StatusCode: resp.StatusCode(), Body: string(text)}
	}
	if body == nil {
		return nil, ErrNoResponseBody
	}
	return body, nil
}

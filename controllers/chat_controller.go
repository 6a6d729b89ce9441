package controllers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"yuno/models"
	"yuno/services"

	"github.com/gin-gonic/gin"
)

type chatStreamer interface {
	StreamChat(ctx context.Context, messages []models.Message, mode models.Mode) (io.ReadCloser, error)
}

// ChatController relays chat turns to the AI gateway.
type ChatController struct {
	gateway chatStreamer
	metrics *services.Metrics
}

func NewChatController(gateway chatStreamer, metrics *services.Metrics) *ChatController {
	return &ChatController{gateway: gateway, metrics: metrics}
}

func (cc *ChatController) HandleChat(c *gin.Context) {
	var request services.ChatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Warn("invalid chat request", "error", err)
		cc.count("invalid", services.OutcomeBadRequest)
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages and a valid mode are required"})
		return
	}

	slog.Info("processing chat request", "mode", request.Mode, "messages", len(request.Messages), "hasImage", request.HasImage)

	body, err := cc.gateway.StreamChat(c.Request.Context(), request.Messages, request.Mode)
	if err != nil {
		status, message, outcome := gatewayFailure(err)
		cc.count(string(request.Mode), outcome)
		c.JSON(status, gin.H{"error": message})
		return
	}
	defer body.Close()

	cc.count(string(request.Mode), services.OutcomeStreamed)
	if cc.metrics != nil {
		cc.metrics.ActiveStreams.Inc()
		defer cc.metrics.ActiveStreams.Dec()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := relayStream(c.Request.Context(), c.Writer, body); err != nil {
		slog.Warn("stream relay ended early", "mode", request.Mode, "error", err)
	}
}

// gatewayFailure maps a StreamChat error to the status, message, and metric outcome the client sees.
func gatewayFailure(err error) (int, string, string) {
	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.StatusCode {
		case http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "Rate limits exceeded, please try again later.", services.OutcomeRateLimited
		case http.StatusPaymentRequired:
			return http.StatusPaymentRequired, "Payment required, please add funds to your workspace.", services.OutcomePaymentRequired
		default:
			return http.StatusInternalServerError, "AI gateway error", services.OutcomeUpstreamError
		}
	}

	slog.Error("chat proxy error", "error", err)
	return http.StatusInternalServerError, err.Error(), services.OutcomeInternalError
}

// relayStream copies body to w unchanged, flushing after every read.
func relayStream(ctx context.Context, w gin.ResponseWriter, body io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			w.Flush()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (cc *ChatController) count(mode, outcome string) {
	if cc.metrics == nil {
		return
	}
	cc.metrics.ChatRequests.WithLabelValues(mode, outcome).Inc()
}

package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"yuno/models"
	"yuno/services"

	"github.com/gin-gonic/gin"
)

// ConversationController serves the chat history sidebar.
type ConversationController struct {
	store services.ConversationStore
}

func NewConversationController(store services.ConversationStore) *ConversationController {
	return &ConversationController{store: store}
}

func (cc *ConversationController) GetConversations(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conversations, err := cc.store.ListConversations(c.Request.Context(), userID)
	if err != nil {
		slog.Error("failed to list conversations", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (cc *ConversationController) GetMessages(c *gin.Context) {
	id := c.Param("id")

	messages, err := cc.store.ListMessages(c.Request.Context(), id)
	if errors.Is(err, services.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		slog.Error("failed to list messages", "conversation", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (cc *ConversationController) DeleteConversation(c *gin.Context) {
	id := c.Param("id")

	err := cc.store.DeleteConversation(c.Request.Context(), id)
	if errors.Is(err, services.ErrConversationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if err != nil {
		slog.Error("failed to delete conversation", "conversation", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted"})
}

func GetModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modes": models.Modes()})
}

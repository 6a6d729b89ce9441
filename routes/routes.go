package routes

import (
	"net/http"

	"yuno/controllers"
	"yuno/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Chat          *controllers.ChatController
	Conversations *controllers.ConversationController
	// ClientKey guards every API route when set.
	ClientKey string
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.Logger(), middlewares.CORS())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/modes", controllers.GetModes)

	api := r.Group("/", middlewares.RequireBearer(deps.ClientKey))

	// Streams the assistant reply as text/event-stream
	api.POST("/chat", deps.Chat.HandleChat)

	api.GET("/conversations", deps.Conversations.GetConversations)
	api.GET("/conversations/:id/messages", deps.Conversations.GetMessages)
	api.DELETE("/conversations/:id", deps.Conversations.DeleteConversation)

	return r
}

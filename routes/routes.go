package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"courtside/handlers"
)

// RegisterRoutes mounts the webhook, voice and health endpoints.
func RegisterRoutes(r *gin.Engine, webhook *handlers.WebhookHandler, voice *handlers.VoiceHandler) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Hub-Signature-256"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	api := r.Group("/webhook")
	{
		api.GET("/whatsapp", webhook.Verify)
		api.POST("/whatsapp", webhook.Receive)
		api.POST("/voice", voice.Transcribe)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

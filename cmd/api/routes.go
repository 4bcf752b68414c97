package main

import (
	"net/http"

	"autodialer/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic; handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: protect these with Twilio signature validation in production.
	r.POST("/webhooks/twilio/voice", h.TwilioVoice)
	r.POST("/webhooks/twilio/status", h.TwilioStatusCallback)

	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		calls := v1.Group("/calls")
		{
			calls.POST("", h.CreateCall)
			calls.POST("/bulk", h.BulkCreateCalls)
			calls.GET("", h.ListCalls)
			calls.GET("/stats", h.GetStats)
			calls.DELETE("/:id", h.DeleteCall)

			calls.POST("/dispatch", h.DispatchBatch)
			calls.POST("/reconcile", h.Reconcile)
			calls.POST("/command", h.Command)
			calls.POST("/import", h.ImportCalls)
		}

		articles := v1.Group("/articles")
		{
			articles.POST("/generate", h.GenerateArticles)
			articles.GET("", h.ListArticles)
			articles.GET("/:id", h.GetArticle)
			articles.DELETE("/:id", h.DeleteArticle)
		}
	}
}

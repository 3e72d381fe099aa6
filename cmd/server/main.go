package main

import (
	"context"
	"log"

	"whatsapp-crm/internal/api"
	"whatsapp-crm/internal/bot"
	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/database"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/webhook"
	"whatsapp-crm/internal/whatsapp"
	"whatsapp-crm/internal/ws"

	rediscache "whatsapp-crm/internal/cache/redis"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	database.InitDB(cfg)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	gormStore := store.NewGormStore(database.DB)
	whatsappClient := whatsapp.NewClient(cfg)
	matcher := bot.NewMatcher(gormStore)

	hub := ws.NewHub()
	go hub.Run()

	webhookHandler := webhook.NewHandler(cfg, gormStore, gormStore, matcher, whatsappClient)
	webhookHandler.Logs = gormStore
	webhookHandler.Notifier = hub

	// Redis is optional; without it wamid dedup falls back to the DB.
	if cfg.RedisAddr != "" {
		redisCache, err := rediscache.NewRedisCache(context.Background(), cfg.RedisAddr)
		if err != nil {
			log.Printf("Redis unavailable (%v), deduplicating via database only", err)
		} else {
			webhookHandler.Cache = redisCache
		}
	}

	sendHandler := api.NewSendHandler(whatsappClient, gormStore, gormStore)
	sendHandler.Notifier = hub
	messagesHandler := api.NewMessagesHandler(gormStore)
	leadsHandler := api.NewLeadsHandler(gormStore, gormStore)
	leadsHandler.Notifier = hub
	botHandler := api.NewBotHandler(gormStore)
	broadcastHandler := api.NewBroadcastHandler(whatsappClient, gormStore, cfg.BroadcastInterval)

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleDelivery)

	// Dashboard API Routes
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", messagesHandler.Status)
		apiGroup.POST("/send", sendHandler.SendMessage)
		apiGroup.GET("/messages/:telefone", messagesHandler.GetMessages)
		apiGroup.GET("/conversations", messagesHandler.GetConversations)

		// CRM Routes
		apiGroup.GET("/leads", leadsHandler.GetLeads)
		apiGroup.GET("/leads/:id", leadsHandler.GetLead)
		apiGroup.PATCH("/leads/:id", leadsHandler.UpdateLead)
		apiGroup.GET("/lotes", leadsHandler.GetLotes)
		apiGroup.POST("/lotes", leadsHandler.CreateLote)

		// Bot Routes
		apiGroup.GET("/bot/responses", botHandler.GetResponses)
		apiGroup.POST("/bot/responses", botHandler.CreateResponse)
		apiGroup.POST("/bot/responses/:id/toggle", botHandler.ToggleResponse)
		apiGroup.GET("/templates", botHandler.GetTemplates)

		// Broadcast Routes
		apiGroup.POST("/broadcast", broadcastHandler.SendBroadcast)
	}

	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

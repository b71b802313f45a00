package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donation-platform/internal/handlers"
	"donation-platform/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	// JWTSecret guards the admin routes. When empty the manual completion
	// endpoint is left open.
	JWTSecret string
}

type Handlers struct {
	Checkout     *handlers.CheckoutHandler
	Webhook      *handlers.WebhookHandler
	Transactions *handlers.TransactionHandler
	Auth         *handlers.AuthHandler
	WebSocket    *handlers.WebSocketHandler
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Paymongo-Signature", middleware.TraceIDHeader},
		ExposeHeaders: []string{middleware.TraceIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func NewRouter(opts Options, h Handlers, log *zap.Logger) *gin.Engine {
	// Ids in request bodies must reach the services exactly as sent.
	gin.EnableJsonDecoderUseNumber()

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(middleware.TraceID())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed", "trace_id": c.GetString(middleware.TraceIDKey)})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "trace_id": c.GetString(middleware.TraceIDKey)})
	})

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	{
		api.POST("/donations/checkout", h.Checkout.CreateCheckout)
		api.OPTIONS("/donations/checkout", preflight)

		api.POST("/webhooks/paymongo", h.Webhook.HandlePayMongo)
		api.OPTIONS("/webhooks/paymongo", preflight)

		api.GET("/transactions/:id", h.Transactions.Get)

		admin := api.Group("/admin")
		admin.POST("/login", h.Auth.Login)
		admin.OPTIONS("/transactions/complete", preflight)

		protected := admin.Group("/")
		if opts.JWTSecret != "" {
			protected.Use(middleware.OperatorAuth(opts.JWTSecret, log))
		} else {
			log.Warn("JWT_SECRET is not set, manual completion is unauthenticated")
		}
		protected.POST("/transactions/complete", h.Transactions.Complete)
	}

	r.GET("/ws/transactions/:id", h.WebSocket.ServeWs)

	return r
}

package serverfx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"donation-platform/internal/config"
	"donation-platform/internal/handlers"
	"donation-platform/internal/server"
)

var Module = fx.Options(
	fx.Provide(
		handlers.NewCheckoutHandler,
		handlers.NewWebhookHandler,
		handlers.NewTransactionHandler,
		handlers.NewWebSocketHandler,
		provideAuthHandler,
		provideRouter,
	),
	fx.Invoke(startServer),
)

func provideAuthHandler(cfg *config.Config, log *zap.Logger) *handlers.AuthHandler {
	return handlers.NewAuthHandler(cfg.OperatorUsername, cfg.OperatorPasswordHash, cfg.JWTSecret, cfg.OperatorTokenTTL, log)
}

type routerParams struct {
	fx.In

	Config       *config.Config
	Log          *zap.Logger
	Checkout     *handlers.CheckoutHandler
	Webhook      *handlers.WebhookHandler
	Transactions *handlers.TransactionHandler
	Auth         *handlers.AuthHandler
	WebSocket    *handlers.WebSocketHandler
}

func provideRouter(p routerParams) *gin.Engine {
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return server.NewRouter(server.Options{
		AllowedOrigins: p.Config.CORSAllowedOrigins,
		JWTSecret:      p.Config.JWTSecret,
	}, server.Handlers{
		Checkout:     p.Checkout,
		Webhook:      p.Webhook,
		Transactions: p.Transactions,
		Auth:         p.Auth,
		WebSocket:    p.WebSocket,
	}, p.Log)
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("starting HTTP server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

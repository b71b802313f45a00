package paymentfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"donation-platform/internal/config"
	"donation-platform/internal/paymongo"
	"donation-platform/internal/repository"
	"donation-platform/internal/returnurl"
	"donation-platform/internal/service"
	"donation-platform/internal/websocket"
)

var Module = fx.Options(
	fx.Provide(providePayMongoClient),
	fx.Provide(provideHub),
	fx.Provide(func(hub *websocket.Hub) service.Notifier { return hub }),
	fx.Provide(provideCheckoutService),
	fx.Provide(provideWebhookService),
	fx.Provide(service.NewTransactionService),
)

func providePayMongoClient(cfg *config.Config) paymongo.CheckoutClient {
	return paymongo.NewClient(cfg.BaseURL, cfg.PayMongoConfig.SecretKey, cfg.PayMongoConfig.Timeout)
}

func provideHub(lc fx.Lifecycle, log *zap.Logger) *websocket.Hub {
	hub := websocket.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go hub.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return hub
}

func provideCheckoutService(
	cfg *config.Config,
	donations repository.DonationRepository,
	transactions repository.TransactionRepository,
	client paymongo.CheckoutClient,
	log *zap.Logger,
) service.CheckoutService {
	return service.NewCheckoutService(donations, transactions, client, service.CheckoutOptions{
		DefaultPaymentMethod: cfg.DefaultPaymentMethod,
		Description:          cfg.Description,
		ReturnURLs: returnurl.Normalizer{
			BaseWebURL:      cfg.WebBaseURL,
			AllowInsecure:   cfg.AllowInsecureReturnURLs,
			DeepLinkSchemes: cfg.ReturnURLSchemes,
		},
	}, log)
}

func provideWebhookService(
	cfg *config.Config,
	transactions repository.TransactionRepository,
	notifier service.Notifier,
	log *zap.Logger,
) service.WebhookService {
	return service.NewWebhookService(transactions, cfg.WebhookSecret, notifier, log)
}

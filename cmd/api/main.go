package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"donation-platform/cmd/fx/configfx"
	"donation-platform/cmd/fx/paymentfx"
	"donation-platform/cmd/fx/serverfx"
	"donation-platform/cmd/fx/storefx"
)

func main() {
	app := fx.New(
		configfx.Module,
		storefx.Module,
		paymentfx.Module,
		serverfx.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/db"
	"ecopoints-ledger/pkg/hashistack/secretmanager"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/pkg/otelcol"
	"ecopoints-ledger/pkg/task"
	"ecopoints-ledger/services/notification"
)

// worker drains the notification queue into user inboxes.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Select(),
		logger.Module,
		otelcol.Module,
		db.Module,
		task.Server,
		notification.WorkerModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ecopoints-ledger/pkg/accesscontrol"
	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/db"
	"ecopoints-ledger/pkg/featureflags"
	"ecopoints-ledger/pkg/gen"
	"ecopoints-ledger/pkg/hashistack/secretmanager"
	"ecopoints-ledger/pkg/hashistack/servicediscover"
	"ecopoints-ledger/pkg/health"
	"ecopoints-ledger/pkg/httpapi"
	"ecopoints-ledger/pkg/kafka"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/pkg/otelcol"
	"ecopoints-ledger/pkg/profiling"
	"ecopoints-ledger/pkg/redis"
	"ecopoints-ledger/pkg/server"
	"ecopoints-ledger/pkg/task"
	"ecopoints-ledger/services/analytics"
	"ecopoints-ledger/services/leaderboard"
	"ecopoints-ledger/services/ledger"
	"ecopoints-ledger/services/notification"
	"ecopoints-ledger/services/policy"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Select(),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		task.Client,
		kafka.Module,
		featureflags.Module,
		gen.Module,
		accesscontrol.Module,
		health.Module,
		policy.Module,
		fx.Provide(provideNotifier),
		ledger.Module,
		leaderboard.Module,
		notification.Module,
		analytics.Module,
		httpapi.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})

func provideNotifier(s *notification.Service) ledger.Notifier {
	return s
}

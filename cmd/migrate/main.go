package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/db"
	"ecopoints-ledger/pkg/hashistack/secretmanager"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/services/activity"
	"ecopoints-ledger/services/aggregate"
	"ecopoints-ledger/services/notification"
	"ecopoints-ledger/services/user"
)

// Models lists every table owned by the ledger, in dependency order.
var Models = []any{
	&user.User{},
	&user.UserBadge{},
	&activity.ActivityRecord{},
	&aggregate.EcoPoint{},
	&aggregate.HistoryEntry{},
	&notification.Notification{},
}

func main() {
	app := fx.New(
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		fx.Invoke(migrate),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	_ = app.Stop(context.Background())
}

func migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(Models...); err != nil {
		return err
	}
	zap.L().Info("[Migrate] schema up to date", zap.Int("tables", len(Models)))
	return nil
}

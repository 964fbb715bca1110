package leaderboard

import (
	"ecopoints-ledger/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("leaderboard.service",
	fx.Provide(
		NewService,
		httpapi.AsRouter(NewHandler),
	),
)

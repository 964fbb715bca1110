package analytics

import (
	"ecopoints-ledger/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("analytics.service",
	fx.Provide(
		NewService,
		httpapi.AsRouter(NewHandler),
	),
)

package ledger

import (
	"ecopoints-ledger/pkg/httpapi"

	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		NewService,
		NewMonitor,
		httpapi.AsRouter(NewHandler),
	),
	fx.Invoke(
		registerHealthServer,
		StartMonitor,
	),
)

func registerHealthServer(server *grpc.Server, service *Service) {
	grpc_health_v1.RegisterHealthServer(server, service)
}

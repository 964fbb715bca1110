package notification

import (
	"context"

	"ecopoints-ledger/pkg/httpapi"
	"ecopoints-ledger/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(
		NewService,
		httpapi.AsRouter(NewHandler),
	),
	fx.Invoke(drainOnStop),
)

// drainOnStop lets deliveries already handed off reach the queue before the
// asynq client closes.
func drainOnStop(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return svc.Drain(ctx)
		},
	})
}

var WorkerModule = fx.Module("notification.worker",
	fx.Provide(NewWorker),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, w *Worker) {
	mux.HandleFunc(taskname.NotificationDeliver, w.HandleDeliver)
	mux.HandleFunc(taskname.NotificationBroadcast, w.HandleBroadcast)
}

package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/errutil"
	"ecopoints-ledger/pkg/featureflags"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/pkg/task"
	"ecopoints-ledger/pkg/taskname"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	enqueueTimeout = 2 * time.Second
	maxRetry       = 5
	fanOutLimit    = 8
)

var (
	ErrDisabled = errutil.Unavailable("notifications are disabled", nil,
		errutil.WithReason("NOTIFICATIONS_DISABLED"))
	ErrInvalidBroadcast = errutil.BadRequest("broadcast needs a title and a known kind", nil,
		errutil.WithReason("INVALID_BROADCAST"))
)

type Service struct {
	enqueuer task.Enqueuer
	flags    featureflags.FeatureFlag
	repo     Repository
	queue    string
	inflight sync.WaitGroup
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Config   *config.Config
	Enqueuer task.Enqueuer
	Flags    featureflags.FeatureFlag
}

func NewService(p ServiceParams) *Service {
	return &Service{
		enqueuer: p.Enqueuer,
		flags:    p.Flags,
		repo:     NewRepository(p.DB),
		queue:    p.Config.EcoPoints.NotificationQueue,
	}
}

func (s *Service) enabled(ctx context.Context, identifier string) bool {
	if s.flags == nil {
		return true
	}
	return s.flags.Enabled(ctx, identifier, featureflags.Notifications, true)
}

func (s *Service) options(id string) []asynq.Option {
	opts := []asynq.Option{asynq.MaxRetry(maxRetry), asynq.TaskID(id)}
	if s.queue != "" {
		opts = append(opts, asynq.Queue(s.queue))
	}
	return opts
}

// Notify hands msg off for delivery. See NotifyMany.
func (s *Service) Notify(ctx context.Context, msg Message) {
	s.NotifyMany(ctx, []Message{msg})
}

// NotifyMany returns immediately; the flag lookup and the enqueues run in the
// background, detached from ctx's cancellation. Failures are logged and
// dropped. The flag is evaluated once per call, for the first recipient.
func (s *Service) NotifyMany(ctx context.Context, msgs []Message) {
	if len(msgs) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		if !s.enabled(ctx, msgs[0].UserID) {
			enqueuedTotal.WithLabelValues(taskname.NotificationDeliver, outcomeDisabled).Add(float64(len(msgs)))
			return
		}

		g := new(errgroup.Group)
		g.SetLimit(fanOutLimit)
		for _, msg := range msgs {
			g.Go(func() error {
				s.enqueue(ctx, msg)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Drain waits for background deliveries started by NotifyMany, or for ctx.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) enqueue(ctx context.Context, msg Message) {
	log := logger.FromContext(ctx).With(zap.String("user_id", msg.UserID), zap.String("kind", string(msg.Kind)))

	payload := DeliverPayload{ID: uuid.NewString(), Message: msg, CreatedAt: time.Now().UTC()}
	t, err := NewDeliverTask(payload)
	if err != nil {
		log.Warn("failed to build notification task", zap.Error(err))
		enqueuedTotal.WithLabelValues(taskname.NotificationDeliver, outcomeFailed).Inc()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	if _, err := s.enqueuer.Enqueue(ctx, t, s.options(payload.ID)...); err != nil {
		log.Warn("failed to enqueue notification", zap.Error(err))
		enqueuedTotal.WithLabelValues(taskname.NotificationDeliver, outcomeFailed).Inc()
		return
	}
	enqueuedTotal.WithLabelValues(taskname.NotificationDeliver, outcomeEnqueued).Inc()
}

// Broadcast enqueues a single task; the worker expands it to every active
// user. The returned id identifies the broadcast in the worker logs.
func (s *Service) Broadcast(ctx context.Context, req BroadcastRequest) (string, error) {
	if req.Kind == "" {
		req.Kind = KindInfo
	}
	if req.Title == "" || !req.Kind.Valid() {
		return "", ErrInvalidBroadcast
	}
	if !s.enabled(ctx, "") {
		enqueuedTotal.WithLabelValues(taskname.NotificationBroadcast, outcomeDisabled).Inc()
		return "", ErrDisabled
	}

	payload := BroadcastPayload{ID: uuid.NewString(), Request: req, CreatedAt: time.Now().UTC()}
	t, err := NewBroadcastTask(payload)
	if err != nil {
		return "", errutil.Internal("failed to build broadcast task", err)
	}

	if _, err := s.enqueuer.Enqueue(ctx, t, s.options(payload.ID)...); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.FromContext(ctx).Error("failed to enqueue broadcast", zap.String("broadcast_id", payload.ID), zap.Error(err))
		enqueuedTotal.WithLabelValues(taskname.NotificationBroadcast, outcomeFailed).Inc()
		return "", errutil.Unavailable("notification queue unavailable", err)
	}

	enqueuedTotal.WithLabelValues(taskname.NotificationBroadcast, outcomeEnqueued).Inc()
	logger.FromContext(ctx).Info("broadcast enqueued", zap.String("broadcast_id", payload.ID), zap.String("kind", string(req.Kind)))
	return payload.ID, nil
}

func (s *Service) List(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	items, err := s.repo.List(ctx, userID, limit)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to list notifications", err)
	}
	return items, nil
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ecopoints-ledger/pkg/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultBatchSize = 500

// broadcastNamespace derives stable per-user ids for a broadcast, so a
// retried task inserts nothing new.
var broadcastNamespace = uuid.MustParse("6f1c7b1e-4c1a-4f63-9a53-0e0d8d2b7a11")

type Worker struct {
	repo  Repository
	batch int
}

type WorkerParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
}

func NewWorker(p WorkerParams) *Worker {
	batch := p.Config.EcoPoints.BroadcastBatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Worker{repo: NewRepository(p.DB), batch: batch}
}

func (w *Worker) HandleDeliver(ctx context.Context, t *asynq.Task) error {
	var p DeliverPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode deliver payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.ID == "" || p.Message.UserID == "" {
		return fmt.Errorf("deliver payload missing id or user: %w", asynq.SkipRetry)
	}

	n := toNotification(p.ID, p.Message.UserID, p.Message.Kind, p.Message.Title, p.Message.Body, p.Message.Link, p.Message.Payload, p.CreatedAt)
	inserted, err := w.repo.Insert(ctx, []*Notification{n}, 1)
	if err != nil {
		return err
	}
	deliveredTotal.WithLabelValues(string(n.Kind)).Add(float64(inserted))
	return nil
}

// HandleBroadcast pages through active users by id and writes one inbox
// entry per user, batch by batch.
func (w *Worker) HandleBroadcast(ctx context.Context, t *asynq.Task) error {
	var p BroadcastPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode broadcast payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.ID == "" {
		return fmt.Errorf("broadcast payload missing id: %w", asynq.SkipRetry)
	}

	log := zap.L().With(zap.String("broadcast_id", p.ID))
	start := time.Now()

	var (
		cursor   string
		inserted int64
		users    int
	)
	for {
		ids, err := w.repo.ActiveUserIDs(ctx, cursor, w.batch)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}

		items := make([]*Notification, 0, len(ids))
		for _, id := range ids {
			nid := uuid.NewSHA1(broadcastNamespace, []byte(p.ID+"/"+id)).String()
			items = append(items, toNotification(nid, id, p.Request.Kind, p.Request.Title, p.Request.Body, p.Request.Link, p.Request.Payload, p.CreatedAt))
		}

		n, err := w.repo.Insert(ctx, items, w.batch)
		if err != nil {
			return err
		}
		inserted += n
		users += len(ids)
		cursor = ids[len(ids)-1]

		if len(ids) < w.batch {
			break
		}
	}

	deliveredTotal.WithLabelValues(string(p.Request.Kind)).Add(float64(inserted))
	log.Info("broadcast delivered",
		zap.Int("users", users),
		zap.Int64("inserted", inserted),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func toNotification(id, userID string, kind Kind, title, body, link string, payload map[string]any, at time.Time) *Notification {
	if kind == "" {
		kind = KindInfo
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var meta datatypes.JSON
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			zap.L().Warn("dropping notification payload", zap.String("notification_id", id), zap.Error(err))
		} else {
			meta = datatypes.JSON(b)
		}
	}
	return &Notification{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   body,
		Link:      link,
		Meta:      meta,
		CreatedAt: at,
	}
}

package ledger

import (
	"context"
	"time"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/services/activity"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Monitor counts awards that never completed. It only reports; pending
// records are left for an operator to reconcile.
type Monitor struct {
	activities activity.Repository
	after      time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewMonitor(cfg *config.Config, svc *Service) *Monitor {
	return &Monitor{
		activities: svc.activities,
		after:      cfg.EcoPoints.StuckAwardAfter,
		interval:   cfg.EcoPoints.StuckAwardInterval,
		now:        time.Now,
	}
}

func StartMonitor(lc fx.Lifecycle, m *Monitor) {
	if m.interval <= 0 {
		zap.L().Info("[Monitor] stuck award monitor disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				m.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func (m *Monitor) run(ctx context.Context) {
	zap.L().Info("[Monitor] started stuck award monitor",
		zap.Duration("threshold", m.after),
		zap.Duration("interval", m.interval),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, err := m.Check(ctx); err != nil && ctx.Err() == nil {
			zap.L().Error("[Monitor] failed to count pending awards", zap.Error(err))
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			zap.L().Info("[Monitor] stopped")
			return
		}
	}
}

// Check updates the pending gauge and returns the number of records older
// than the threshold that still have points_awarded=false.
func (m *Monitor) Check(ctx context.Context) (int64, error) {
	cutoff := m.now().UTC().Add(-m.after)
	n, err := m.activities.CountPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	pendingAwards.Set(float64(n))

	if n == 0 {
		return 0, nil
	}

	sample, err := m.activities.ListPending(ctx, cutoff, 10)
	if err != nil {
		return n, err
	}
	ids := make([]string, 0, len(sample))
	for _, rec := range sample {
		ids = append(ids, rec.ID)
	}
	zap.L().Warn("[Monitor] awards pending past threshold",
		zap.Int64("count", n),
		zap.Time("cutoff", cutoff),
		zap.Strings("sample_ids", ids),
	)
	return n, nil
}

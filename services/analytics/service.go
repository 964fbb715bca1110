package analytics

import (
	"context"
	"time"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/errutil"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/services/activity"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultWindow = 30 * 24 * time.Hour
	MaxWindow     = 366 * 24 * time.Hour
)

var ErrInvalidRange = errutil.BadRequest("from must be before to and the range at most one year", nil,
	errutil.WithReason("INVALID_RANGE"))

// Service serves read-only reports over the activity log. Figures are
// eventually consistent and may include awards still pending.
type Service struct {
	activities activity.Repository
	stuckAfter time.Duration
	now        func() time.Time
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		activities: activity.NewRepository(p.DB),
		stuckAfter: p.Config.EcoPoints.StuckAwardAfter,
		now:        time.Now,
	}
}

type UserStats struct {
	UserID      string              `json:"user_id"`
	Activities  int64               `json:"activities"`
	TotalPoints int64               `json:"total_points"`
	ByType      []activity.TypeStat `json:"by_type"`
}

type Series struct {
	From time.Time          `json:"from"`
	To   time.Time          `json:"to"`
	Days []activity.DayStat `json:"days"`
}

type Pending struct {
	OlderThan time.Time                  `json:"older_than"`
	Count     int64                      `json:"count"`
	Sample    []*activity.ActivityRecord `json:"sample"`
}

// Window resolves an optional [from, to) range, defaulting to the last 30
// days ending now.
func (s *Service) Window(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-DefaultWindow)
	}
	if !from.Before(to) || to.Sub(from) > MaxWindow {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from.UTC(), to.UTC(), nil
}

func (s *Service) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	stats, err := s.activities.CountByType(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "failed to count activities by type", err)
	}

	out := &UserStats{UserID: userID, ByType: stats}
	for _, st := range stats {
		out.Activities += st.Count
		out.TotalPoints += st.TotalPoints
	}
	return out, nil
}

func (s *Service) ActivitiesPerDay(ctx context.Context, from, to time.Time) (*Series, error) {
	from, to, err := s.Window(from, to)
	if err != nil {
		return nil, err
	}
	days, err := s.activities.CountByDay(ctx, from, to)
	if err != nil {
		return nil, s.fail(ctx, "failed to count activities per day", err)
	}
	return &Series{From: from, To: to, Days: days}, nil
}

func (s *Service) DailyActiveUsers(ctx context.Context, from, to time.Time) (*Series, error) {
	from, to, err := s.Window(from, to)
	if err != nil {
		return nil, err
	}
	days, err := s.activities.DailyActiveUsers(ctx, from, to)
	if err != nil {
		return nil, s.fail(ctx, "failed to count daily active users", err)
	}
	return &Series{From: from, To: to, Days: days}, nil
}

func (s *Service) TopActivities(ctx context.Context, limit int) ([]activity.TypeStat, error) {
	stats, err := s.activities.MostCommon(ctx, limit)
	if err != nil {
		return nil, s.fail(ctx, "failed to rank activities", err)
	}
	return stats, nil
}

// PendingAwards lists records whose points were never applied. olderThan
// defaults to the stuck award threshold.
func (s *Service) PendingAwards(ctx context.Context, olderThan time.Duration, limit int) (*Pending, error) {
	if olderThan <= 0 {
		olderThan = s.stuckAfter
	}
	cutoff := s.now().UTC().Add(-olderThan)

	n, err := s.activities.CountPending(ctx, cutoff)
	if err != nil {
		return nil, s.fail(ctx, "failed to count pending awards", err)
	}
	sample, err := s.activities.ListPending(ctx, cutoff, limit)
	if err != nil {
		return nil, s.fail(ctx, "failed to list pending awards", err)
	}
	return &Pending{OlderThan: cutoff, Count: n, Sample: sample}, nil
}

func (s *Service) fail(ctx context.Context, msg string, err error) error {
	logger.FromContext(ctx).Error(msg, zap.Error(err))
	return errutil.Internal(msg, err)
}

package leaderboard

import (
	"context"
	"errors"
	"time"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/db/pagination"
	"ecopoints-ledger/pkg/errutil"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/pkg/rediskey"
	"ecopoints-ledger/services/user"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Service reads rankings straight from the aggregates. Results are
// snapshots: a concurrent award may move users between two page reads.
type Service struct {
	repo        Repository
	cache       PageCache
	ttl         time.Duration
	maxPageSize int
	group       singleflight.Group
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		repo:        NewRepository(p.DB),
		ttl:         p.Config.EcoPoints.LeaderboardCacheTTL,
		maxPageSize: p.Config.EcoPoints.MaxPageSize,
	}
	if p.Redis != nil && s.ttl > 0 {
		s.cache = NewRedisCache(p.Redis)
	}
	return s
}

// GetPage returns the ranked users for page (1-based). Ranks on page p start
// at (p-1)*pageSize+1.
func (s *Service) GetPage(ctx context.Context, page, pageSize int) (*Page, error) {
	p := pagination.Pagination{Page: page, Limit: pageSize}.Normalize(s.maxPageSize)
	key := rediskey.BuildLeaderboardPageKey(p.Page, p.Limit)

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			cacheHits.Inc()
			return cached, nil
		}
		cacheMiss.Inc()
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// shared by every caller waiting on key
		loadCtx := context.WithoutCancel(ctx)
		out, err := s.load(loadCtx, p)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(loadCtx, key, out, s.ttl)
		}
		return out, nil
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to load leaderboard page",
			zap.Int("page", p.Page), zap.Int("page_size", p.Limit), zap.Error(err))
		return nil, errutil.Internal("failed to load leaderboard", err)
	}
	return v.(*Page), nil
}

func (s *Service) load(ctx context.Context, p pagination.Pagination) (*Page, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	// past the last page there is nothing to rank
	if int64(p.Offset()) >= total {
		return &Page{Entries: []Entry{}, Pagination: p.Info(total)}, nil
	}

	rows, err := s.repo.Page(ctx, p.Offset(), p.Limit)
	if err != nil {
		return nil, err
	}

	first := int64(p.Offset()) + 1
	entries := make([]Entry, 0, len(rows))
	for i, r := range rows {
		u := user.User{Username: r.Username, Name: r.Name}
		entries = append(entries, Entry{
			Rank:         first + int64(i),
			UserID:       r.UserID,
			Username:     r.Username,
			Name:         u.DisplayName(),
			ProfileImage: r.ProfileImage,
			TotalPoints:  r.TotalPoints,
			Level:        r.Level,
			LastActive:   r.LastActive,
		})
	}

	return &Page{Entries: entries, Pagination: p.Info(total)}, nil
}

// GetRank counts the users strictly ahead of userID in page order.
func (s *Service) GetRank(ctx context.Context, userID string) (*Rank, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	r, err := s.repo.Rank(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to compute rank", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to compute rank", err)
	}
	return r, nil
}

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/errutil"
	"ecopoints-ledger/pkg/kafka"
	"ecopoints-ledger/pkg/logger"
	"ecopoints-ledger/services/activity"
	"ecopoints-ledger/services/aggregate"
	"ecopoints-ledger/services/notification"
	"ecopoints-ledger/services/policy"
	"ecopoints-ledger/services/user"

	health "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier receives award outcomes after commit. Implementations must not
// block on delivery and never report failures back to the ledger.
type Notifier interface {
	NotifyMany(ctx context.Context, msgs []notification.Message)
}

type Service struct {
	health.UnimplementedHealthServer

	db   *gorm.DB
	node *snowflake.Node

	activities activity.Repository
	aggregates aggregate.Repository
	users      user.Repository
	policy     *policy.Policy
	notifier   Notifier
	events     kafka.Publisher
	topic      string
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Policy   *policy.Policy
	Notifier Notifier        `optional:"true"`
	Events   kafka.Publisher `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:   p.DB,
		node: p.Node,

		activities: activity.NewRepository(p.DB),
		aggregates: aggregate.NewRepository(p.DB),
		users:      user.NewRepository(p.DB),
		policy:     p.Policy,
		notifier:   p.Notifier,
		events:     p.Events,
	}
	if p.Config != nil {
		s.topic = p.Config.Kafka.EventsTopic
	}
	return s
}

// Award records the activity and applies its points. The record is written
// in its own commit first; the balance, level, badges and the awarded flag
// are then changed together in one transaction. If that transaction fails
// the record stays pending and ErrAggregateUnavailable is returned.
func (s *Service) Award(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	start := time.Now()
	defer func() { awardDuration.Observe(time.Since(start).Seconds()) }()

	log := logger.FromContext(ctx).With(
		zap.String("user_id", req.UserID),
		zap.String("activity_type", req.ActivityType),
		zap.Int64("points", req.Points),
	)

	typ, ok := activity.ParseActivityType(req.ActivityType)
	if !ok {
		awardsTotal.WithLabelValues(outcomeInvalidActivityType).Inc()
		return nil, ErrInvalidActivityType
	}
	if req.Points < 0 {
		awardsTotal.WithLabelValues(outcomeInvalidPoints).Inc()
		return nil, ErrInvalidPoints
	}

	var meta datatypes.JSON
	if len(req.Metadata) > 0 {
		b, err := json.Marshal(req.Metadata)
		if err != nil {
			awardsTotal.WithLabelValues(outcomeInvalidMetadata).Inc()
			return nil, errutil.Wrap(ErrInvalidMetadata, err)
		}
		meta = datatypes.JSON(b)
	}

	exists, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		log.Error("failed to look up user", zap.Error(err))
		awardsTotal.WithLabelValues(outcomeRecordUnavailable).Inc()
		return nil, errutil.Wrap(ErrRecordUnavailable, err)
	}
	if !exists {
		awardsTotal.WithLabelValues(outcomeUserNotFound).Inc()
		return nil, ErrUserNotFound
	}

	rec := &activity.ActivityRecord{
		ID:           s.node.Generate().String(),
		UserID:       req.UserID,
		ActivityType: typ,
		Points:       req.Points,
		Description:  req.Description,
		Metadata:     meta,
	}
	if err := s.activities.Append(ctx, rec); err != nil {
		log.Error("failed to append activity record", zap.Error(err))
		awardsTotal.WithLabelValues(outcomeRecordUnavailable).Inc()
		return nil, errutil.Wrap(ErrRecordUnavailable, err)
	}
	log = log.With(zap.String("activity_id", rec.ID))

	res := &AwardResult{Accepted: true, ActivityID: rec.ID}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.apply(ctx, tx, rec, res)
	}); err != nil {
		log.Error("award left pending", zap.Error(err))
		awardsTotal.WithLabelValues(outcomeAggregateUnavailable).Inc()
		return nil, errutil.Wrap(ErrAggregateUnavailable, err)
	}

	awardsTotal.WithLabelValues(outcomeAccepted).Inc()
	if rec.Points > 0 {
		pointsAwarded.WithLabelValues(string(typ)).Add(float64(rec.Points))
	}
	badgesGranted.Add(float64(len(res.BadgesEarned)))

	log.Info("points awarded",
		zap.Int64("new_total", res.NewTotal),
		zap.Int("new_level", res.NewLevel),
		zap.Int("badges", len(res.BadgesEarned)),
	)

	s.notify(ctx, rec.UserID, res)
	s.publish(ctx, rec, res)

	return res, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, rec *activity.ActivityRecord, res *AwardResult) error {
	var total int64
	if rec.Points > 0 {
		newTotal, err := s.aggregates.Increment(ctx, tx, aggregate.HistoryEntry{
			ID:           s.node.Generate().String(),
			UserID:       rec.UserID,
			ActivityID:   rec.ID,
			ActivityType: string(rec.ActivityType),
			Points:       rec.Points,
			Description:  rec.Description,
		})
		if err != nil {
			return fmt.Errorf("increment aggregate: %w", err)
		}
		total = newTotal
	} else {
		current, err := s.aggregates.GetTx(ctx, tx, rec.UserID)
		if err != nil {
			return fmt.Errorf("load aggregate: %w", err)
		}
		total = current.TotalPoints
	}

	owned, err := s.users.BadgesTx(ctx, tx, rec.UserID)
	if err != nil {
		return fmt.Errorf("load badges: %w", err)
	}
	held := make(map[string]bool, len(owned))
	for _, b := range owned {
		held[b.Name] = true
	}

	out, err := s.policy.Evaluate(policy.Input{
		TotalPoints:  total,
		ActivityType: string(rec.ActivityType),
		Held:         held,
	})
	if err != nil {
		return fmt.Errorf("evaluate policy: %w", err)
	}

	raised, err := s.users.RaiseLevel(ctx, tx, rec.UserID, out.Level)
	if err != nil {
		return fmt.Errorf("raise level: %w", err)
	}

	earned := make([]policy.Badge, 0, len(out.NewBadges))
	for _, b := range out.NewBadges {
		granted, err := s.users.GrantBadge(ctx, tx, user.UserBadge{
			UserID:      rec.UserID,
			Name:        b.Name,
			Description: b.Description,
		})
		if err != nil {
			return fmt.Errorf("grant badge %q: %w", b.Name, err)
		}
		if granted {
			earned = append(earned, b)
		}
	}

	if err := s.activities.MarkAwarded(ctx, tx, rec.ID); err != nil {
		return fmt.Errorf("mark awarded: %w", err)
	}

	res.NewTotal = total
	res.NewLevel = out.Level
	res.LevelUp = raised
	res.BadgesEarned = earned
	return nil
}

func (s *Service) notify(ctx context.Context, userID string, res *AwardResult) {
	if s.notifier == nil {
		return
	}

	msgs := make([]notification.Message, 0, len(res.BadgesEarned)+1)
	for _, b := range res.BadgesEarned {
		msgs = append(msgs, notification.Message{
			UserID:  userID,
			Kind:    notification.KindBadge,
			Title:   "New badge earned",
			Body:    fmt.Sprintf("You earned the %s badge: %s", b.Name, b.Description),
			Link:    "/profile",
			Payload: map[string]any{"badge": b.Name, "activity_id": res.ActivityID},
		})
	}
	if res.LevelUp {
		msgs = append(msgs, notification.Message{
			UserID:  userID,
			Kind:    notification.KindRank,
			Title:   "Level up",
			Body:    fmt.Sprintf("You reached level %d with %d EcoPoints", res.NewLevel, res.NewTotal),
			Link:    "/leaderboard",
			Payload: map[string]any{"level": res.NewLevel, "total_points": res.NewTotal},
		})
	}
	if len(msgs) == 0 {
		return
	}

	s.notifier.NotifyMany(ctx, msgs)
}

func (s *Service) publish(ctx context.Context, rec *activity.ActivityRecord, res *AwardResult) {
	if s.events == nil || s.topic == "" {
		return
	}

	names := make([]string, 0, len(res.BadgesEarned))
	for _, b := range res.BadgesEarned {
		names = append(names, b.Name)
	}
	payload, err := json.Marshal(AwardedEvent{
		ActivityID:   rec.ID,
		UserID:       rec.UserID,
		ActivityType: string(rec.ActivityType),
		Points:       rec.Points,
		NewTotal:     res.NewTotal,
		NewLevel:     res.NewLevel,
		Badges:       names,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("failed to encode award event",
			zap.String("activity_id", rec.ID),
			zap.Error(err),
		)
		return
	}

	if err := s.events.Publish(ctx, s.topic, []byte(rec.UserID), payload); err != nil {
		logger.FromContext(ctx).Warn("failed to publish award event",
			zap.String("activity_id", rec.ID),
			zap.String("topic", s.topic),
			zap.Error(err),
		)
	}
}

func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	log := logger.FromContext(ctx).With(zap.String("user_id", userID))

	u, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	agg, err := s.aggregates.Get(ctx, userID)
	if err != nil {
		log.Error("failed to load aggregate", zap.Error(err))
		return nil, errutil.Wrap(ErrAggregateUnavailable, err)
	}

	owned, err := s.users.Badges(ctx, userID)
	if err != nil {
		log.Error("failed to load badges", zap.Error(err))
		return nil, errutil.Internal("failed to load badges", err)
	}
	badges := make([]BadgeView, 0, len(owned))
	for _, b := range owned {
		badges = append(badges, BadgeView{Name: b.Name, Slug: b.Slug, Description: b.Description, EarnedAt: b.EarnedAt})
	}

	out := &Summary{
		UserID:      userID,
		TotalPoints: agg.TotalPoints,
		Level:       max(u.Level, policy.Level(agg.TotalPoints)),
		Badges:      badges,
	}

	// the aggregate only moves when points are applied
	if !agg.UpdatedAt.IsZero() {
		at := agg.UpdatedAt
		out.LastActive = &at
	}

	return out, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]*aggregate.HistoryEntry, error) {
	if _, err := s.lookupUser(ctx, userID); err != nil {
		return nil, err
	}
	items, err := s.aggregates.History(ctx, userID, activity.ClampLimit(limit))
	if err != nil {
		logger.FromContext(ctx).Error("failed to query history", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to query history", err)
	}
	return items, nil
}

func (s *Service) Activities(ctx context.Context, userID string, limit int) ([]*activity.ActivityRecord, error) {
	if _, err := s.lookupUser(ctx, userID); err != nil {
		return nil, err
	}
	items, err := s.activities.Find(ctx, userID, limit)
	if err != nil {
		logger.FromContext(ctx).Error("failed to query activities", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to query activities", err)
	}
	return items, nil
}

// SyncUser upserts a directory entry. The stored level is kept.
func (s *Service) SyncUser(ctx context.Context, req SyncUserRequest) (*user.User, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	u := &user.User{
		ID:           req.ID,
		Username:     req.Username,
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
		IsActive:     active,
	}
	if err := s.users.Register(ctx, u); err != nil {
		logger.FromContext(ctx).Error("failed to sync user", zap.String("user_id", req.ID), zap.Error(err))
		return nil, errutil.Internal("failed to sync user", err)
	}
	return s.lookupUser(ctx, req.ID)
}

// DeactivateUser hides the user from the leaderboard and rejects further
// awards. Points and badges are kept.
func (s *Service) DeactivateUser(ctx context.Context, userID string) error {
	err := s.users.Deactivate(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to deactivate user", zap.String("user_id", userID), zap.Error(err))
		return errutil.Internal("failed to deactivate user", err)
	}
	logger.FromContext(ctx).Info("user deactivated", zap.String("user_id", userID))
	return nil
}

func (s *Service) lookupUser(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load user", err)
	}
	return u, nil
}

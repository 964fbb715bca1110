package ledger

import (
	"time"

	"ecopoints-ledger/pkg/errutil"
	"ecopoints-ledger/services/policy"
)

var (
	ErrInvalidActivityType = errutil.BadRequest("activity type is not supported", nil,
		errutil.WithReason("INVALID_ACTIVITY_TYPE"))
	ErrInvalidPoints = errutil.BadRequest("points must not be negative", nil,
		errutil.WithReason("INVALID_POINTS"))
	ErrInvalidMetadata = errutil.BadRequest("metadata must be JSON encodable", nil,
		errutil.WithReason("INVALID_METADATA"))
	ErrUserNotFound = errutil.NotFound("user not found", nil,
		errutil.WithReason("USER_NOT_FOUND"))
	// ErrRecordUnavailable means nothing was persisted.
	ErrRecordUnavailable = errutil.Unavailable("activity store unavailable", nil,
		errutil.WithReason("RECORD_UNAVAILABLE"))
	// ErrAggregateUnavailable means the activity record exists but its
	// points were not applied.
	ErrAggregateUnavailable = errutil.Unavailable("ecopoints aggregate unavailable", nil,
		errutil.WithReason("AGGREGATE_UNAVAILABLE"))
)

type AwardRequest struct {
	UserID       string         `json:"user_id" binding:"required"`
	ActivityType string         `json:"activity_type" binding:"required"`
	Points       int64          `json:"points"`
	Description  string         `json:"description"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SyncUserRequest is a directory entry pushed by the identity system.
// IsActive defaults to true when omitted.
type SyncUserRequest struct {
	ID           string `json:"id" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	IsActive     *bool  `json:"is_active"`
}

type AwardResult struct {
	Accepted     bool           `json:"accepted"`
	ActivityID   string         `json:"activity_id"`
	NewTotal     int64          `json:"new_total"`
	NewLevel     int            `json:"new_level"`
	LevelUp      bool           `json:"level_up"`
	BadgesEarned []policy.Badge `json:"badges_earned"`
}

type BadgeView struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

type Summary struct {
	UserID      string      `json:"user_id"`
	TotalPoints int64       `json:"total_points"`
	Level       int         `json:"level"`
	Badges      []BadgeView `json:"badges"`
	LastActive  *time.Time  `json:"last_active,omitempty"`
}

// AwardedEvent is published after a committed award.
type AwardedEvent struct {
	ActivityID   string    `json:"activity_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Points       int64     `json:"points"`
	NewTotal     int64     `json:"new_total"`
	NewLevel     int       `json:"new_level"`
	Badges       []string  `json:"badges,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

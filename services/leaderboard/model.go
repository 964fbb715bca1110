package leaderboard

import (
	"time"

	"ecopoints-ledger/pkg/db/pagination"
	"ecopoints-ledger/pkg/errutil"
)

var ErrUserNotFound = errutil.NotFound("user not found", nil,
	errutil.WithReason("USER_NOT_FOUND"))

type Entry struct {
	Rank         int64      `json:"rank"`
	UserID       string     `json:"user_id"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	ProfileImage string     `json:"profile_image,omitempty"`
	TotalPoints  int64      `json:"total_points"`
	Level        int        `json:"level"`
	// LastActive is the time of the last applied award; nil until the first.
	LastActive   *time.Time `json:"last_active,omitempty"`
}

// Page is a snapshot; ranks within it are consecutive and ordinal.
type Page struct {
	Entries    []Entry             `json:"data"`
	Pagination pagination.PageInfo `json:"pagination"`
}

type Rank struct {
	UserID      string `json:"user_id"`
	Rank        int64  `json:"rank"`
	TotalPoints int64  `json:"total_points"`
}

// row is the scan target for the ranking query.
type row struct {
	UserID       string     `gorm:"column:user_id"`
	Username     string     `gorm:"column:username"`
	Name         string     `gorm:"column:name"`
	ProfileImage string     `gorm:"column:profile_image"`
	Level        int        `gorm:"column:level"`
	TotalPoints  int64      `gorm:"column:total_points"`
	LastActive   *time.Time `gorm:"column:last_active"`
}

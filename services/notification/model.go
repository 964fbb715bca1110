package notification

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

const (
	KindBadge      Kind = "badge"
	KindRank       Kind = "rank"
	KindModeration Kind = "moderation"
	KindInfo       Kind = "info"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBadge, KindRank, KindModeration, KindInfo:
		return true
	default:
		return false
	}
}

// Message is one notification addressed to a single user.
type Message struct {
	UserID  string         `json:"user_id"`
	Kind    Kind           `json:"kind"`
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Link    string         `json:"link,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// BroadcastRequest is delivered to every active user.
type BroadcastRequest struct {
	Kind    Kind           `json:"kind"`
	Title   string         `json:"title" binding:"required"`
	Body    string         `json:"body"`
	Link    string         `json:"link,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Notification struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	UserID    string         `gorm:"column:user_id;type:varchar(64);not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Kind      Kind           `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Title     string         `gorm:"column:title;type:varchar(200);not null" json:"title"`
	Message   string         `gorm:"column:message;type:text" json:"message"`
	Link      string         `gorm:"column:link;type:text" json:"link,omitempty"`
	Read      bool           `gorm:"column:is_read;not null" json:"read"`
	Meta      datatypes.JSON `gorm:"column:meta" json:"meta,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;index:idx_notifications_user_created,priority:2" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

package aggregate

import "time"

// EcoPoint is the per-user balance, created lazily on the first award.
type EcoPoint struct {
	UserID      string    `gorm:"column:user_id;primaryKey;type:varchar(64)" json:"user_id"`
	TotalPoints int64     `gorm:"column:total_points;not null;index:idx_eco_points_rank,priority:1,sort:desc" json:"total_points"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (EcoPoint) TableName() string {
	return "eco_points"
}

// HistoryEntry mirrors one awarded activity for display. ActivityID is unique
// so an activity can never be mirrored twice.
type HistoryEntry struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	UserID       string    `gorm:"column:user_id;type:varchar(64);not null;index:idx_eco_point_history_user,priority:1" json:"user_id"`
	ActivityID   string    `gorm:"column:activity_id;type:varchar(32);not null;uniqueIndex" json:"activity_id"`
	ActivityType string    `gorm:"column:activity_type;type:varchar(32);not null" json:"activity_type"`
	Points       int64     `gorm:"column:points;not null" json:"points"`
	Description  string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_eco_point_history_user,priority:2" json:"timestamp"`
}

func (HistoryEntry) TableName() string {
	return "eco_point_histories"
}

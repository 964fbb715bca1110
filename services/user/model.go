package user

import "time"

// User is the directory entry owned by the upstream identity system. The
// ledger only reads it, apart from Level which it raises on award.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Username     string    `gorm:"column:username;type:varchar(100);uniqueIndex" json:"username"`
	Name         string    `gorm:"column:name;type:varchar(200)" json:"name"`
	ProfileImage string    `gorm:"column:profile_image;type:text" json:"profile_image,omitempty"`
	IsActive     bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	Level        int       `gorm:"column:level;not null;default:1" json:"level"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName falls back to the username and then to a placeholder.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return "Unknown User"
	}
}

type UserBadge struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	UserID      string    `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uq_user_badges_user_name,priority:1" json:"user_id"`
	Name        string    `gorm:"column:name;type:varchar(100);not null;uniqueIndex:uq_user_badges_user_name,priority:2" json:"name"`
	Slug        string    `gorm:"column:slug;type:varchar(120);not null" json:"slug"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	EarnedAt    time.Time `gorm:"column:earned_at;not null" json:"earned_at"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

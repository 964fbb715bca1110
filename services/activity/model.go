package activity

import (
	"time"

	"gorm.io/datatypes"
)

type ActivityType string

const (
	Registration     ActivityType = "registration"
	Login            ActivityType = "login"
	PublishBlog      ActivityType = "publish_blog"
	CommentBlog      ActivityType = "comment_blog"
	LikeBlog         ActivityType = "like_blog"
	JoinCampaign     ActivityType = "join_campaign"
	CreateCampaign   ActivityType = "create_campaign"
	CompleteCampaign ActivityType = "complete_campaign"
	Classification   ActivityType = "classification"
	ShareContent     ActivityType = "share_content"
	AdminAction      ActivityType = "admin_action"
	DailyCheckin     ActivityType = "daily_checkin"
)

// Types lists every accepted activity type.
var Types = []ActivityType{
	Registration, Login, PublishBlog, CommentBlog, LikeBlog, JoinCampaign,
	CreateCampaign, CompleteCampaign, Classification, ShareContent, AdminAction, DailyCheckin,
}

func (t ActivityType) String() string {
	switch t {
	case Registration, Login, PublishBlog, CommentBlog, LikeBlog, JoinCampaign,
		CreateCampaign, CompleteCampaign, Classification, ShareContent, AdminAction, DailyCheckin:
		return string(t)
	default:
		return ""
	}
}

func (t ActivityType) Valid() bool {
	return t.String() != ""
}

func ParseActivityType(s string) (ActivityType, bool) {
	t := ActivityType(s)
	return t, t.Valid()
}

// ActivityRecord is one point-earning event. PointsAwarded flips to true
// exactly once, in the same transaction as the aggregate increment.
type ActivityRecord struct {
	ID            string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	UserID        string         `gorm:"column:user_id;type:varchar(64);not null;index:idx_activities_user_created,priority:1" json:"user_id"`
	ActivityType  ActivityType   `gorm:"column:activity_type;type:varchar(32);not null;index" json:"activity_type"`
	Points        int64          `gorm:"column:points;not null" json:"points"`
	Description   string         `gorm:"column:description;type:text" json:"description"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	PointsAwarded bool           `gorm:"column:points_awarded;not null;index" json:"points_awarded"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null;index:idx_activities_user_created,priority:2" json:"created_at"`
}

func (ActivityRecord) TableName() string {
	return "activities"
}

type TypeStat struct {
	ActivityType ActivityType `gorm:"column:activity_type" json:"activity_type"`
	Count        int64        `gorm:"column:count" json:"count"`
	TotalPoints  int64        `gorm:"column:total_points" json:"total_points"`
}

type DayStat struct {
	Day   string `gorm:"column:day" json:"day"`
	Count int64  `gorm:"column:count" json:"count"`
}

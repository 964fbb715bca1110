package leaderboard

import (
	"context"

	"gorm.io/gorm"
)

// points is the ranking key. Users without an aggregate rank with zero.
const points = "COALESCE(e.total_points, 0)"

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Page(ctx context.Context, offset, limit int) ([]row, error)
	// Rank returns gorm.ErrRecordNotFound for unknown or inactive users.
	Rank(ctx context.Context, userID string) (*Rank, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ranked(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("users AS u").
		Joins("LEFT JOIN eco_points AS e ON e.user_id = u.id").
		Where("u.is_active = ?", true)
}

func (r *gormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("users").Where("is_active = ?", true).Count(&n).Error
	return n, err
}

// Page orders by points descending and breaks ties by user id ascending, so
// every user has exactly one position.
func (r *gormRepository) Page(ctx context.Context, offset, limit int) ([]row, error) {
	var rows []row
	err := r.ranked(ctx).
		Select("u.id AS user_id, u.username, u.name, u.profile_image, u.level, " + points + " AS total_points, e.updated_at AS last_active").
		Order(points + " DESC, u.id ASC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *gormRepository) Rank(ctx context.Context, userID string) (*Rank, error) {
	var self []row
	if err := r.ranked(ctx).
		Select("u.id AS user_id, "+points+" AS total_points").
		Where("u.id = ?", userID).
		Limit(1).
		Scan(&self).Error; err != nil {
		return nil, err
	}
	if len(self) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	total := self[0].TotalPoints

	var ahead int64
	if err := r.ranked(ctx).
		Where("("+points+" > ? OR ("+points+" = ? AND u.id < ?))", total, total, userID).
		Count(&ahead).Error; err != nil {
		return nil, err
	}

	return &Rank{UserID: userID, Rank: ahead + 1, TotalPoints: total}, nil
}

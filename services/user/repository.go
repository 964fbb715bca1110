package user

import (
	"context"
	"errors"
	"time"

	"ecopoints-ledger/pkg/db/option"
	"ecopoints-ledger/pkg/repository"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Register(ctx context.Context, u *User) error
	Deactivate(ctx context.Context, id string) error

	Badges(ctx context.Context, userID string) ([]*UserBadge, error)
	BadgesTx(ctx context.Context, tx *gorm.DB, userID string) ([]*UserBadge, error)
	GrantBadge(ctx context.Context, tx *gorm.DB, badge UserBadge) (bool, error)
	RaiseLevel(ctx context.Context, tx *gorm.DB, userID string, level int) (bool, error)
}

type gormRepository struct {
	db     *gorm.DB
	users  repository.Repository[User]
	badges repository.Repository[UserBadge]
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{
		db:     db,
		users:  repository.ProvideStore[User](db),
		badges: repository.ProvideStore[UserBadge](db),
	}
}

func (r *gormRepository) Get(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	u, err := r.users.FindOne(ctx, &User{ID: id})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// Exists reports whether an active user with id is in the directory.
func (r *gormRepository) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := r.users.Count(ctx, &User{ID: id}, option.ApplyOperator(option.Condition{
		Field: "is_active", Operator: option.EQ, Value: true,
	}))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Register inserts or refreshes the profile fields. Level is never lowered.
func (r *gormRepository) Register(ctx context.Context, u *User) error {
	if u.Level < 1 {
		u.Level = 1
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name", "profile_image", "is_active", "updated_at"}),
	}).Create(u).Error
}

func (r *gormRepository) Deactivate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) Badges(ctx context.Context, userID string) ([]*UserBadge, error) {
	return r.BadgesTx(ctx, r.db, userID)
}

func (r *gormRepository) BadgesTx(ctx context.Context, tx *gorm.DB, userID string) ([]*UserBadge, error) {
	if tx == nil {
		tx = r.db
	}
	var out []*UserBadge
	err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GrantBadge inserts the badge unless the user already holds one with the
// same name. granted is false when the insert was ignored.
func (r *gormRepository) GrantBadge(ctx context.Context, tx *gorm.DB, badge UserBadge) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	if badge.Slug == "" {
		badge.Slug = slug.Make(badge.Name)
	}
	if badge.EarnedAt.IsZero() {
		badge.EarnedAt = time.Now().UTC()
	}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&badge)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RaiseLevel only ever moves the level up. raised is false when the stored
// level was already at or above level.
func (r *gormRepository) RaiseLevel(ctx context.Context, tx *gorm.DB, userID string, level int) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Model(&User{}).
		Where("id = ? AND level < ?", userID, level).
		Updates(map[string]any{"level": level, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

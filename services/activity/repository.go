package activity

import (
	"context"
	"errors"
	"time"

	"ecopoints-ledger/pkg/db/option"
	"ecopoints-ledger/pkg/repository"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var ErrAlreadyAwarded = errors.New("activity already awarded or missing")

// Repository is the append-only activity log. Analytics reads are eventually
// consistent and unrelated to leaderboard ordering.
type Repository interface {
	Append(ctx context.Context, rec *ActivityRecord) error
	MarkAwarded(ctx context.Context, tx *gorm.DB, id string) error
	Get(ctx context.Context, id string) (*ActivityRecord, error)
	Find(ctx context.Context, userID string, limit int) ([]*ActivityRecord, error)

	CountByType(ctx context.Context, userID string) ([]TypeStat, error)
	CountByDay(ctx context.Context, from, to time.Time) ([]DayStat, error)
	DailyActiveUsers(ctx context.Context, from, to time.Time) ([]DayStat, error)
	MostCommon(ctx context.Context, limit int) ([]TypeStat, error)

	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*ActivityRecord, error)
	CountPending(ctx context.Context, olderThan time.Time) (int64, error)
}

type gormRepository struct {
	db      *gorm.DB
	records repository.Repository[ActivityRecord]
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{
		db:      db,
		records: repository.ProvideStore[ActivityRecord](db),
	}
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func (r *gormRepository) Append(ctx context.Context, rec *ActivityRecord) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	rec.PointsAwarded = false
	return r.records.Create(ctx, rec)
}

// MarkAwarded flips points_awarded once; a second call for the same id fails
// with ErrAlreadyAwarded so the caller's transaction rolls back.
func (r *gormRepository) MarkAwarded(ctx context.Context, tx *gorm.DB, id string) error {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Model(&ActivityRecord{}).
		Where("id = ? AND points_awarded = ?", id, false).
		Update("points_awarded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyAwarded
	}
	return nil
}

func (r *gormRepository) Get(ctx context.Context, id string) (*ActivityRecord, error) {
	rec, err := r.records.FindOne(ctx, &ActivityRecord{ID: id})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *gormRepository) Find(ctx context.Context, userID string, limit int) ([]*ActivityRecord, error) {
	if userID == "" {
		return nil, nil
	}
	newestFirst := map[string]bool{"created_at": true, "id": true}
	return r.records.Find(ctx, &ActivityRecord{UserID: userID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: newestFirst}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: newestFirst}),
		option.WithLimit(ClampLimit(limit)),
	)
}

func (r *gormRepository) CountByType(ctx context.Context, userID string) ([]TypeStat, error) {
	var out []TypeStat
	err := r.db.WithContext(ctx).Model(&ActivityRecord{}).
		Select("activity_type, COUNT(*) AS count, COALESCE(SUM(points), 0) AS total_points").
		Where("user_id = ?", userID).
		Group("activity_type").
		Order("count DESC, activity_type ASC").
		Scan(&out).Error
	return out, err
}

func (r *gormRepository) CountByDay(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	day := dayExpr(r.db)
	var out []DayStat
	err := r.db.WithContext(ctx).Model(&ActivityRecord{}).
		Select(day+" AS day, COUNT(*) AS count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group(day).
		Order("day ASC").
		Scan(&out).Error
	return out, err
}

func (r *gormRepository) DailyActiveUsers(ctx context.Context, from, to time.Time) ([]DayStat, error) {
	day := dayExpr(r.db)
	var out []DayStat
	err := r.db.WithContext(ctx).Model(&ActivityRecord{}).
		Select(day+" AS day, COUNT(DISTINCT user_id) AS count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group(day).
		Order("day ASC").
		Scan(&out).Error
	return out, err
}

func (r *gormRepository) MostCommon(ctx context.Context, limit int) ([]TypeStat, error) {
	var out []TypeStat
	err := r.db.WithContext(ctx).Model(&ActivityRecord{}).
		Select("activity_type, COUNT(*) AS count, COALESCE(SUM(points), 0) AS total_points").
		Group("activity_type").
		Order("count DESC, activity_type ASC").
		Limit(ClampLimit(limit)).
		Scan(&out).Error
	return out, err
}

func (r *gormRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*ActivityRecord, error) {
	var out []*ActivityRecord
	err := r.db.WithContext(ctx).
		Where("points_awarded = ? AND created_at < ?", false, olderThan).
		Order("created_at ASC, id ASC").
		Limit(ClampLimit(limit)).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) CountPending(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&ActivityRecord{}).
		Where("points_awarded = ? AND created_at < ?", false, olderThan).
		Count(&n).Error
	return n, err
}

// dayExpr buckets created_at into a UTC calendar day string.
func dayExpr(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	case "mysql":
		return "DATE_FORMAT(created_at, '%Y-%m-%d')"
	default:
		return "strftime('%Y-%m-%d', created_at)"
	}
}

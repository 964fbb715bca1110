package aggregate

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxHistory = 100

// Repository owns the per-user balance. Balances only change through
// Increment, which is a single atomic UPDATE.
type Repository interface {
	Increment(ctx context.Context, tx *gorm.DB, entry HistoryEntry) (int64, error)
	Get(ctx context.Context, userID string) (*EcoPoint, error)
	GetTx(ctx context.Context, tx *gorm.DB, userID string) (*EcoPoint, error)
	History(ctx context.Context, userID string, limit int) ([]*HistoryEntry, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Increment adds entry.Points to the user's balance and appends the history
// row, returning the balance as seen inside tx.
func (r *gormRepository) Increment(ctx context.Context, tx *gorm.DB, entry HistoryEntry) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	if entry.Points <= 0 {
		return 0, errors.New("increment must be positive")
	}
	tx = tx.WithContext(ctx)
	now := time.Now().UTC()

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&EcoPoint{UserID: entry.UserID, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		return 0, err
	}

	res := tx.Model(&EcoPoint{}).
		Where("user_id = ?", entry.UserID).
		Updates(map[string]any{
			"total_points": gorm.Expr("total_points + ?", entry.Points),
			"updated_at":   now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}

	var total int64
	if err := tx.Model(&EcoPoint{}).
		Where("user_id = ?", entry.UserID).
		Pluck("total_points", &total).Error; err != nil {
		return 0, err
	}

	return total, nil
}

// Get returns a zero balance for users that never earned points.
func (r *gormRepository) Get(ctx context.Context, userID string) (*EcoPoint, error) {
	return r.GetTx(ctx, r.db, userID)
}

func (r *gormRepository) GetTx(ctx context.Context, tx *gorm.DB, userID string) (*EcoPoint, error) {
	if tx == nil {
		tx = r.db
	}
	var out EcoPoint
	err := tx.WithContext(ctx).Where("user_id = ?", userID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &EcoPoint{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *gormRepository) History(ctx context.Context, userID string, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}
	var out []*HistoryEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

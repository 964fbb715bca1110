package notification

import (
	"context"

	"ecopoints-ledger/pkg/db/option"
	"ecopoints-ledger/pkg/repository"
	"ecopoints-ledger/services/user"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Repository interface {
	// Insert ignores notifications whose id already exists, so task retries
	// never duplicate an inbox entry.
	Insert(ctx context.Context, items []*Notification, batchSize int) (int64, error)
	List(ctx context.Context, userID string, limit int) ([]*Notification, error)
	// ActiveUserIDs pages through active users by id, starting after cursor.
	ActiveUserIDs(ctx context.Context, after string, limit int) ([]string, error)
}

type gormRepository struct {
	db    *gorm.DB
	inbox repository.Repository[Notification]
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{
		db:    db,
		inbox: repository.ProvideStore[Notification](db),
	}
}

func (r *gormRepository) Insert(ctx context.Context, items []*Notification, batchSize int) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = len(items)
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(items, batchSize)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) List(ctx context.Context, userID string, limit int) ([]*Notification, error) {
	if userID == "" {
		return nil, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	newestFirst := map[string]bool{"created_at": true, "id": true}
	return r.inbox.Find(ctx, &Notification{UserID: userID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: newestFirst}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc", Allow: newestFirst}),
		option.WithLimit(limit),
	)
}

func (r *gormRepository) ActiveUserIDs(ctx context.Context, after string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&user.User{}).
		Where("is_active = ? AND id > ?", true, after).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

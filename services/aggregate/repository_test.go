package aggregate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ecopoints-ledger/services/testutil"
)

func newRepo(t *testing.T) (*gorm.DB, Repository) {
	t.Helper()
	db := testutil.NewTestDB(t, &EcoPoint{}, &HistoryEntry{})
	return db, NewRepository(db)
}

func increment(t *testing.T, db *gorm.DB, repo Repository, entry HistoryEntry) int64 {
	t.Helper()
	var total int64
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		total, err = repo.Increment(context.Background(), tx, entry)
		return err
	})
	require.NoError(t, err)
	return total
}

func TestIncrementCreatesLazily(t *testing.T) {
	db, repo := newRepo(t)
	ctx := context.Background()

	before, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), before.TotalPoints)

	total := increment(t, db, repo, HistoryEntry{ID: "h1", UserID: "u1", ActivityID: "a1", ActivityType: "publish_blog", Points: 5})
	require.Equal(t, int64(5), total)

	total = increment(t, db, repo, HistoryEntry{ID: "h2", UserID: "u1", ActivityID: "a2", ActivityType: "classification", Points: 10})
	require.Equal(t, int64(15), total)

	after, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(15), after.TotalPoints)

	var rows int64
	require.NoError(t, db.Model(&EcoPoint{}).Where("user_id = ?", "u1").Count(&rows).Error)
	require.Equal(t, int64(1), rows)
}

func TestIncrementRejectsDuplicateActivity(t *testing.T) {
	db, repo := newRepo(t)

	increment(t, db, repo, HistoryEntry{ID: "h1", UserID: "u1", ActivityID: "a1", Points: 5})

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.Increment(context.Background(), tx, HistoryEntry{ID: "h2", UserID: "u1", ActivityID: "a1", Points: 5})
		return err
	})
	require.Error(t, err)

	got, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, int64(5), got.TotalPoints, "rolled back increment must not leak")
}

func TestIncrementValidation(t *testing.T) {
	db, repo := newRepo(t)

	_, err := repo.Increment(context.Background(), nil, HistoryEntry{UserID: "u1", Points: 1})
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.Increment(context.Background(), tx, HistoryEntry{ID: "h0", UserID: "u1", ActivityID: "a0", Points: 0})
		return err
	})
	require.Error(t, err)
}

func TestSequentialIncrementsSum(t *testing.T) {
	db, repo := newRepo(t)

	var want int64
	for i := 1; i <= 20; i++ {
		want += int64(i)
		increment(t, db, repo, HistoryEntry{
			ID:         fmt.Sprintf("h%d", i),
			UserID:     "u1",
			ActivityID: fmt.Sprintf("a%d", i),
			Points:     int64(i),
		})
	}

	got, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, want, got.TotalPoints)
}

func TestHistoryNewestFirst(t *testing.T) {
	db, repo := newRepo(t)

	for i := 1; i <= 3; i++ {
		increment(t, db, repo, HistoryEntry{
			ID:         fmt.Sprintf("h%d", i),
			UserID:     "u1",
			ActivityID: fmt.Sprintf("a%d", i),
			Points:     int64(i),
		})
	}
	increment(t, db, repo, HistoryEntry{ID: "x1", UserID: "u2", ActivityID: "b1", Points: 7})

	items, err := repo.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		require.Equal(t, "u1", it.UserID)
	}
	require.Equal(t, "h3", items[0].ID)

	items, err = repo.History(context.Background(), "u1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

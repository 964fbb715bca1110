package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ecopoints-ledger/pkg/db/option"
)

type widget struct {
	ID     string `gorm:"primaryKey"`
	Owner  string
	Weight int
}

func newStore(t *testing.T) Repository[widget] {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := ProvideStore[widget](db)
	for _, w := range []*widget{
		{ID: "w1", Owner: "u1", Weight: 3},
		{ID: "w2", Owner: "u1", Weight: 7},
		{ID: "w3", Owner: "u2", Weight: 5},
	} {
		require.NoError(t, s.Create(context.Background(), w))
	}
	return s
}

func TestFindAppliesOptions(t *testing.T) {
	s := newStore(t)
	allow := map[string]bool{"weight": true}

	out, err := s.Find(context.Background(), &widget{Owner: "u1"},
		option.WithSortBy(option.QuerySortBy{SortBy: "weight", OrderBy: "desc", Allow: allow}),
		option.WithLimit(1),
	)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "w2", out[0].ID)
}

func TestFindIgnoresUnlistedSort(t *testing.T) {
	s := newStore(t)

	out, err := s.Find(context.Background(), &widget{},
		option.WithSortBy(option.QuerySortBy{SortBy: "weight; DROP TABLE widgets", Allow: map[string]bool{"weight": true}}),
	)
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestFindOneMissing(t *testing.T) {
	s := newStore(t)

	got, err := s.FindOne(context.Background(), &widget{ID: "nope"})
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = s.FindOne(context.Background(), &widget{ID: "w3"})
	require.NoError(t, err)
	require.Equal(t, 5, got.Weight)
}

func TestCountWithOperator(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, &widget{}, option.ApplyOperator(option.Condition{Field: "weight", Operator: option.GTE, Value: 5}))
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = s.Count(ctx, &widget{}, option.ApplyOperator(option.Condition{Field: "owner", Operator: option.IN, Value: []string{"u2"}}))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = s.Count(ctx, &widget{}, option.ApplyOperator(option.Condition{Field: "weight", Operator: "LIKE", Value: 1}))
	require.Error(t, err)
}

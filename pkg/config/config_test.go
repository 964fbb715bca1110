package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "ecopoints-ledger", cfg.AppName)
	require.Equal(t, "postgres", cfg.Database.Type)
	require.Equal(t, int64(1), cfg.Snowflake.NodeID)
	require.Equal(t, 100, cfg.EcoPoints.MaxPageSize)
	require.Equal(t, 5*time.Second, cfg.EcoPoints.LeaderboardCacheTTL)
	require.Empty(t, cfg.EcoPoints.Badges)
}

func TestLoadBadgeTableFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
APP_ENV: test
DATABASE:
  TYPE: sqlite
ECOPOINTS:
  LEADERBOARD_CACHE_TTL: 30s
  BADGES:
    - NAME: Welcome
      DESCRIPTION: Joined the community
      EXPR: activity_type == "registration"
    - NAME: Eco Explorer
      DESCRIPTION: Reached 50 EcoPoints
      EXPR: total_points >= 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	require.Equal(t, "test", cfg.AppEnv)
	require.Equal(t, "sqlite", cfg.Database.Type)
	require.Equal(t, 30*time.Second, cfg.EcoPoints.LeaderboardCacheTTL)
	require.Len(t, cfg.EcoPoints.Badges, 2)
	require.Equal(t, "Welcome", cfg.EcoPoints.Badges[0].Name)
	require.Equal(t, "total_points >= 50", cfg.EcoPoints.Badges[1].Expr)
}

package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildLeaderboardPageKey(t *testing.T) {
	require.Equal(t, "ecopoints:leaderboard:page:2:10", BuildLeaderboardPageKey(2, 10))
	require.NotEqual(t, BuildLeaderboardPageKey(1, 20), BuildLeaderboardPageKey(2, 10))
}

package rediskey

import "fmt"

const (
	LeaderboardPrefix     = "ecopoints:leaderboard"
	LeaderboardPagePrefix = "ecopoints:leaderboard:page"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildLeaderboardPageKey returns "ecopoints:leaderboard:page:{page}:{size}"
func BuildLeaderboardPageKey(page, pageSize int) string {
	return NamespaceKey(LeaderboardPagePrefix, fmt.Sprintf("%d:%d", page, pageSize))
}

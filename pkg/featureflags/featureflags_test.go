package featureflags

import (
	"context"
	"testing"

	"ecopoints-ledger/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestUnconfiguredClientUsesFallback(t *testing.T) {
	ff := ProvideFeatureFlag(FeatureParams{Config: &config.Config{}})

	require.True(t, ff.Enabled(context.Background(), "user-1", Notifications, true))
	require.False(t, ff.Enabled(context.Background(), "user-1", Notifications, false))
}

func TestStatic(t *testing.T) {
	ff := Static{Notifications: false}

	require.False(t, ff.Enabled(context.Background(), "", Notifications, true))
	require.True(t, ff.Enabled(context.Background(), "", "other", true))
}

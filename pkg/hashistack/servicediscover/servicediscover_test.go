package servicediscover

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ecopoints-ledger/pkg/config"
)

func TestNewRegistryWithoutConsul(t *testing.T) {
	r, err := NewRegistry(&config.Config{})
	require.NoError(t, err)
	require.IsType(t, noop{}, r)
	require.NoError(t, r.Register(context.Background()))
}

func TestNewRegistryBuildsCheck(t *testing.T) {
	cfg := &config.Config{AppName: "ecopoints-ledger"}
	cfg.Consul.Addr = "127.0.0.1:8500"
	cfg.Consul.Host = "10.0.0.5"
	cfg.Server.Addr = "8080"

	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	c, ok := r.(*ConsulRegistry)
	require.True(t, ok)
	require.Equal(t, "ecopoints-ledger-10.0.0.5-8080", c.serviceID)
	require.Equal(t, 8080, c.service.Port)
	require.Equal(t, "http://10.0.0.5:8080/health/readiness", c.service.Check.HTTP)
}

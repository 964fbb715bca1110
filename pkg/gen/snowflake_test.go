package gen

import (
	"testing"

	"ecopoints-ledger/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeNode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Snowflake.NodeID = 3

	node, err := NewSnowflakeNode(cfg)
	require.NoError(t, err)
	require.NotEqual(t, node.Generate(), node.Generate())
}

func TestNewSnowflakeNodeRejectsOutOfRange(t *testing.T) {
	cfg := &config.Config{}
	cfg.Snowflake.NodeID = 5000

	_, err := NewSnowflakeNode(cfg)
	require.Error(t, err)
}

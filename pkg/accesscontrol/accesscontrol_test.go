package accesscontrol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ecopoints-ledger/pkg/config"
)

func TestDefaultPolicies(t *testing.T) {
	e, err := NewEnforcer(&config.Config{})
	require.NoError(t, err)

	cases := []struct {
		role, path, method string
		want               bool
	}{
		{RoleAdmin, "/v1/admin/notifications/broadcast", "POST", true},
		{RoleAdmin, "/v1/admin/analytics/activities/top", "GET", true},
		{RoleModerator, "/v1/admin/analytics/users/u1/stats", "GET", true},
		{RoleModerator, "/v1/admin/notifications/broadcast", "POST", false},
		{"user", "/v1/admin/analytics/activities/top", "GET", false},
		{RoleAdmin, "/v1/admin/analytics/activities/top", "DELETE", false},
		{RoleProducer, "/v1/ecopoints/award", "POST", true},
		{RoleProducer, "/v1/admin/users", "POST", false},
		{RoleModerator, "/v1/ecopoints/award", "POST", false},
		{"user", "/v1/ecopoints/award", "POST", false},
	}
	for _, tc := range cases {
		ok, err := e.Enforce(tc.role, tc.path, tc.method)
		require.NoError(t, err)
		require.Equal(t, tc.want, ok, "%s %s %s", tc.role, tc.method, tc.path)
	}
}

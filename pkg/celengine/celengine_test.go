package celengine

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) *cel.Env {
	t.Helper()
	env, err := NewEnv(Variables{
		"total_points":  cel.IntType,
		"activity_type": cel.StringType,
	})
	require.NoError(t, err)
	return env
}

func TestCompileAndEval(t *testing.T) {
	p, err := Compile(testEnv(t), `total_points >= 50 || activity_type == "registration"`)
	require.NoError(t, err)

	ok, err := p.Eval(map[string]any{"total_points": int64(10), "activity_type": "registration"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Eval(map[string]any{"total_points": int64(49), "activity_type": "login"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompileRejectsNonBool(t *testing.T) {
	_, err := Compile(testEnv(t), `total_points + 1`)
	require.Error(t, err)
}

func TestCompileRejectsUnknownVariable(t *testing.T) {
	_, err := Compile(testEnv(t), `streak > 3`)
	require.Error(t, err)
}

package fetch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short"))

	long := strings.Repeat("가", MaxContentLen+500)
	got := Truncate(long)
	require.Equal(t, MaxContentLen, len([]rune(got)))
	require.True(t, strings.HasPrefix(long, got))
}

func TestTruncateExactLimit(t *testing.T) {
	exact := strings.Repeat("a", MaxContentLen)
	require.Equal(t, exact, Truncate(exact))
}

func TestFailure(t *testing.T) {
	res := Failure("no luck")
	require.False(t, res.Success)
	require.Equal(t, "no luck", res.Err)
	require.Empty(t, res.Content)
}

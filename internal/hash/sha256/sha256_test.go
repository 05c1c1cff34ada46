package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashIsStableHexDigest(t *testing.T) {
	t.Parallel()

	h := New()
	first, err := h.Hash([]byte("<html></html>"))
	require.NoError(t, err)
	require.Len(t, first, 64)

	second, err := h.Hash([]byte("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := h.Hash([]byte("<html>x</html>"))
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumIsStablePerInput(t *testing.T) {
	t.Parallel()

	h := New()
	first := h.Sum([]byte("https://acme.example/"))
	require.Len(t, first, 64)
	require.Equal(t, first, h.Sum([]byte("https://acme.example/")))
	require.NotEqual(t, first, h.Sum([]byte("https://acme.example/about")))
}

func TestSumEmptyInput(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		New().Sum(nil))
}

func TestSumShort(t *testing.T) {
	t.Parallel()

	h := New()
	full := h.Sum([]byte("https://acme.example/"))
	require.Equal(t, full[:16], h.SumShort([]byte("https://acme.example/"), 16))
	require.Equal(t, full, h.SumShort([]byte("https://acme.example/"), 0))
	require.Equal(t, full, h.SumShort([]byte("https://acme.example/"), 200))
}

package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_LegacyDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://x.com/foo", Normalize("https://twitter.com/foo"))
	require.Equal(t, "https://x.com/foo", Normalize("https://www.twitter.com/foo/"))
	require.Equal(t, "https://x.com/foo", Normalize("https://mobile.twitter.com/foo?lang=en"))
}

func TestNormalize_AlreadyCanonicalUnchanged(t *testing.T) {
	t.Parallel()

	const canonical = "https://x.com/foo"
	require.Equal(t, canonical, Normalize(canonical))
	require.Equal(t, canonical, Normalize(Normalize(canonical)))
}

func TestNormalize_IntentWrappers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://x.com/foo",
		Normalize("https://twitter.com/intent/follow?screen_name=foo"))
	require.Equal(t, "https://x.com/foo",
		Normalize("https://x.com/login?redirect_after_login=%2Ffoo"))
}

func TestNormalize_TrimsBeyondHandle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://x.com/foo", Normalize("https://x.com/foo/status/123456"))
	require.Equal(t, "https://x.com/foo", Normalize("https://x.com/foo?utm_source=mail#top"))
}

func TestNormalize_SystemPathsRejected(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"https://x.com/home",
		"https://twitter.com/search?q=foo",
		"https://x.com/i/flow/login",
		"https://x.com/hashtag/golang",
		"https://x.com/status/123456",
	} {
		require.Equal(t, in, Normalize(in), "input %q", in)
		require.Empty(t, Handle(in), "input %q", in)
	}
}

func TestNormalize_MalformedPassesThrough(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not a url", "https://example.com/foo", "://bad"} {
		require.Equal(t, in, Normalize(in), "input %q", in)
	}
}

func TestHandle_BareAndPrefixed(t *testing.T) {
	t.Parallel()

	require.Equal(t, "foo", Handle("foo"))
	require.Equal(t, "foo", Handle("@foo"))
	require.Equal(t, "", Handle("this handle is way too long to be real"))
}

func TestIsTwitterURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsTwitterURL("https://x.com/foo"))
	require.True(t, IsTwitterURL("https://mobile.twitter.com/foo"))
	require.False(t, IsTwitterURL("https://example.com/foo"))
	require.False(t, IsTwitterURL("not a url"))
}

func TestIsValidHandle(t *testing.T) {
	t.Parallel()

	require.True(t, IsValidHandle("a_b_1"))
	require.False(t, IsValidHandle(""))
	require.False(t, IsValidHandle("has space"))
	require.False(t, IsValidHandle("sixteen_chars_xx"))
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"https url", "https://Acme.Example/pricing", "acme.example"},
		{"http url", "http://acme.example/", "acme.example"},
		{"bare host", "acme.example", "acme.example"},
		{"host with port", "acme.example:8080", "acme.example"},
		{"mirror instance", "https://nitter.net/acme", "nitter.net"},
		{"ip address", "10.0.0.7", "10.0.0.7"},
		{"garbage", "http://%", "unknown"},
		{"empty", "", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, enrichFetchesTotal)
	require.NotNil(t, enrichResolutionsTotal)
	require.NotNil(t, enrichMirrorFailuresTotal)
	require.NotNil(t, enrichActiveSessions)
}

func TestObserversLabelBySanitizedSite(t *testing.T) {
	Init()

	ObserveFetch("https://Widget.Example/about", "ok", 1200*time.Millisecond)
	require.Equal(t, float64(1),
		testutil.ToFloat64(enrichFetchesTotal.WithLabelValues("widget.example", "ok")))

	ObserveAntiBot("https://widget.example/", "cloudflare")
	require.Equal(t, float64(1),
		testutil.ToFloat64(enrichAntiBotTotal.WithLabelValues("widget.example", "cloudflare")))

	ObserveMirrorFailure("https://nitter.poast.org/acme")
	require.Equal(t, float64(1),
		testutil.ToFloat64(enrichMirrorFailuresTotal.WithLabelValues("nitter.poast.org")))
}

func TestActiveSessionGauge(t *testing.T) {
	Init()

	base := testutil.ToFloat64(enrichActiveSessions)
	IncActiveSessions()
	IncActiveSessions()
	require.Equal(t, base+2, testutil.ToFloat64(enrichActiveSessions))
	DecActiveSessions()
	DecActiveSessions()
	require.Equal(t, base, testutil.ToFloat64(enrichActiveSessions))
}

func FuzzSanitizeSite(f *testing.F) {
	for _, seed := range []string{"https://acme.example", "nitter.net/acme", "://"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		if SanitizeSite(raw) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", raw)
		}
	})
}

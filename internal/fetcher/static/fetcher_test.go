package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetcher_Get_ReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.UserAgent())
		w.Header().Set("X-Origin", "mirror")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})
	resp, err := f.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "mirror", resp.Headers.Get("X-Origin"))
	require.Equal(t, "<html>ok</html>", string(resp.Body))
	require.NotZero(t, resp.Duration)
}

func TestFetcher_Get_ExtraHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "en-US", r.Header.Get("Accept-Language"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Get(context.Background(), srv.URL, http.Header{"Accept-Language": {"en-US"}})
	require.NoError(t, err)
}

func TestFetcher_Get_ErrorStatusKeepsResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	resp, err := f.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFetcher_FinalURL_FollowsRedirects(t *testing.T) {
	t.Parallel()

	var target string
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
	mux.HandleFunc("/landing", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("here"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	target = srv.URL + "/landing"

	f := New(Config{Timeout: 5 * time.Second})
	final, ok := f.FinalURL(context.Background(), srv.URL+"/short")
	require.True(t, ok)
	require.Equal(t, target, final)
}

func TestFetcher_FinalURL_Unreachable(t *testing.T) {
	t.Parallel()

	f := New(Config{Timeout: time.Second})
	_, ok := f.FinalURL(context.Background(), "http://127.0.0.1:1/nope")
	require.False(t, ok)
}

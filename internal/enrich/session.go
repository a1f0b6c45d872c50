package enrich

import (
	"context"
	"net/http"
	"time"
)

// PageSession is one browser page bound to a single fetch attempt. A
// session is never reused; Close releases the page and its browser
// context on every exit path.
type PageSession interface {
	// Navigate drives the page to url, trying each wait condition in
	// order with stepTimeout per step. The first condition that yields a
	// response wins. An error means every step failed; the page may still
	// hold partial content.
	Navigate(ctx context.Context, url string, conds []WaitCondition, stepTimeout time.Duration) error

	// SettleDynamicContent scrolls to trigger lazy loading and briefly
	// waits for a social link or structured-data block to appear. Always
	// best effort.
	SettleDynamicContent(ctx context.Context)

	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]Cookie, error)

	// ConsoleMessages returns page console output captured so far.
	ConsoleMessages() []string

	// ResponseMeta returns the main document's status, headers and final
	// URL as observed on the wire, zero-valued when nothing was captured.
	ResponseMeta() (int, http.Header, string)

	Close()
}

// SessionFactory opens sessions with a fingerprint and request options
// applied.
type SessionFactory interface {
	Open(ctx context.Context, fp Fingerprint, req FetchRequest) (PageSession, error)
}

// Package static fetches pages over plain HTTP using gocolly. The
// resolver uses it for mirror instances, which serve static markup and do
// not need a browser, and for expanding shortened links.
package static

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher issues single GET requests through a cloned Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// Response is the outcome of one GET, with URL reflecting redirects.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Get fetches rawURL once. Extra headers are optional.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers http.Header) (Response, error) {
	var (
		result   Response
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result = Response{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
				Headers:    r.Headers.Clone(),
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			if result.StatusCode != 0 {
				return result, fmt.Errorf("static fetch status %d: %w", result.StatusCode, err)
			}
			return Response{}, fmt.Errorf("static fetch failed: %w", err)
		}
		if fetchErr != nil {
			if result.StatusCode != 0 {
				return result, fmt.Errorf("static fetch status %d: %w", result.StatusCode, fetchErr)
			}
			return Response{}, fmt.Errorf("static fetch failed: %w", fetchErr)
		}
		return result, nil
	}
}

// FinalURL resolves rawURL through its redirect chain and reports the
// landing address. Used to expand shortened links before classification.
func (f *Fetcher) FinalURL(ctx context.Context, rawURL string) (string, bool) {
	resp, err := f.Get(ctx, rawURL, nil)
	if err != nil || resp.URL == "" {
		return "", false
	}
	return resp.URL, true
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

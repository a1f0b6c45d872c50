// Package browser implements enrich.PageSession on top of chromedp and
// headless Chrome. One Factory owns the exec allocator; every Open yields
// an isolated browser context torn down by Close.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/metrics"
)

// stealthScript undoes the automation tell the AutomationControlled
// blink flag cannot reach: headless Chrome still reports
// navigator.webdriver as true on every new document.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Config controls the browser factory.
type Config struct {
	MaxParallel       int
	NavigationTimeout time.Duration
}

// Factory opens chromedp-backed sessions. Construct with New.
type Factory struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a Factory with a shared Chrome exec allocator.
func New(cfg Config) (*Factory, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Factory{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, killing any remaining browsers.
func (f *Factory) Close() {
	f.allocCancel()
}

// Open acquires a concurrency slot, spawns a browser context and applies
// the fingerprint, cookies and extra headers before any navigation.
func (f *Factory) Open(ctx context.Context, fp enrich.Fingerprint, req enrich.FetchRequest) (enrich.PageSession, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	s := &session{
		factory: f,
		ctx:     taskCtx,
		cancel:  taskCancel,
		meta:    newResponseMeta(),
	}
	chromedp.ListenTarget(taskCtx, s.handleEvent)
	metrics.IncActiveSessions()

	if err := chromedp.Run(taskCtx, f.setupAction(fp, req)); err != nil {
		s.Close()
		return nil, fmt.Errorf("session setup: %w", err)
	}
	return s, nil
}

func (f *Factory) setupAction(fp enrich.Fingerprint, req enrich.FetchRequest) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := runtime.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable runtime domain: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
			return fmt.Errorf("install webdriver patch: %w", err)
		}
		if err := emulation.SetUserAgentOverride(fp.UserAgent).
			WithAcceptLanguage(fp.Locale).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		mobile := fp.Device != enrich.DeviceDesktop
		if err := emulation.SetDeviceMetricsOverride(
			int64(fp.Viewport.Width), int64(fp.Viewport.Height), 1, mobile,
		).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		headers := withAcceptLanguage(req.Headers, fp.Locale)
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		if len(req.Cookies) > 0 {
			if err := storage.SetCookies(toCookieParams(req.Cookies, req.URL)).Do(ctx); err != nil {
				return fmt.Errorf("set cookies: %w", err)
			}
		}
		return nil
	})
}

func (f *Factory) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (f *Factory) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

type session struct {
	factory *Factory
	ctx     context.Context
	cancel  context.CancelFunc
	meta    *responseMeta

	mu      sync.Mutex
	console []string
	closed  bool
}

func (s *session) handleEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		s.meta.capture(e)
	case *network.EventRequestWillBeSent:
		s.meta.requestStarted()
	case *network.EventLoadingFinished:
		s.meta.requestFinished()
	case *network.EventLoadingFailed:
		s.meta.requestFinished()
	case *runtime.EventConsoleAPICalled:
		s.appendConsole(e)
	}
}

func (s *session) appendConsole(e *runtime.EventConsoleAPICalled) {
	var parts []string
	for _, arg := range e.Args {
		if len(arg.Value) > 0 {
			parts = append(parts, string(arg.Value))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	line := fmt.Sprintf("%s: %s", e.Type, strings.Join(parts, " "))
	s.mu.Lock()
	if len(s.console) < maxConsoleLines {
		s.console = append(s.console, line)
	}
	s.mu.Unlock()
}

const maxConsoleLines = 100

func (s *session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *session) Text(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

func (s *session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *session) Cookies(ctx context.Context) ([]enrich.Cookie, error) {
	var out []enrich.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return fmt.Errorf("get cookies: %w", err)
		}
		for _, c := range cookies {
			out = append(out, enrich.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	return out, err
}

func (s *session) ConsoleMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.console...)
}

func (s *session) ResponseMeta() (int, http.Header, string) {
	return s.meta.snapshot()
}

// Close is idempotent. It cancels the browser context and releases the
// factory's concurrency slot exactly once.
func (s *session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.factory.release()
	metrics.DecActiveSessions()
}

// run executes actions on the session's browser context while honoring
// the caller's deadline.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return enrich.ErrSessionClosed
	}

	done := make(chan error, 1)
	runCtx, cancel := mergeDeadline(s.ctx, ctx)
	defer cancel()
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		return <-done
	}
}

// mergeDeadline applies the caller context's deadline to the session
// context without tying their cancellation lifetimes together.
func mergeDeadline(sessionCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := callerCtx.Deadline(); ok {
		return context.WithDeadline(sessionCtx, deadline)
	}
	return context.WithCancel(sessionCtx)
}

type responseMeta struct {
	mu       sync.RWMutex
	status   int
	headers  http.Header
	url      string
	inflight int
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) requestStarted() {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()
}

func (m *responseMeta) requestFinished() {
	m.mu.Lock()
	if m.inflight > 0 {
		m.inflight--
	}
	m.mu.Unlock()
}

func (m *responseMeta) inflightCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inflight
}

func (m *responseMeta) snapshot() (int, http.Header, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, cloneHeader(m.headers), m.url
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	return dst
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}

func withAcceptLanguage(h http.Header, locale string) http.Header {
	out := cloneHeader(h)
	if out == nil {
		out = http.Header{}
	}
	if out.Get("Accept-Language") == "" && locale != "" {
		out.Set("Accept-Language", locale+",en;q=0.8")
	}
	return out
}

func toCookieParams(cookies []enrich.Cookie, rawURL string) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if p.Domain == "" {
			p.URL = rawURL
		}
		params = append(params, p)
	}
	return params
}

// Package engine orchestrates a complete fetch-and-extract attempt:
// fingerprint, session, navigation cascade, settle, anti-bot inspection,
// link extraction and teardown. Fetch never returns an error; failures
// surface inside the FetchResult.
package engine

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/beesyst/zen-crm-bot/internal/antibot"
	"github.com/beesyst/zen-crm-bot/internal/browser"
	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/extract"
	"github.com/beesyst/zen-crm-bot/internal/fingerprint"
	"github.com/beesyst/zen-crm-bot/internal/policy/retry"
)

// DefaultTimeout bounds a fetch attempt when the request does not set one.
const DefaultTimeout = 45 * time.Second

// stepTimeout bounds each navigation cascade step.
const stepTimeout = 15 * time.Second

// shellHTMLBytes is the rendered-size floor below which a page that
// yielded no social links is treated as an unhydrated client-side shell.
const shellHTMLBytes = 2048

// Engine runs fetch attempts. Construct with New.
type Engine struct {
	sessions     enrich.SessionFactory
	fingerprints *fingerprint.Synthesizer
	extractor    *extract.Extractor
	retry        retry.Policy
	log          *zap.Logger
}

// Options configures an Engine. Sessions is required; everything else has
// a usable default.
type Options struct {
	Sessions     enrich.SessionFactory
	Fingerprints *fingerprint.Synthesizer
	Extractor    *extract.Extractor
	Retry        retry.Policy
	Logger       *zap.Logger
}

// New builds an Engine from opts.
func New(opts Options) *Engine {
	if opts.Fingerprints == nil {
		opts.Fingerprints = fingerprint.New(time.Now().UnixNano())
	}
	if opts.Extractor == nil {
		opts.Extractor = &extract.Extractor{}
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		sessions:     opts.Sessions,
		fingerprints: opts.Fingerprints,
		extractor:    opts.Extractor,
		retry:        opts.Retry,
		log:          opts.Logger,
	}
}

// Fetch renders req.URL and extracts what the content flags ask for. The
// result is always populated; only session acquisition failures after all
// retries yield OK=false.
func (e *Engine) Fetch(ctx context.Context, req enrich.FetchRequest) enrich.FetchResult {
	start := time.Now()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var result enrich.FetchResult
	var shell bool
	policy := e.retry.WithAttempts(req.Retries + 1)
	_, err := policy.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, isShell, err := e.attempt(attemptCtx, req)
		if err != nil {
			return err
		}
		result = res
		shell = isShell
		return nil
	})
	if err != nil {
		e.log.Warn("fetch failed",
			zap.String("url", req.URL),
			zap.Error(err),
		)
		result = enrich.FetchResult{URL: req.URL, Error: err.Error()}
	} else if shell && req.WaitUntil != enrich.WaitNetworkIdle {
		result = e.refetchShell(ctx, req, timeout, result)
	}

	end := time.Now()
	result.Timing = enrich.Timing{Start: start, End: end, Duration: end.Sub(start)}
	return result
}

// refetchShell re-renders a page that came back as an unhydrated
// client-side shell, waiting for network idle so late-loading content
// gets a chance to mount. The stricter result wins only when it
// actually surfaced social links.
func (e *Engine) refetchShell(ctx context.Context, req enrich.FetchRequest, timeout time.Duration, prev enrich.FetchResult) enrich.FetchResult {
	e.log.Debug("shell page detected, refetching with network idle",
		zap.String("url", req.URL),
	)

	req.WaitUntil = enrich.WaitNetworkIdle
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, _, err := e.attempt(attemptCtx, req)
	if err != nil || !hasSocialBeyondWebsite(res) {
		return prev
	}
	return res
}

func hasSocialBeyondWebsite(res enrich.FetchResult) bool {
	if len(res.TwitterAll) > 0 {
		return true
	}
	for key := range res.Socials {
		if key != enrich.KeyWebsite {
			return true
		}
	}
	return false
}

// attempt runs one session lifecycle. The returned error means the
// session could not be acquired; navigation and extraction problems
// degrade into the result instead. The bool reports whether the page
// looked like an unhydrated shell: tiny rendered HTML and not a single
// social link beyond the website fallback.
func (e *Engine) attempt(ctx context.Context, req enrich.FetchRequest) (enrich.FetchResult, bool, error) {
	fp := e.fingerprints.Synthesize(req.Fingerprint)

	sess, err := e.sessions.Open(ctx, fp, req)
	if err != nil {
		return enrich.FetchResult{}, false, err
	}
	defer sess.Close()

	result := enrich.FetchResult{OK: true, URL: req.URL}

	navErr := sess.Navigate(ctx, req.URL, browser.Cascade(req.WaitUntil), stepTimeout)
	if navErr != nil {
		e.log.Debug("navigation cascade failed",
			zap.String("url", req.URL),
			zap.Error(navErr),
		)
		result.Error = navErr.Error()
	} else {
		sess.SettleDynamicContent(ctx)
	}

	status, headers, metaURL := sess.ResponseMeta()
	result.Status = status
	result.Headers = headers

	result.FinalURL = e.finalURL(ctx, sess, metaURL, req.URL)
	if title, err := sess.Title(ctx); err == nil {
		result.PageTitle = title
	}

	html := ""
	if navErr == nil {
		if h, err := sess.HTML(ctx); err == nil {
			html = h
		}
	}
	result.AntiBot = antibot.Inspect(status, headers, html)

	if req.NeedHTML {
		result.HTML = html
	}
	if req.NeedText && navErr == nil {
		if text, err := sess.Text(ctx); err == nil {
			result.Text = text
		}
	}
	if req.NeedSocials {
		e.extractSocials(&result, html)
	}

	if cookies, err := sess.Cookies(ctx); err == nil {
		result.Cookies = cookies
	}
	result.Console = sess.ConsoleMessages()

	shell := req.NeedSocials && navErr == nil &&
		len(html) < shellHTMLBytes && !hasSocialBeyondWebsite(result)
	return result, shell, nil
}

func (e *Engine) extractSocials(result *enrich.FetchResult, html string) {
	base, err := url.Parse(result.FinalURL)
	if err != nil {
		base = nil
	}
	res := e.extractor.Extract(html, base)
	if _, ok := res.Socials[enrich.KeyWebsite]; !ok && result.FinalURL != "" {
		res.Socials[enrich.KeyWebsite] = result.FinalURL
	}
	result.Socials = res.Socials
	result.TwitterAll = res.TwitterAll
}

func (e *Engine) finalURL(ctx context.Context, sess enrich.PageSession, metaURL, reqURL string) string {
	if loc, err := sess.Location(ctx); err == nil && loc != "" && loc != "about:blank" {
		return loc
	}
	if metaURL != "" {
		return metaURL
	}
	return reqURL
}

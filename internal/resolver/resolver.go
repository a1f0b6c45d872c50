// Package resolver turns a social handle into a SocialProfile by racing
// the network's primary site against mirror instances. Resolve never
// returns an error; terminal failures come back as a non-success profile
// carrying the attempted address and last error.
package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beesyst/zen-crm-bot/internal/antibot"
	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/fetcher/static"
	"github.com/beesyst/zen-crm-bot/internal/identity"
	"github.com/beesyst/zen-crm-bot/internal/metrics"
	"github.com/beesyst/zen-crm-bot/internal/policy/ratelimit"
	"github.com/beesyst/zen-crm-bot/internal/policy/retry"
)

// PageFetcher renders a page in a browser session.
type PageFetcher interface {
	Fetch(ctx context.Context, req enrich.FetchRequest) enrich.FetchResult
}

// StaticFetcher issues plain HTTP GETs, used for mirror instances.
type StaticFetcher interface {
	Get(ctx context.Context, rawURL string, headers http.Header) (static.Response, error)
}

// Options tunes one resolution request.
type Options struct {
	// PreferPrimary tries the primary site before the mirrors. Default is
	// mirror-first, which draws less attention.
	PreferPrimary bool
	Timeout       time.Duration
	Retries       int
}

// LinkCleaner canonicalizes a link found on a profile page: unwrapping
// shorteners, stripping trackers. An empty return drops the link.
type LinkCleaner interface {
	CleanURL(raw string) string
}

// Resolver resolves handles. Construct with New.
type Resolver struct {
	pages   PageFetcher
	static  StaticFetcher
	pool    *Pool
	limiter *ratelimit.Limiter
	cleaner LinkCleaner
	retry   retry.Policy
	log     *zap.Logger
	timeout time.Duration
}

// Config wires a Resolver. Pages, Static and Mirrors are required.
type Config struct {
	Pages   PageFetcher
	Static  StaticFetcher
	Mirrors *Pool
	// Limiter paces mirror requests per host. Nil means no pacing.
	Limiter *ratelimit.Limiter
	// Cleaner canonicalizes bio and website links. Nil keeps them raw.
	Cleaner LinkCleaner
	Retry   retry.Policy
	Logger  *zap.Logger
	Timeout time.Duration
}

// New builds a Resolver from cfg.
func New(cfg Config) *Resolver {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Resolver{
		pages:   cfg.Pages,
		static:  cfg.Static,
		pool:    cfg.Mirrors,
		limiter: cfg.Limiter,
		cleaner: cfg.Cleaner,
		retry:   cfg.Retry,
		log:     cfg.Logger,
		timeout: cfg.Timeout,
	}
}

// Resolve turns input, a handle or profile URL in any recognized form,
// into a SocialProfile. The result is always populated.
func (r *Resolver) Resolve(ctx context.Context, input string, opts Options) enrich.SocialProfile {
	handle := identity.Handle(input)
	if handle == "" {
		return enrich.SocialProfile{
			Handle: input,
			Error:  enrich.ErrNoHandle.Error(),
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sources := []enrich.Source{enrich.SourceMirror, enrich.SourcePrimary}
	if opts.PreferPrimary {
		sources = []enrich.Source{enrich.SourcePrimary, enrich.SourceMirror}
	}

	attempts := 0
	var lastErr error
	for i, source := range sources {
		var (
			profile enrich.SocialProfile
			tried   int
			err     error
		)
		switch source {
		case enrich.SourcePrimary:
			profile, tried, err = r.resolvePrimary(ctx, handle, opts.Retries)
		default:
			profile, tried, err = r.resolveMirror(ctx, handle)
		}
		attempts += tried
		if err == nil {
			r.cleanProfileLinks(&profile)
			profile.Attempts = attempts
			profile.Fallback = i > 0
			return profile
		}
		lastErr = err
		r.log.Debug("profile source failed",
			zap.String("handle", handle),
			zap.String("source", string(source)),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	return enrich.SocialProfile{
		Handle:   handle,
		URL:      identity.CanonicalURL(handle),
		Attempts: attempts,
		Error:    lastErr.Error(),
	}
}

// resolvePrimary renders the canonical profile page, treating login and
// consent landings as blocked attempts that are retried up to the bound.
func (r *Resolver) resolvePrimary(ctx context.Context, handle string, retries int) (enrich.SocialProfile, int, error) {
	var profile enrich.SocialProfile
	policy := r.retry.WithAttempts(retries + 1)
	policy.Retryable = func(error) bool { return true }

	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		res := r.pages.Fetch(ctx, enrich.FetchRequest{
			URL:       identity.CanonicalURL(handle),
			WaitUntil: enrich.WaitNetworkIdle,
			NeedHTML:  true,
		})
		if !res.OK {
			return fmt.Errorf("primary fetch: %s", res.Error)
		}
		if isBlockedLanding(res.FinalURL) {
			return fmt.Errorf("%w: landed on %s", enrich.ErrBlocked, res.FinalURL)
		}
		if res.AntiBot.Detected {
			return fmt.Errorf("%w: %s", enrich.ErrBlocked, res.AntiBot.Kind)
		}
		parsed, ok := parsePrimaryProfile(res.HTML, handle)
		if !ok {
			return fmt.Errorf("primary page had no profile data for %q", handle)
		}
		profile = parsed
		return nil
	})
	return profile, attempts, err
}

// resolveMirror walks healthy instances under the per-request bound. A
// failed instance goes into cooldown and is not retried within it.
func (r *Resolver) resolveMirror(ctx context.Context, handle string) (enrich.SocialProfile, int, error) {
	if r.pool == nil {
		return enrich.SocialProfile{}, 0, enrich.ErrMirrorsExhausted
	}

	tried := map[string]bool{}
	var lastErr error = enrich.ErrMirrorsExhausted
	for len(tried) < r.pool.MaxPerRequest() {
		if err := ctx.Err(); err != nil {
			return enrich.SocialProfile{}, len(tried), err
		}
		instance, ok := r.pool.Pick(tried)
		if !ok {
			break
		}
		tried[instance] = true

		profile, err := r.fetchMirror(ctx, instance, handle)
		if err != nil {
			lastErr = err
			r.pool.MarkFailed(instance)
			metrics.ObserveMirrorFailure(instance)
			r.log.Debug("mirror instance failed",
				zap.String("instance", instance),
				zap.String("handle", handle),
				zap.Error(err),
			)
			continue
		}
		return profile, len(tried), nil
	}
	return enrich.SocialProfile{}, len(tried), fmt.Errorf("%w: last: %v", enrich.ErrMirrorsExhausted, lastErr)
}

func (r *Resolver) fetchMirror(ctx context.Context, instance, handle string) (enrich.SocialProfile, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, instance); err != nil {
			return enrich.SocialProfile{}, err
		}
	}
	resp, err := r.static.Get(ctx, instance+"/"+handle, nil)
	if err != nil {
		return enrich.SocialProfile{}, err
	}
	if resp.StatusCode >= 400 {
		return enrich.SocialProfile{}, fmt.Errorf("mirror status %d", resp.StatusCode)
	}

	// Soft blocks keep status 200 and may carry stray card markup, so the
	// body is vetted before any parsing.
	body := string(resp.Body)
	if antibot.HasChallengeMarkup(body) {
		return enrich.SocialProfile{}, fmt.Errorf("%w: challenge markup on mirror page", enrich.ErrBlocked)
	}
	if !mentionsHandle(body, handle) {
		return enrich.SocialProfile{}, fmt.Errorf("mirror page does not mention %q", handle)
	}

	profile, ok := parseMirrorProfile(body, handle, instance)
	if !ok {
		return enrich.SocialProfile{}, fmt.Errorf("mirror page had no profile card for %q", handle)
	}
	return profile, nil
}

// cleanProfileLinks runs the website and bio links through the cleaner,
// dropping anything it rejects and collapsing duplicates. Without a
// cleaner the raw links are kept as parsed.
func (r *Resolver) cleanProfileLinks(profile *enrich.SocialProfile) {
	if r.cleaner == nil {
		return
	}
	if profile.Website != "" {
		profile.Website = r.cleaner.CleanURL(profile.Website)
	}
	if len(profile.Links) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(profile.Links))
	cleaned := profile.Links[:0]
	for _, raw := range profile.Links {
		link := r.cleaner.CleanURL(raw)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		cleaned = append(cleaned, link)
	}
	profile.Links = cleaned
}

// mentionsHandle reports whether the page refers to the requested handle
// in @-mention or path form.
func mentionsHandle(body, handle string) bool {
	lower := strings.ToLower(body)
	h := strings.ToLower(handle)
	return strings.Contains(lower, "@"+h) || strings.Contains(lower, "/"+h)
}

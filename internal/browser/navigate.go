package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
)

const (
	// Sustained quiet period that counts as network idle.
	networkIdleWindow = 500 * time.Millisecond
	// Bounded post-navigation quiescence wait.
	postNavQuiet = 2 * time.Second

	maxScrollRounds = 6
	scrollPause     = 350 * time.Millisecond

	contentSignalWait = 2500 * time.Millisecond
	contentSignalPoll = 250 * time.Millisecond
)

// Cascade returns the ordered wait conditions to try for a fetch. The
// caller's preference runs first, followed by progressively different
// readiness signals. WaitNone suppresses the fallbacks entirely.
func Cascade(pref enrich.WaitCondition) []enrich.WaitCondition {
	if pref == enrich.WaitNone {
		return []enrich.WaitCondition{enrich.WaitNone}
	}
	out := []enrich.WaitCondition{}
	seen := map[enrich.WaitCondition]bool{}
	for _, c := range []enrich.WaitCondition{
		pref, enrich.WaitLoad, enrich.WaitNetworkIdle, enrich.WaitCommit,
	} {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Navigate tries each condition in order, each under its own timeout. The
// first step that yields a response wins; a short quiescence wait follows
// regardless of which step succeeded.
func (s *session) Navigate(ctx context.Context, url string, conds []enrich.WaitCondition, stepTimeout time.Duration) error {
	if len(conds) == 0 {
		conds = Cascade("")
	}
	if stepTimeout <= 0 {
		stepTimeout = s.factory.cfg.NavigationTimeout
	}

	var lastErr error
	for _, cond := range conds {
		stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
		err := s.navigateOnce(stepCtx, url, cond)
		cancel()
		if err == nil {
			s.waitNetworkQuiet(ctx, postNavQuiet)
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("navigation cascade exhausted: %w", lastErr)
}

func (s *session) navigateOnce(ctx context.Context, url string, cond enrich.WaitCondition) error {
	switch cond {
	case enrich.WaitNone, enrich.WaitCommit:
		return s.run(ctx, navigateCommit(url))
	case enrich.WaitDOMContentLoaded:
		return s.run(ctx,
			navigateCommit(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	case enrich.WaitNetworkIdle:
		if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
			return err
		}
		return s.waitNetworkIdle(ctx)
	default: // WaitLoad
		return s.run(ctx, chromedp.Navigate(url))
	}
}

// navigateCommit starts navigation without waiting for any load event.
func navigateCommit(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		if errText != "" {
			return fmt.Errorf("navigate: %s", errText)
		}
		return nil
	})
}

// waitNetworkIdle blocks until no requests were in flight for a sustained
// window, or the context expires.
func (s *session) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var idleSince time.Time
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("network idle wait: %w", ctx.Err())
		case now := <-ticker.C:
			if s.meta.inflightCount() > 0 {
				idleSince = time.Time{}
				continue
			}
			if idleSince.IsZero() {
				idleSince = now
				continue
			}
			if now.Sub(idleSince) >= networkIdleWindow {
				return nil
			}
		}
	}
}

// waitNetworkQuiet is the best-effort variant: it returns after the idle
// window or the bound, whichever comes first, and never errors.
func (s *session) waitNetworkQuiet(ctx context.Context, bound time.Duration) {
	quietCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()
	_ = s.waitNetworkIdle(quietCtx)
}

// SettleDynamicContent scrolls to the bottom repeatedly to trigger lazy
// loading, stopping early once the page height stabilizes, then polls
// briefly for a recognizable social link or JSON-LD block.
func (s *session) SettleDynamicContent(ctx context.Context) {
	lastHeight := -1
	for round := 0; round < maxScrollRounds; round++ {
		var height int
		err := s.run(ctx, chromedp.Evaluate(
			`(() => { window.scrollTo(0, document.body.scrollHeight); return document.body.scrollHeight; })()`,
			&height,
		))
		if err != nil {
			return
		}
		if height == lastHeight {
			break
		}
		lastHeight = height

		select {
		case <-ctx.Done():
			return
		case <-time.After(scrollPause):
		}
	}

	s.waitContentSignal(ctx)
}

const contentSignalExpr = `(() => {
	if (document.querySelector('script[type="application/ld+json"]')) return true;
	const re = /twitter\.com|x\.com|t\.me|discord\.(gg|com)|github\.com|linkedin\.com|youtube\.com|medium\.com|reddit\.com/i;
	return Array.from(document.links).some(a => re.test(a.href));
})()`

func (s *session) waitContentSignal(ctx context.Context) {
	deadline := time.Now().Add(contentSignalWait)
	for time.Now().Before(deadline) {
		var found bool
		if err := s.run(ctx, chromedp.Evaluate(contentSignalExpr, &found)); err != nil {
			return
		}
		if found {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(contentSignalPoll):
		}
	}
}

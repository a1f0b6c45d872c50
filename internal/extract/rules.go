package extract

import (
	"net/url"
	"strings"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
)

// rule maps a recognized domain shape to a social-links slot. Rules are
// evaluated in table order and the first match wins for each URL.
type rule struct {
	key   enrich.SocialKey
	hosts []string
}

// The table order is fixed; changing it changes which slot an ambiguous
// URL lands in.
var rules = []rule{
	{enrich.KeyTwitter, []string{"twitter.com", "x.com"}},
	{enrich.KeyDiscord, []string{"discord.gg", "discord.com", "discordapp.com"}},
	{enrich.KeyTelegram, []string{"t.me", "telegram.me", "telegram.org"}},
	{enrich.KeyGitHub, []string{"github.com"}},
	{enrich.KeyYouTube, []string{"youtube.com", "youtu.be"}},
	{enrich.KeyLinkedIn, []string{"linkedin.com"}},
	{enrich.KeyMedium, []string{"medium.com"}},
	{enrich.KeyReddit, []string{"reddit.com"}},
	{enrich.KeyDocument, []string{"gitbook.io", "notion.site", "readthedocs.io"}},
}

// docPathPrefixes classify same-site links as documentation.
var docPathPrefixes = []string{"/docs", "/documentation", "/whitepaper"}

// docTextKeywords classify an anchor by its visible label when the URL
// itself carries no documentation signal.
var docTextKeywords = []string{"docs", "documentation", "developer"}

// shortLinkHosts are URL shorteners worth expanding before classification.
var shortLinkHosts = map[string]struct{}{
	"t.co": {}, "bit.ly": {}, "tinyurl.com": {}, "ow.ly": {},
	"buff.ly": {}, "t.ly": {}, "shorturl.at": {},
}

// redirectorPaths are path shapes that wrap the real target in a query
// parameter.
var redirectorPaths = map[string]struct{}{
	"out": {}, "redirect": {}, "go": {}, "r": {}, "link": {},
}

// redirectorKeys are checked in order; the first present parameter that
// parses as an absolute URL is taken as the wrapped target.
var redirectorKeys = []string{
	"url", "u", "to", "target", "redirect", "redirect_uri",
	"dest", "destination", "link",
}

// trackingParams are stripped from every stored link. Prefix entries end
// with an underscore and match any parameter carrying that prefix.
var trackingParams = []string{
	"utm_", "mc_", "fbclid", "gclid", "yclid", "ref", "source", "s",
}

// classify returns the slot for u, or "" when no rule matches.
func classify(u *url.URL) enrich.SocialKey {
	host := hostOf(u)
	if host == "" {
		return ""
	}
	for _, r := range rules {
		for _, h := range r.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return r.key
			}
		}
	}
	if strings.HasPrefix(host, "docs.") {
		return enrich.KeyDocument
	}
	for _, p := range docPathPrefixes {
		if u.Path == p || strings.HasPrefix(u.Path, p+"/") {
			return enrich.KeyDocument
		}
	}
	return ""
}

// IsShortLink reports whether u points at a known URL shortener.
func IsShortLink(u *url.URL) bool {
	_, ok := shortLinkHosts[hostOf(u)]
	return ok
}

// unwrapRedirector resolves /out?url=... style wrappers to their target.
// Non-wrapper URLs come back unchanged.
func unwrapRedirector(u *url.URL) *url.URL {
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := strings.ToLower(segs[len(segs)-1])
	if _, ok := redirectorPaths[last]; !ok {
		return u
	}
	q := u.Query()
	for _, key := range redirectorKeys {
		v := q.Get(key)
		if v == "" {
			continue
		}
		target, err := url.Parse(v)
		if err != nil || !target.IsAbs() {
			continue
		}
		return target
	}
	return u
}

// stripTracking removes campaign and click identifiers from the query.
func stripTracking(u *url.URL) *url.URL {
	if u.RawQuery == "" {
		return u
	}
	q := u.Query()
	for param := range q {
		if isTrackingParam(param) {
			q.Del(param)
		}
	}
	clean := *u
	clean.RawQuery = q.Encode()
	return &clean
}

func isTrackingParam(param string) bool {
	p := strings.ToLower(param)
	for _, t := range trackingParams {
		if strings.HasSuffix(t, "_") {
			if strings.HasPrefix(p, t) {
				return true
			}
		} else if p == t {
			return true
		}
	}
	return false
}

func hostOf(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// isTwitterHost reports whether u is under either Twitter/X domain form.
func isTwitterHost(u *url.URL) bool {
	h := hostOf(u)
	return h == "twitter.com" || h == "x.com" ||
		strings.HasSuffix(h, ".twitter.com") || strings.HasSuffix(h, ".x.com")
}

// Package identity canonicalizes social profile addresses.
//
// The only network with two live domain forms is Twitter/X; links under
// either form are collapsed to https://x.com/<handle>. Everything the
// normalizer cannot understand passes through unchanged.
package identity

import (
	"net/url"
	"regexp"
	"strings"
)

// CanonicalHost is the domain every normalized profile URL uses.
const CanonicalHost = "x.com"

var handleRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// systemPaths are first path segments that can never be a profile handle.
var systemPaths = map[string]struct{}{
	"home": {}, "explore": {}, "search": {}, "settings": {},
	"login": {}, "logout": {}, "signup": {}, "i": {}, "intent": {},
	"hashtag": {}, "share": {}, "privacy": {}, "tos": {}, "about": {},
	"notifications": {}, "messages": {}, "compose": {}, "account": {},
	"help": {}, "download": {}, "en": {}, "search-advanced": {},
	"status": {},
}

// profileHosts are the domain forms the normalizer recognizes.
var profileHosts = map[string]struct{}{
	"twitter.com": {}, "www.twitter.com": {},
	"x.com": {}, "www.x.com": {},
	"mobile.twitter.com": {}, "mobile.x.com": {},
}

// IsValidHandle reports whether s is a well-formed profile handle.
func IsValidHandle(s string) bool {
	return handleRe.MatchString(s)
}

// Handle extracts the profile handle from raw, which may be a bare handle
// (optionally @-prefixed), a profile URL under any recognized domain form,
// or an intent/login-redirect wrapper carrying the handle in a query
// parameter. Returns "" when no valid handle is present.
func Handle(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "@")
	if IsValidHandle(s) {
		return s
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := profileHosts[host]; !ok {
		return ""
	}

	// Follow-intent and login wrappers keep the handle in the query.
	if h := handleFromQuery(u); h != "" {
		return h
	}

	segs := splitPath(u.Path)
	if len(segs) == 0 {
		return ""
	}
	first := segs[0]
	if _, ok := systemPaths[strings.ToLower(first)]; ok {
		return ""
	}
	if !IsValidHandle(first) {
		return ""
	}
	return first
}

func handleFromQuery(u *url.URL) string {
	q := u.Query()
	for _, key := range []string{"screen_name", "user_id"} {
		if v := strings.TrimPrefix(q.Get(key), "@"); IsValidHandle(v) {
			return v
		}
	}
	// /login?redirect_after_login=%2Ffoo
	if v := q.Get("redirect_after_login"); v != "" {
		if h := strings.TrimPrefix(strings.Trim(v, "/"), "@"); IsValidHandle(h) {
			if _, sys := systemPaths[strings.ToLower(h)]; !sys {
				return h
			}
		}
	}
	return ""
}

// IsTwitterURL reports whether raw points at a recognized Twitter/X
// domain form.
func IsTwitterURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	_, ok := profileHosts[strings.ToLower(u.Hostname())]
	return ok
}

// CanonicalURL returns https://x.com/<handle> for the given handle. The
// handle is not validated.
func CanonicalURL(handle string) string {
	return "https://" + CanonicalHost + "/" + handle
}

// Normalize rewrites a profile URL under any recognized domain form to its
// canonical https://x.com/<handle> address, trimming everything beyond the
// handle segment. Input that does not resolve to a handle is returned
// unchanged.
func Normalize(raw string) string {
	if h := Handle(raw); h != "" {
		return CanonicalURL(h)
	}
	return raw
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

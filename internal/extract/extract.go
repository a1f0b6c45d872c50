// Package extract harvests social and service links from rendered pages.
//
// The pass walks anchors, data-* attributes, onclick literals and JSON-LD
// sameAs lists, classifies each candidate against a fixed rule table, and
// fills each social-links slot at most once. Per-candidate failures are
// swallowed so one bad link never aborts a pass.
package extract

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/identity"
)

var onclickURLRe = regexp.MustCompile(`https?://[^\s'")]+`)

var dataAttrs = []string{"data-href", "data-url", "data-target", "data-link"}

// Expander resolves a short link to its final address. A nil Expander
// leaves short links as-is.
type Expander func(raw string) (string, bool)

// Extractor runs the link-harvesting pass. The zero value is usable;
// Expand is optional.
type Extractor struct {
	Expand Expander
}

// Result is one extraction pass over a page.
type Result struct {
	Socials    enrich.SocialLinks
	TwitterAll []string
}

// Extract classifies every outbound link in html against the rule table.
// base resolves relative hrefs and may be nil.
func (e *Extractor) Extract(html string, base *url.URL) Result {
	res := Result{Socials: enrich.SocialLinks{}}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return res
	}

	twitterSet := map[string]struct{}{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		primary := e.resolve(href, base)

		if primary != nil && classify(primary) != "" {
			e.record(&res, twitterSet, primary)
			return
		}

		// The href went nowhere recognizable; data attributes and onclick
		// literals sometimes carry the real target.
		for _, attr := range dataAttrs {
			if v, ok := sel.Attr(attr); ok {
				if cand := e.resolve(v, base); cand != nil && classify(cand) != "" {
					e.record(&res, twitterSet, cand)
					return
				}
			}
		}
		if onclick, ok := sel.Attr("onclick"); ok {
			if m := onclickURLRe.FindString(onclick); m != "" {
				if cand := e.resolve(m, base); cand != nil && classify(cand) != "" {
					e.record(&res, twitterSet, cand)
					return
				}
			}
		}

		if primary == nil {
			return
		}
		if isTwitterHost(primary) {
			addTwitter(&res, twitterSet, primary)
		}
		// Low-confidence discord match on link text. The raw link is kept
		// for downstream resolution.
		if _, filled := res.Socials[enrich.KeyDiscord]; !filled && mentionsDiscord(sel) {
			res.Socials[enrich.KeyDiscord] = stripTracking(primary).String()
			return
		}
		// Same-site doc portals often hide behind labels like
		// "Documentation" on paths classify cannot recognize.
		if _, filled := res.Socials[enrich.KeyDocument]; !filled && mentionsDocs(sel) {
			res.Socials[enrich.KeyDocument] = stripTracking(primary).String()
		}
	})

	e.extractJSONLD(doc, base, &res, twitterSet)
	return res
}

// resolve turns a raw href into an absolute, unwrapped, cleaned URL.
// Unusable targets yield nil.
func (e *Extractor) resolve(raw string, base *url.URL) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil
	}
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return nil
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	u = unwrapRedirector(u)
	if e.Expand != nil && IsShortLink(u) {
		if expanded, ok := e.Expand(u.String()); ok {
			if eu, err := url.Parse(expanded); err == nil && eu.IsAbs() {
				u = eu
			}
		}
	}
	return stripTracking(u)
}

// CleanURL canonicalizes a standalone link through the same pipeline
// anchor hrefs go through: redirector unwrapping, short-link expansion,
// tracking-parameter removal. Unusable input yields "".
func (e *Extractor) CleanURL(raw string) string {
	u := e.resolve(raw, nil)
	if u == nil {
		return ""
	}
	return u.String()
}

// record files u under its slot unless that slot is already taken.
func (e *Extractor) record(res *Result, twitterSet map[string]struct{}, u *url.URL) {
	key := classify(u)
	if key == "" {
		return
	}
	if isTwitterHost(u) {
		addTwitter(res, twitterSet, u)
	}
	if _, filled := res.Socials[key]; filled {
		return
	}
	value := u.String()
	if key == enrich.KeyTwitter {
		value = identity.Normalize(value)
	}
	res.Socials[key] = value
}

func addTwitter(res *Result, seen map[string]struct{}, u *url.URL) {
	v := identity.Normalize(u.String())
	if _, dup := seen[v]; dup {
		return
	}
	seen[v] = struct{}{}
	res.TwitterAll = append(res.TwitterAll, v)
}

func mentionsDiscord(sel *goquery.Selection) bool {
	return labelContains(sel, "discord")
}

func mentionsDocs(sel *goquery.Selection) bool {
	return labelContains(sel, docTextKeywords...)
}

// labelContains scans the anchor's visible text, aria-label and title
// for any of the given keywords.
func labelContains(sel *goquery.Selection, keywords ...string) bool {
	texts := []string{sel.Text()}
	if v, ok := sel.Attr("aria-label"); ok {
		texts = append(texts, v)
	}
	if v, ok := sel.Attr("title"); ok {
		texts = append(texts, v)
	}
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// extractJSONLD walks embedded schema.org blocks for sameAs identity
// lists. Slots already filled by anchor scanning are left alone.
func (e *Extractor) extractJSONLD(doc *goquery.Document, base *url.URL, res *Result, twitterSet map[string]struct{}) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(sel.Text()), &raw); err != nil {
			return
		}
		for _, link := range sameAsLinks(raw) {
			if u := e.resolve(link, base); u != nil {
				e.record(res, twitterSet, u)
			}
		}
	})
}

// sameAsLinks collects sameAs values from a decoded JSON-LD document,
// following @graph nesting and top-level arrays.
func sameAsLinks(node any) []string {
	var out []string
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			out = append(out, sameAsLinks(item)...)
		}
	case map[string]any:
		switch same := v["sameAs"].(type) {
		case string:
			out = append(out, same)
		case []any:
			for _, s := range same {
				if str, ok := s.(string); ok {
					out = append(out, str)
				}
			}
		}
		if graph, ok := v["@graph"]; ok {
			out = append(out, sameAsLinks(graph)...)
		}
	}
	return out
}

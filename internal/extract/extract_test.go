package extract

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtract_FooterTwitterLink(t *testing.T) {
	t.Parallel()

	html := `<html><body><footer><a href="https://twitter.com/foo">Twitter</a></footer></body></html>`
	var e Extractor
	res := e.Extract(html, mustParse(t, "https://example.com/"))

	require.Equal(t, "https://x.com/foo", res.Socials[enrich.KeyTwitter])
	require.Len(t, res.Socials, 1)
	require.Equal(t, []string{"https://x.com/foo"}, res.TwitterAll)
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	html := `<a href="https://t.me/chan">tg</a><a href="https://github.com/org/repo">gh</a>`
	var e Extractor
	base := mustParse(t, "https://example.com/")
	first := e.Extract(html, base)
	second := e.Extract(html, base)
	require.Equal(t, first, second)
}

func TestExtract_RedirectorUnwrap(t *testing.T) {
	t.Parallel()

	html := `<a href="https://example.com/out?url=https%3A%2F%2Fdiscord.gg%2Fabc">chat</a>`
	var e Extractor
	res := e.Extract(html, mustParse(t, "https://example.com/"))
	require.Equal(t, "https://discord.gg/abc", res.Socials[enrich.KeyDiscord])
}

func TestExtract_FirstMatchKeepsSlot(t *testing.T) {
	t.Parallel()

	html := `<a href="https://x.com/first">a</a><a href="https://twitter.com/second">b</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://x.com/first", res.Socials[enrich.KeyTwitter])
	require.ElementsMatch(t, []string{"https://x.com/first", "https://x.com/second"}, res.TwitterAll)
}

func TestExtract_DataHrefFallback(t *testing.T) {
	t.Parallel()

	html := `<a href="/nowhere" data-href="https://www.youtube.com/@chan">yt</a>`
	var e Extractor
	res := e.Extract(html, mustParse(t, "https://example.com/"))
	require.Equal(t, "https://www.youtube.com/@chan", res.Socials[enrich.KeyYouTube])
}

func TestExtract_OnclickLiteral(t *testing.T) {
	t.Parallel()

	html := `<a href="#" onclick="window.open('https://www.linkedin.com/company/acme')">in</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://www.linkedin.com/company/acme", res.Socials[enrich.KeyLinkedIn])
}

func TestExtract_DiscordTextMatchLowConfidence(t *testing.T) {
	t.Parallel()

	html := `<a href="https://chat.example.com/invite" title="Join our Discord">community</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://chat.example.com/invite", res.Socials[enrich.KeyDiscord])
}

func TestExtract_JSONLDSameAs(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">
	{"@type":"Organization","sameAs":["https://github.com/acme","https://twitter.com/acme"]}
	</script>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://github.com/acme", res.Socials[enrich.KeyGitHub])
	require.Equal(t, "https://x.com/acme", res.Socials[enrich.KeyTwitter])
}

func TestExtract_JSONLDNeverOverwritesAnchors(t *testing.T) {
	t.Parallel()

	html := `<a href="https://github.com/anchor">gh</a>
	<script type="application/ld+json">{"sameAs":["https://github.com/jsonld"]}</script>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://github.com/anchor", res.Socials[enrich.KeyGitHub])
}

func TestExtract_SkipsUnusableTargets(t *testing.T) {
	t.Parallel()

	html := `<a href="">e</a><a href="#top">f</a><a href="javascript:void(0)">j</a>
	<a href="mailto:a@b.c">m</a><a href="tel:+123">t</a>`
	var e Extractor
	res := e.Extract(html, mustParse(t, "https://example.com/"))
	require.Empty(t, res.Socials)
}

func TestExtract_TrackingParamsStripped(t *testing.T) {
	t.Parallel()

	html := `<a href="https://medium.com/@acme?utm_source=site&utm_medium=footer">blog</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://medium.com/@acme", res.Socials[enrich.KeyMedium])
}

func TestExtract_ShortLinkExpansion(t *testing.T) {
	t.Parallel()

	e := Extractor{Expand: func(raw string) (string, bool) {
		require.Equal(t, "https://t.co/abc123", raw)
		return "https://x.com/foo", true
	}}
	res := e.Extract(`<a href="https://t.co/abc123">x</a>`, nil)
	require.Equal(t, "https://x.com/foo", res.Socials[enrich.KeyTwitter])
}

func TestExtract_DocsLink(t *testing.T) {
	t.Parallel()

	html := `<a href="https://docs.example.com/getting-started">docs</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://docs.example.com/getting-started", res.Socials[enrich.KeyDocument])
}

func TestExtract_DocsLabelFallback(t *testing.T) {
	t.Parallel()

	html := `<a href="/developers">Documentation</a>`
	var e Extractor
	res := e.Extract(html, mustParse(t, "https://acme.example/"))
	require.Equal(t, "https://acme.example/developers", res.Socials[enrich.KeyDocument])
}

func TestExtract_DocsLabelNeverStealsClassifiedSlot(t *testing.T) {
	t.Parallel()

	html := `<a href="https://github.com/acme">Developer docs</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://github.com/acme", res.Socials[enrich.KeyGitHub])
	require.Empty(t, res.Socials[enrich.KeyDocument])
}

func TestExtractor_CleanURL(t *testing.T) {
	t.Parallel()

	e := Extractor{Expand: func(raw string) (string, bool) {
		if raw == "https://t.co/abc" {
			return "https://acme.example/page", true
		}
		return "", false
	}}
	require.Equal(t, "https://acme.example/page", e.CleanURL("https://t.co/abc"))
	require.Equal(t, "https://acme.example/", e.CleanURL("https://acme.example/?utm_source=bio"))
	require.Empty(t, e.CleanURL("javascript:void(0)"))
	require.Empty(t, e.CleanURL("/relative-only"))
	require.Empty(t, e.CleanURL(""))
}

func TestExtract_MalformedJSONLDIgnored(t *testing.T) {
	t.Parallel()

	html := `<script type="application/ld+json">{not json</script><a href="https://t.me/c">t</a>`
	var e Extractor
	res := e.Extract(html, nil)
	require.Equal(t, "https://t.me/c", res.Socials[enrich.KeyTelegram])
}

func TestUnwrapRedirector_NonWrapperUnchanged(t *testing.T) {
	t.Parallel()

	u := mustParse(t, "https://example.com/blog/post?id=1")
	require.Equal(t, u, unwrapRedirector(u))
}

func TestClassify_RuleOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t, enrich.KeyTwitter, classify(mustParse(t, "https://mobile.twitter.com/foo")))
	require.Equal(t, enrich.KeyDocument, classify(mustParse(t, "https://acme.gitbook.io/handbook")))
	require.Equal(t, enrich.KeyDocument, classify(mustParse(t, "https://example.com/docs/intro")))
	require.Equal(t, enrich.SocialKey(""), classify(mustParse(t, "https://example.com/pricing")))
}

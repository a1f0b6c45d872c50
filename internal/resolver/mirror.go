package resolver

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/identity"
)

// maxTweets bounds how many recent posts are captured per profile.
const maxTweets = 5

// Timestamp format used in mirror tweet date tooltips.
const mirrorTimeLayout = "Jan 2, 2006 · 3:04 PM UTC"

// parseMirrorProfile extracts a profile from mirror markup. instanceURL
// resolves relative asset and tweet links. A profile without a name and
// handle is considered empty and reported via ok=false.
func parseMirrorProfile(html, handle, instanceURL string) (enrich.SocialProfile, bool) {
	profile := enrich.SocialProfile{
		Handle: handle,
		URL:    identity.CanonicalURL(handle),
		Source: enrich.SourceMirror,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return profile, false
	}

	card := doc.Find(".profile-card")
	profile.Name = strings.TrimSpace(card.Find(".profile-card-fullname").First().Text())
	if username := strings.TrimSpace(card.Find(".profile-card-username").First().Text()); username != "" {
		if h := identity.Handle(username); h != "" {
			profile.Handle = h
			profile.URL = identity.CanonicalURL(h)
		}
	}
	profile.Bio = strings.TrimSpace(card.Find(".profile-bio").First().Text())
	profile.Location = strings.TrimSpace(card.Find(".profile-location").First().Text())

	if site, ok := card.Find(".profile-website a").First().Attr("href"); ok {
		profile.Website = strings.TrimSpace(site)
	}

	// Bio and website anchors are kept raw here; Resolve runs them
	// through the link cleaner so shorteners and trackers unwrap once.
	card.Find(".profile-bio a, .profile-website a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok {
			profile.Links = append(profile.Links, strings.TrimSpace(href))
		}
	})

	// Mirrors render a verification badge only for verified accounts, so
	// its absence means unknown rather than false.
	if card.Find(".icon-ok.verified-icon, .verified-icon").Length() > 0 {
		verified := true
		profile.Verified = &verified
	}

	if src, ok := card.Find(".profile-card-avatar img").First().Attr("src"); ok {
		profile.Avatar = upscaleAvatar(decodeMirrorImage(src, instanceURL))
	} else if href, ok := card.Find("a.profile-card-avatar").First().Attr("href"); ok {
		profile.Avatar = upscaleAvatar(decodeMirrorImage(href, instanceURL))
	}
	if src, ok := doc.Find(".profile-banner img").First().Attr("src"); ok {
		profile.Banner = decodeMirrorImage(src, instanceURL)
	}

	stats := doc.Find(".profile-statlist")
	profile.Posts = statValue(stats, ".posts")
	profile.Following = statValue(stats, ".following")
	profile.Followers = statValue(stats, ".followers")

	profile.Tweets = parseMirrorTweets(doc, profile.Handle)

	if card.Length() == 0 || profile.Name == "" {
		return profile, false
	}
	profile.OK = true
	return profile, true
}

func statValue(stats *goquery.Selection, class string) *int64 {
	text := strings.TrimSpace(stats.Find(class + " .profile-stat-num").First().Text())
	return ParseCounter(text)
}

func parseMirrorTweets(doc *goquery.Document, handle string) []enrich.Tweet {
	var tweets []enrich.Tweet
	doc.Find(".timeline-item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Find(".tweet-content").First().Text())
		if text == "" {
			return true
		}
		tweet := enrich.Tweet{Text: text}
		if href, ok := sel.Find("a.tweet-link").First().Attr("href"); ok {
			tweet.ID = tweetIDFromPath(href)
			if tweet.ID != "" {
				tweet.URL = identity.CanonicalURL(handle) + "/status/" + tweet.ID
			}
		}
		if title, ok := sel.Find(".tweet-date a").First().Attr("title"); ok {
			if ts, err := time.Parse(mirrorTimeLayout, title); err == nil {
				tweet.Time = ts
			}
		}
		tweets = append(tweets, tweet)
		return len(tweets) < maxTweets
	})
	return tweets
}

// tweetIDFromPath pulls the status ID out of /user/status/123#m shapes.
func tweetIDFromPath(p string) string {
	p = strings.SplitN(p, "#", 2)[0]
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		if s == "status" && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	return ""
}

// decodeMirrorImage unwraps /pic/<escaped-origin-url> proxy paths back to
// the origin image address.
func decodeMirrorImage(src, instanceURL string) string {
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src
	}
	if rest, ok := strings.CutPrefix(src, "/pic/"); ok {
		decoded, err := url.PathUnescape(rest)
		if err != nil {
			decoded = rest
		}
		decoded = strings.TrimPrefix(decoded, "https://")
		decoded = strings.TrimPrefix(decoded, "http://")
		return "https://" + decoded
	}
	return strings.TrimRight(instanceURL, "/") + "/" + strings.TrimLeft(src, "/")
}

// upscaleAvatar swaps the small avatar variant for the 400x400 one.
func upscaleAvatar(src string) string {
	for _, variant := range []string{"_normal", "_bigger", "_mini", "_200x200"} {
		if strings.Contains(src, variant+".") {
			return strings.Replace(src, variant+".", "_400x400.", 1)
		}
	}
	return src
}

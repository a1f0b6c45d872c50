package resolver

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
	"github.com/beesyst/zen-crm-bot/internal/identity"
)

// blockedPathRe matches landing addresses that mean the primary site
// refused to show the profile.
var blockedPathRe = regexp.MustCompile(`(?i)/(login|logout|account/access|account/suspended|i/flow|consent)`)

// ogTitleRe captures "Display Name (@handle)" from the og:title tag.
var ogTitleRe = regexp.MustCompile(`^(.*?)\s*\(@([A-Za-z0-9_]{1,15})\)`)

// isBlockedLanding reports whether the fetch landed on a login, consent
// or suspension interstitial instead of the profile.
func isBlockedLanding(finalURL string) bool {
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return blockedPathRe.MatchString(u.Path)
}

// parsePrimaryProfile extracts a profile from the rendered primary-site
// page. Open Graph tags give the basics; an embedded JSON-LD ProfilePage
// block, when present, fills counters and richer fields.
func parsePrimaryProfile(html, handle string) (enrich.SocialProfile, bool) {
	profile := enrich.SocialProfile{
		Handle: handle,
		URL:    identity.CanonicalURL(handle),
		Source: enrich.SourcePrimary,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return profile, false
	}

	if title, ok := metaContent(doc, "og:title"); ok {
		if m := ogTitleRe.FindStringSubmatch(title); m != nil {
			profile.Name = strings.TrimSpace(m[1])
			if identity.IsValidHandle(m[2]) {
				profile.Handle = m[2]
				profile.URL = identity.CanonicalURL(m[2])
			}
		}
	}
	if desc, ok := metaContent(doc, "og:description"); ok {
		profile.Bio = strings.TrimSpace(desc)
	}
	if img, ok := metaContent(doc, "og:image"); ok {
		profile.Avatar = upscaleAvatar(img)
	}

	applyProfileJSONLD(doc, &profile)
	profile.Tweets = parsePrimaryTweets(doc, profile.Handle)

	if profile.Name == "" && profile.Bio == "" {
		return profile, false
	}
	profile.OK = true
	return profile, true
}

// parsePrimaryTweets walks the rendered timeline articles. Each post
// article carries a /status/ permalink and a time element; retweets and
// pinned duplicates collapse through the ID set.
func parsePrimaryTweets(doc *goquery.Document, handle string) []enrich.Tweet {
	var tweets []enrich.Tweet
	seen := make(map[string]struct{})
	doc.Find("article").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var id string
		sel.Find(`a[href*="/status/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			id = tweetIDFromPath(href)
			return id == ""
		})
		if id == "" {
			return true
		}
		if _, dup := seen[id]; dup {
			return true
		}

		tweet := enrich.Tweet{
			ID:  id,
			URL: identity.CanonicalURL(handle) + "/status/" + id,
		}
		tweet.Text = strings.TrimSpace(sel.Find(`div[data-testid="tweetText"]`).First().Text())
		if tweet.Text == "" {
			tweet.Text = strings.TrimSpace(sel.Text())
		}
		if dt, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
			if ts, err := time.Parse(time.RFC3339, dt); err == nil {
				tweet.Time = ts
			}
		}

		seen[id] = struct{}{}
		tweets = append(tweets, tweet)
		return len(tweets) < maxTweets
	})
	return tweets
}

func metaContent(doc *goquery.Document, property string) (string, bool) {
	sel := doc.Find(`meta[property="` + property + `"], meta[name="` + property + `"]`).First()
	return sel.Attr("content")
}

// profilePage is the subset of the embedded ProfilePage schema the
// resolver reads.
type profilePage struct {
	Type       string        `json:"@type"`
	MainEntity profileEntity `json:"mainEntity"`
	Author     profileEntity `json:"author"`
}

type profileEntity struct {
	Name           string   `json:"name"`
	AdditionalName string   `json:"additionalName"`
	Description    string   `json:"description"`
	URL            string   `json:"url"`
	SameAs         []string `json:"sameAs"`
	HomeLocation   struct {
		Name string `json:"name"`
	} `json:"homeLocation"`
	Image struct {
		ContentURL string `json:"contentUrl"`
	} `json:"image"`
	InteractionStatistic []struct {
		Name                 string `json:"name"`
		InteractionType      string `json:"interactionType"`
		UserInteractionCount int64  `json:"userInteractionCount"`
	} `json:"interactionStatistic"`
}

func applyProfileJSONLD(doc *goquery.Document, profile *enrich.SocialProfile) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var page profilePage
		if err := json.Unmarshal([]byte(sel.Text()), &page); err != nil {
			return true
		}
		if !strings.EqualFold(page.Type, "ProfilePage") {
			return true
		}
		entity := page.MainEntity
		if entity.Name == "" && entity.AdditionalName == "" {
			entity = page.Author
		}
		if entity.Name != "" {
			profile.Name = entity.Name
		}
		if identity.IsValidHandle(entity.AdditionalName) {
			profile.Handle = entity.AdditionalName
			profile.URL = identity.CanonicalURL(entity.AdditionalName)
		}
		if entity.Description != "" {
			profile.Bio = entity.Description
		}
		if entity.HomeLocation.Name != "" {
			profile.Location = entity.HomeLocation.Name
		}
		if entity.Image.ContentURL != "" {
			profile.Avatar = upscaleAvatar(entity.Image.ContentURL)
		}
		if entity.URL != "" && !identity.IsTwitterURL(entity.URL) {
			profile.Website = entity.URL
			profile.Links = append(profile.Links, entity.URL)
		}
		for _, raw := range entity.SameAs {
			if raw != "" && !identity.IsTwitterURL(raw) {
				profile.Links = append(profile.Links, raw)
			}
		}
		for _, stat := range entity.InteractionStatistic {
			count := stat.UserInteractionCount
			kind := strings.ToLower(stat.Name + " " + stat.InteractionType)
			switch {
			case strings.Contains(kind, "follow") && !strings.Contains(kind, "friend"):
				profile.Followers = &count
			case strings.Contains(kind, "friend"):
				profile.Following = &count
			case strings.Contains(kind, "tweet") || strings.Contains(kind, "post"):
				profile.Posts = &count
			}
		}
		return false
	})
}

package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
)

const mirrorProfileHTML = `
<div class="profile-card">
  <a class="profile-card-avatar" href="/pic/pbs.twimg.com%2Fprofile_images%2F123%2Favatar_normal.jpg">
    <img src="/pic/pbs.twimg.com%2Fprofile_images%2F123%2Favatar_normal.jpg">
  </a>
  <div class="profile-card-fullname">Acme Labs <span class="icon-ok verified-icon"></span></div>
  <div class="profile-card-username">@acmelabs</div>
  <div class="profile-bio">Building widgets since 2019.</div>
  <div class="profile-location">Berlin</div>
  <div class="profile-website"><a href="https://acme.example">acme.example</a></div>
</div>
<div class="profile-banner"><img src="/pic/pbs.twimg.com%2Fprofile_banners%2F123%2Fbanner.jpg"></div>
<ul class="profile-statlist">
  <li class="posts"><span class="profile-stat-num">1,234</span></li>
  <li class="following"><span class="profile-stat-num">56</span></li>
  <li class="followers"><span class="profile-stat-num">7,8 тыс.</span></li>
</ul>
<div class="timeline-item">
  <a class="tweet-link" href="/acmelabs/status/111#m"></a>
  <span class="tweet-date"><a title="Aug 20, 2026 · 9:15 AM UTC"></a></span>
  <div class="tweet-content">Shipping v2 today.</div>
</div>
<div class="timeline-item">
  <a class="tweet-link" href="/acmelabs/status/110#m"></a>
  <div class="tweet-content">Hiring Go engineers.</div>
</div>`

func TestParseMirrorProfile_FullCard(t *testing.T) {
	t.Parallel()

	profile, ok := parseMirrorProfile(mirrorProfileHTML, "acmelabs", "https://mirror.example")
	require.True(t, ok)
	require.True(t, profile.OK)
	require.Equal(t, enrich.SourceMirror, profile.Source)
	require.Equal(t, "acmelabs", profile.Handle)
	require.Equal(t, "https://x.com/acmelabs", profile.URL)
	require.Equal(t, "Acme Labs", profile.Name)
	require.Equal(t, "Building widgets since 2019.", profile.Bio)
	require.Equal(t, "Berlin", profile.Location)
	require.Equal(t, "https://acme.example", profile.Website)

	require.NotNil(t, profile.Verified)
	require.True(t, *profile.Verified)

	require.Equal(t, "https://pbs.twimg.com/profile_images/123/avatar_400x400.jpg", profile.Avatar)
	require.Equal(t, "https://pbs.twimg.com/profile_banners/123/banner.jpg", profile.Banner)

	require.NotNil(t, profile.Posts)
	require.EqualValues(t, 1234, *profile.Posts)
	require.NotNil(t, profile.Following)
	require.EqualValues(t, 56, *profile.Following)
	require.NotNil(t, profile.Followers)
	require.EqualValues(t, 7800, *profile.Followers)

	require.Len(t, profile.Tweets, 2)
	require.Equal(t, "111", profile.Tweets[0].ID)
	require.Equal(t, "https://x.com/acmelabs/status/111", profile.Tweets[0].URL)
	require.Equal(t, "Shipping v2 today.", profile.Tweets[0].Text)
	require.Equal(t, time.Date(2026, 8, 20, 9, 15, 0, 0, time.UTC), profile.Tweets[0].Time)
}

func TestParseMirrorProfile_CollectsBioAndWebsiteLinks(t *testing.T) {
	t.Parallel()

	html := `<div class="profile-card">
	  <div class="profile-card-fullname">Acme Labs</div>
	  <div class="profile-bio">Widgets. <a href="https://t.co/abc123">t.co/abc123</a>
	    and <a href="https://github.com/acme?utm_source=bio">github</a></div>
	  <div class="profile-website"><a href="https://acme.example">acme.example</a></div>
	</div>`
	profile, ok := parseMirrorProfile(html, "acmelabs", "https://mirror.example")
	require.True(t, ok)
	require.Equal(t, "https://acme.example", profile.Website)
	require.Equal(t, []string{
		"https://t.co/abc123",
		"https://github.com/acme?utm_source=bio",
		"https://acme.example",
	}, profile.Links)
}

func TestParseMirrorProfile_NoCard(t *testing.T) {
	t.Parallel()

	profile, ok := parseMirrorProfile("<html><body>instance busy</body></html>", "foo", "https://mirror.example")
	require.False(t, ok)
	require.False(t, profile.OK)
	require.Equal(t, "https://x.com/foo", profile.URL)
	require.Nil(t, profile.Followers)
}

func TestParseMirrorProfile_UnverifiedIsUnknown(t *testing.T) {
	t.Parallel()

	html := `<div class="profile-card"><div class="profile-card-fullname">Plain</div></div>`
	profile, ok := parseMirrorProfile(html, "plain", "https://mirror.example")
	require.True(t, ok)
	require.Nil(t, profile.Verified)
}

func TestParseMirrorProfile_TweetCap(t *testing.T) {
	t.Parallel()

	html := `<div class="profile-card"><div class="profile-card-fullname">Busy</div></div>`
	for i := 0; i < 8; i++ {
		html += `<div class="timeline-item"><div class="tweet-content">post</div></div>`
	}
	profile, ok := parseMirrorProfile(html, "busy", "https://mirror.example")
	require.True(t, ok)
	require.Len(t, profile.Tweets, maxTweets)
}

func TestDecodeMirrorImage(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"https://pbs.twimg.com/profile_images/1/a.jpg",
		decodeMirrorImage("/pic/pbs.twimg.com%2Fprofile_images%2F1%2Fa.jpg", "https://mirror.example"))
	require.Equal(t,
		"https://cdn.example/a.png",
		decodeMirrorImage("https://cdn.example/a.png", "https://mirror.example"))
	require.Equal(t,
		"https://mirror.example/static/a.png",
		decodeMirrorImage("static/a.png", "https://mirror.example"))
	require.Empty(t, decodeMirrorImage("", "https://mirror.example"))
}

func TestUpscaleAvatar(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://pbs.twimg.com/a_400x400.jpg",
		upscaleAvatar("https://pbs.twimg.com/a_normal.jpg"))
	require.Equal(t, "https://pbs.twimg.com/a_400x400.png",
		upscaleAvatar("https://pbs.twimg.com/a_200x200.png"))
	require.Equal(t, "https://pbs.twimg.com/a.jpg",
		upscaleAvatar("https://pbs.twimg.com/a.jpg"))
}

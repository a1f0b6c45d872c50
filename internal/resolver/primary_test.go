package resolver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const primaryProfileHTML = `<html><head>
<meta property="og:title" content="Acme Labs (@acmelabs) / X">
<meta property="og:description" content="Building widgets since 2019.">
<meta property="og:image" content="https://pbs.twimg.com/profile_images/123/avatar_normal.jpg">
<script type="application/ld+json">
{
  "@type": "ProfilePage",
  "mainEntity": {
    "name": "Acme Labs",
    "additionalName": "acmelabs",
    "description": "Building widgets since 2019.",
    "url": "https://acme.example",
    "sameAs": ["https://github.com/acme", "https://x.com/acmelabs"],
    "homeLocation": {"name": "Berlin"},
    "image": {"contentUrl": "https://pbs.twimg.com/profile_images/123/avatar_normal.jpg"},
    "interactionStatistic": [
      {"name": "Follows", "userInteractionCount": 7800},
      {"name": "Friends", "userInteractionCount": 56},
      {"name": "Tweets", "userInteractionCount": 1234}
    ]
  }
}
</script>
</head><body></body></html>`

func TestParsePrimaryProfile_Full(t *testing.T) {
	t.Parallel()

	profile, ok := parsePrimaryProfile(primaryProfileHTML, "acmelabs")
	require.True(t, ok)
	require.Equal(t, "Acme Labs", profile.Name)
	require.Equal(t, "acmelabs", profile.Handle)
	require.Equal(t, "https://x.com/acmelabs", profile.URL)
	require.Equal(t, "Building widgets since 2019.", profile.Bio)
	require.Equal(t, "Berlin", profile.Location)
	require.Equal(t, "https://pbs.twimg.com/profile_images/123/avatar_400x400.jpg", profile.Avatar)
	require.Equal(t, "https://acme.example", profile.Website)
	require.Equal(t, []string{"https://acme.example", "https://github.com/acme"}, profile.Links)

	require.NotNil(t, profile.Followers)
	require.EqualValues(t, 7800, *profile.Followers)
	require.NotNil(t, profile.Following)
	require.EqualValues(t, 56, *profile.Following)
	require.NotNil(t, profile.Posts)
	require.EqualValues(t, 1234, *profile.Posts)
}

func TestParsePrimaryProfile_OpenGraphOnly(t *testing.T) {
	t.Parallel()

	html := `<meta property="og:title" content="Solo Dev (@solodev) / X">
	<meta property="og:description" content="One person shop.">`
	profile, ok := parsePrimaryProfile(html, "solodev")
	require.True(t, ok)
	require.Equal(t, "Solo Dev", profile.Name)
	require.Equal(t, "One person shop.", profile.Bio)
	require.Nil(t, profile.Followers)
}

const primaryTimelineHTML = `<html><head>
<meta property="og:title" content="Acme Labs (@acmelabs) / X">
</head><body>
<article>
  <a href="/acmelabs/status/111">perma</a>
  <time datetime="2024-05-01T12:00:00.000Z">May 1</time>
  <div data-testid="tweetText">Shipped widgets v2 today.</div>
</article>
<article>
  <a href="/acmelabs">profile link</a>
  <a href="/acmelabs/status/222">perma</a>
  <time datetime="2024-04-28T09:30:00.000Z">Apr 28</time>
  <div data-testid="tweetText">Hiring Go engineers.</div>
</article>
<article>
  <a href="/acmelabs/status/111">pinned duplicate</a>
  <div data-testid="tweetText">Shipped widgets v2 today.</div>
</article>
<article>
  <div data-testid="tweetText">promo card without a permalink</div>
</article>
</body></html>`

func TestParsePrimaryProfile_Timeline(t *testing.T) {
	t.Parallel()

	profile, ok := parsePrimaryProfile(primaryTimelineHTML, "acmelabs")
	require.True(t, ok)
	require.Len(t, profile.Tweets, 2)

	first := profile.Tweets[0]
	require.Equal(t, "111", first.ID)
	require.Equal(t, "https://x.com/acmelabs/status/111", first.URL)
	require.Equal(t, "Shipped widgets v2 today.", first.Text)
	require.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), first.Time.UTC())

	require.Equal(t, "222", profile.Tweets[1].ID)
	require.Equal(t, "Hiring Go engineers.", profile.Tweets[1].Text)
}

func TestParsePrimaryProfile_EmptyPage(t *testing.T) {
	t.Parallel()

	profile, ok := parsePrimaryProfile("<html><body></body></html>", "ghost")
	require.False(t, ok)
	require.False(t, profile.OK)
	require.Equal(t, "https://x.com/ghost", profile.URL)
}

func TestIsBlockedLanding(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"https://x.com/login",
		"https://x.com/i/flow/login",
		"https://x.com/account/access",
		"https://x.com/account/suspended",
	} {
		require.True(t, isBlockedLanding(in), "input %q", in)
	}
	require.False(t, isBlockedLanding("https://x.com/acmelabs"))
	require.False(t, isBlockedLanding(""))
}

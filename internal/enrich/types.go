// Package enrich defines core types shared across the enrichment subsystems.
package enrich

import (
	"net/http"
	"time"
)

// WaitCondition names a navigation completion signal.
type WaitCondition string

// Wait conditions accepted by FetchRequest.WaitUntil.
const (
	WaitLoad             WaitCondition = "load"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitNetworkIdle      WaitCondition = "networkidle"
	WaitCommit           WaitCondition = "commit"
	WaitNone             WaitCondition = "none"
)

// DeviceClass selects the device family a fingerprint emulates.
type DeviceClass string

// Device classes accepted by FingerprintSpec.Device.
const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
)

// OSClass selects the operating system a fingerprint claims.
type OSClass string

// OS classes accepted by FingerprintSpec.OS.
const (
	OSWindows OSClass = "windows"
	OSMacOS   OSClass = "macos"
	OSLinux   OSClass = "linux"
	OSAndroid OSClass = "android"
	OSIOS     OSClass = "ios"
)

// Viewport is a browser viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FingerprintSpec constrains fingerprint synthesis. Zero-value fields are
// filled with coherent defaults.
type FingerprintSpec struct {
	Device    DeviceClass `json:"device,omitempty"`
	OS        OSClass     `json:"os,omitempty"`
	Locales   []string    `json:"locales,omitempty"`
	Viewport  *Viewport   `json:"viewport,omitempty"`
	UserAgent string      `json:"user_agent,omitempty"`
}

// Fingerprint is a fully resolved browser identity applied to a session.
type Fingerprint struct {
	UserAgent string      `json:"user_agent"`
	Viewport  Viewport    `json:"viewport"`
	Locale    string      `json:"locale"`
	Device    DeviceClass `json:"device"`
	OS        OSClass     `json:"os"`
}

// Cookie is the subset of cookie attributes carried across a session.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty"`
}

// FetchRequest captures everything needed to fetch and extract a page.
type FetchRequest struct {
	URL         string           `json:"url"`
	WaitUntil   WaitCondition    `json:"wait_until,omitempty"`
	Timeout     time.Duration    `json:"timeout,omitempty"`
	Fingerprint *FingerprintSpec `json:"fingerprint,omitempty"`
	Headers     http.Header      `json:"headers,omitempty"`
	Cookies     []Cookie         `json:"cookies,omitempty"`
	Retries     int              `json:"retries,omitempty"`
	NeedHTML    bool             `json:"need_html,omitempty"`
	NeedText    bool             `json:"need_text,omitempty"`
	NeedSocials bool             `json:"need_socials,omitempty"`
}

// Timing records when a fetch started and finished.
type Timing struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
}

// AntiBotVerdict reports whether a response looks like an anti-bot block.
type AntiBotVerdict struct {
	Detected bool   `json:"detected"`
	Kind     string `json:"kind,omitempty"`
	Server   string `json:"server,omitempty"`
}

// SocialKey identifies a social or document link slot on a lead card.
type SocialKey string

// Social link slots recognized by the extractor.
const (
	KeyWebsite  SocialKey = "website"
	KeyDocument SocialKey = "document"
	KeyTwitter  SocialKey = "twitter"
	KeyDiscord  SocialKey = "discord"
	KeyTelegram SocialKey = "telegram"
	KeyGitHub   SocialKey = "github"
	KeyYouTube  SocialKey = "youtube"
	KeyLinkedIn SocialKey = "linkedin"
	KeyMedium   SocialKey = "medium"
	KeyReddit   SocialKey = "reddit"
)

// SocialLinks maps each detected slot to its canonical URL.
type SocialLinks map[SocialKey]string

// FetchResult is the outcome of a page fetch. It is always populated; a
// failed fetch sets OK to false and Error to the reason.
type FetchResult struct {
	OK         bool           `json:"ok"`
	URL        string         `json:"url"`
	FinalURL   string         `json:"final_url,omitempty"`
	Status     int            `json:"status,omitempty"`
	PageTitle  string         `json:"page_title,omitempty"`
	HTML       string         `json:"html,omitempty"`
	Text       string         `json:"text,omitempty"`
	Headers    http.Header    `json:"headers,omitempty"`
	Cookies    []Cookie       `json:"cookies,omitempty"`
	Console    []string       `json:"console,omitempty"`
	Timing     Timing         `json:"timing"`
	AntiBot    AntiBotVerdict `json:"anti_bot"`
	Socials    SocialLinks    `json:"socials,omitempty"`
	TwitterAll []string       `json:"twitter_all,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Source names where a social profile was resolved from.
type Source string

// Profile resolution sources.
const (
	SourcePrimary Source = "primary"
	SourceMirror  Source = "mirror"
)

// Tweet is one recent post captured from a profile page.
type Tweet struct {
	ID   string    `json:"id,omitempty"`
	URL  string    `json:"url,omitempty"`
	Text string    `json:"text"`
	Time time.Time `json:"time,omitempty"`
}

// SocialProfile is the outcome of resolving a social handle. Like
// FetchResult it is always populated, with OK reporting success.
type SocialProfile struct {
	OK        bool     `json:"ok"`
	Handle    string   `json:"handle"`
	URL       string   `json:"url"`
	Name      string   `json:"name,omitempty"`
	Bio       string   `json:"bio,omitempty"`
	Location  string   `json:"location,omitempty"`
	Website   string   `json:"website,omitempty"`
	Links     []string `json:"links,omitempty"`
	Verified  *bool    `json:"verified,omitempty"`
	Avatar    string   `json:"avatar,omitempty"`
	Banner    string   `json:"banner,omitempty"`
	Followers *int64   `json:"followers,omitempty"`
	Following *int64   `json:"following,omitempty"`
	Posts     *int64   `json:"posts,omitempty"`
	Tweets    []Tweet  `json:"tweets,omitempty"`
	Source    Source   `json:"source,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"`
	Attempts  int      `json:"attempts"`
	Error     string   `json:"error,omitempty"`
}

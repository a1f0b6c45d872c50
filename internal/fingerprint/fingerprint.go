// Package fingerprint synthesizes self-consistent browser identities.
package fingerprint

import (
	"math/rand"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
)

// Hardcoded safe identity used when no constraints are given or when
// generation cannot satisfy the request.
var defaultFingerprint = enrich.Fingerprint{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Viewport:  enrich.Viewport{Width: 1366, Height: 768},
	Locale:    "en-US",
	Device:    enrich.DeviceDesktop,
	OS:        enrich.OSWindows,
}

// userAgents maps a device/OS pair to candidate user agent strings. The
// strings are kept current enough to blend in but are not refreshed at
// runtime.
var userAgents = map[enrich.DeviceClass]map[enrich.OSClass][]string{
	enrich.DeviceDesktop: {
		enrich.OSWindows: {
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
		},
		enrich.OSMacOS: {
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		},
		enrich.OSLinux: {
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
		},
	},
	enrich.DeviceMobile: {
		enrich.OSAndroid: {
			"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
			"Mozilla/5.0 (Linux; Android 13; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Mobile Safari/537.36",
		},
		enrich.OSIOS: {
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		},
	},
	enrich.DeviceTablet: {
		enrich.OSAndroid: {
			"Mozilla/5.0 (Linux; Android 13; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		},
		enrich.OSIOS: {
			"Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		},
	},
}

// viewports maps a device class to plausible viewport presets.
var viewports = map[enrich.DeviceClass][]enrich.Viewport{
	enrich.DeviceDesktop: {
		{Width: 1366, Height: 768},
		{Width: 1440, Height: 900},
		{Width: 1920, Height: 1080},
	},
	enrich.DeviceMobile: {
		{Width: 390, Height: 844},
		{Width: 412, Height: 915},
	},
	enrich.DeviceTablet: {
		{Width: 820, Height: 1180},
		{Width: 1024, Height: 1366},
	},
}

// defaultOS picks the most common OS for each device class.
var defaultOS = map[enrich.DeviceClass]enrich.OSClass{
	enrich.DeviceDesktop: enrich.OSWindows,
	enrich.DeviceMobile:  enrich.OSAndroid,
	enrich.DeviceTablet:  enrich.OSIOS,
}

// Synthesizer builds Fingerprints from caller constraints. The zero value
// is not usable; construct with New.
type Synthesizer struct {
	rng *rand.Rand
}

// New returns a Synthesizer seeded from the given source. Pass a fixed
// seed in tests for deterministic output.
func New(seed int64) *Synthesizer {
	return &Synthesizer{rng: rand.New(rand.NewSource(seed))}
}

// Synthesize resolves a spec into a complete Fingerprint. Constraints the
// table cannot satisfy degrade to the hardcoded default identity instead
// of failing.
func (s *Synthesizer) Synthesize(spec *enrich.FingerprintSpec) enrich.Fingerprint {
	if spec == nil {
		spec = &enrich.FingerprintSpec{}
	}

	device := spec.Device
	if device == "" {
		device = enrich.DeviceDesktop
	}
	osc := spec.OS
	if osc == "" {
		osc = defaultOS[device]
	}

	agents := userAgents[device][osc]
	if len(agents) == 0 {
		fp := defaultFingerprint
		applyOverrides(&fp, spec)
		return fp
	}

	fp := enrich.Fingerprint{
		UserAgent: agents[s.rng.Intn(len(agents))],
		Viewport:  s.pickViewport(device),
		Locale:    pickLocale(spec.Locales),
		Device:    device,
		OS:        osc,
	}
	applyOverrides(&fp, spec)
	return fp
}

func (s *Synthesizer) pickViewport(device enrich.DeviceClass) enrich.Viewport {
	presets := viewports[device]
	if len(presets) == 0 {
		return defaultFingerprint.Viewport
	}
	return presets[s.rng.Intn(len(presets))]
}

func pickLocale(locales []string) string {
	for _, l := range locales {
		if l != "" {
			return l
		}
	}
	return defaultFingerprint.Locale
}

// Explicit user agent beats the generated one; an explicit viewport beats
// the device preset even when it disagrees with the device class.
func applyOverrides(fp *enrich.Fingerprint, spec *enrich.FingerprintSpec) {
	if spec.UserAgent != "" {
		fp.UserAgent = spec.UserAgent
	}
	if spec.Viewport != nil && spec.Viewport.Width > 0 && spec.Viewport.Height > 0 {
		fp.Viewport = *spec.Viewport
	}
}

// Default returns the hardcoded fallback identity.
func Default() enrich.Fingerprint {
	return defaultFingerprint
}

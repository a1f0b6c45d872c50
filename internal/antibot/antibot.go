// Package antibot classifies responses that look like automated-traffic
// challenges. Detection is purely observational: it annotates a fetch
// result and never fails or blocks it.
package antibot

import (
	"net/http"
	"strings"

	"github.com/beesyst/zen-crm-bot/internal/enrich"
)

// Only this much rendered HTML is scanned for challenge phrases.
const scanLimit = 50000

// edgeProviders are Server header fragments identifying edge-protection
// vendors whose pages warrant a body scan.
var edgeProviders = []string{
	"cloudflare",
	"ddos-guard",
	"akamai",
	"imperva",
	"sucuri",
	"variti",
	"qrator",
}

// challengePhrases mark interstitial challenge pages. Matching is
// case-insensitive against the scanned prefix of the body.
var challengePhrases = []string{
	"checking your browser",
	"verify you are human",
	"verifying you are human",
	"just a moment",
	"attention required",
	"enable javascript and cookies to continue",
	"ddos protection by",
	"access denied",
	"cf-challenge",
	"challenge-platform",
}

// Inspect classifies one response. Status 403/503 is always a detection;
// otherwise the body prefix is scanned only when the Server header matches
// a known edge provider.
func Inspect(status int, headers http.Header, body string) enrich.AntiBotVerdict {
	server := headers.Get("Server")

	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		return enrich.AntiBotVerdict{
			Detected: true,
			Kind:     http.StatusText(status),
			Server:   server,
		}
	}

	provider := matchProvider(server)
	if provider == "" {
		return enrich.AntiBotVerdict{Server: server}
	}
	if HasChallengeMarkup(body) {
		return enrich.AntiBotVerdict{
			Detected: true,
			Kind:     provider,
			Server:   server,
		}
	}
	return enrich.AntiBotVerdict{Server: server}
}

// HasChallengeMarkup scans the body prefix for challenge phrases without
// looking at headers. Mirror pages arrive through third-party instances
// whose Server header says nothing about the upstream block.
func HasChallengeMarkup(body string) bool {
	scan := body
	if len(scan) > scanLimit {
		scan = scan[:scanLimit]
	}
	scan = strings.ToLower(scan)
	for _, phrase := range challengePhrases {
		if strings.Contains(scan, phrase) {
			return true
		}
	}
	return false
}

func matchProvider(server string) string {
	s := strings.ToLower(server)
	for _, p := range edgeProviders {
		if strings.Contains(s, p) {
			return p
		}
	}
	return ""
}

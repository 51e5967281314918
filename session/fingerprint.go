package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the device/browser/OS signature derived from a User-Agent
// string and client IP. It is constructed fresh on every request, embedded in
// its session, and immutable once built. The hash is deterministic for
// identical (user agent, IP, browser, OS) tuples and is used only for
// comparison, never as a security boundary on its own.
type Fingerprint struct {
	UserAgent      string `json:"user_agent"`
	IP             string `json:"ip"`
	Hash           string `json:"hash"`
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	OSVersion      string `json:"os_version"`
	IsMobile       bool   `json:"is_mobile"`
	IsTablet       bool   `json:"is_tablet"`
	IsBot          bool   `json:"is_bot"`
}

// NewFingerprint classifies the User-Agent and binds it to the client IP.
func NewFingerprint(userAgent, ip string) Fingerprint {
	fp := Fingerprint{
		UserAgent: userAgent,
		IP:        ip,
	}

	ua := strings.ToLower(userAgent)

	fp.IsBot = classifyBot(ua)
	fp.IsTablet = strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet")
	fp.IsMobile = !fp.IsTablet &&
		(strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") ||
			strings.Contains(ua, "android"))

	fp.Browser, fp.BrowserVersion = classifyBrowser(userAgent, ua)
	fp.OS, fp.OSVersion = classifyOS(userAgent, ua)

	sum := sha256.Sum256([]byte(userAgent + "|" + ip + "|" + fp.Browser + "|" + fp.OS))
	fp.Hash = hex.EncodeToString(sum[:])

	return fp
}

// SameDeviceClass reports whether two fingerprints fall in the same
// mobile/tablet/desktop bucket.
func (f Fingerprint) SameDeviceClass(other Fingerprint) bool {
	return f.IsMobile == other.IsMobile && f.IsTablet == other.IsTablet
}

func classifyBot(ua string) bool {
	for _, marker := range []string{
		"bot", "crawler", "spider", "scraper", "curl/", "wget/",
		"python-requests", "go-http-client", "headless",
	} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

// classifyBrowser matches in specificity order: Edge and Opera embed
// "chrome", Chrome embeds "safari", so the more specific token wins.
func classifyBrowser(raw, ua string) (string, string) {
	switch {
	case strings.Contains(ua, "edg/"):
		return "Edge", versionAfter(raw, "Edg/")
	case strings.Contains(ua, "opr/"):
		return "Opera", versionAfter(raw, "OPR/")
	case strings.Contains(ua, "firefox/"):
		return "Firefox", versionAfter(raw, "Firefox/")
	case strings.Contains(ua, "chrome/"):
		return "Chrome", versionAfter(raw, "Chrome/")
	case strings.Contains(ua, "safari/") && strings.Contains(ua, "version/"):
		return "Safari", versionAfter(raw, "Version/")
	case ua == "":
		return "Unknown", ""
	default:
		return "Other", ""
	}
}

func classifyOS(raw, ua string) (string, string) {
	switch {
	case strings.Contains(ua, "windows nt"):
		return "Windows", versionAfter(raw, "Windows NT ")
	case strings.Contains(ua, "android"):
		return "Android", versionAfter(raw, "Android ")
	case strings.Contains(ua, "iphone os"):
		return "iOS", versionAfter(raw, "iPhone OS ")
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "iOS", ""
	case strings.Contains(ua, "mac os x"):
		return "macOS", versionAfter(raw, "Mac OS X ")
	case strings.Contains(ua, "linux"):
		return "Linux", ""
	case ua == "":
		return "Unknown", ""
	default:
		return "Other", ""
	}
}

// versionAfter returns the version token following marker, trimmed at the
// first separator.
func versionAfter(raw, marker string) string {
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len(marker):]
	end := strings.IndexAny(rest, " ;),")
	if end >= 0 {
		rest = rest[:end]
	}
	return rest
}

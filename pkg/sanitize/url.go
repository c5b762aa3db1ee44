package sanitize

import (
	"regexp"
	"strings"
)

// AllowedProtocols is the scheme whitelist applied by URL.
var AllowedProtocols = []string{
	"http", "https", "ftp", "ftps", "mailto", "news", "irc", "irc6", "ircs",
	"gopher", "nntp", "feed", "telnet", "mms", "rtsp", "sms", "svn", "tel",
	"fax", "xmpp", "webcal", "urn",
}

var urlDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\-~+_.?#=!&;,/:%@$|*'()\[\]\x{80}-\x{10FFFF}]`)

// URL cleans a URL for storage. Spaces become %20, characters outside the
// URL alphabet are dropped, and encoded CR/LF sequences are removed. A value
// without a scheme that is not a relative reference gets "http://". A scheme
// outside AllowedProtocols yields "".
func URL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.ReplaceAll(u, " ", "%20")
	u = urlDisallowed.ReplaceAllString(u, "")
	if u == "" {
		return ""
	}
	u = deepReplace(u, "%0d", "%0a", "%0D", "%0A")
	u = strings.ReplaceAll(u, ";//", "://")

	if !strings.Contains(u, ":") && !hasAnyPrefix(u, "/", "#", "?") {
		u = "http://" + u
	}

	if scheme, _, ok := strings.Cut(u, ":"); ok && !strings.ContainsAny(scheme, "/?#") {
		if !isAllowedProtocol(scheme) {
			return ""
		}
	}
	return u
}

func isAllowedProtocol(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, p := range AllowedProtocols {
		if scheme == p {
			return true
		}
	}
	return false
}

// deepReplace removes every needle until none remain, so "%0%0dd" cannot
// reassemble into "%0d".
func deepReplace(s string, needles ...string) string {
	for {
		found := false
		for _, n := range needles {
			if strings.Contains(s, n) {
				found = true
				s = strings.ReplaceAll(s, n, "")
			}
		}
		if !found {
			return s
		}
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

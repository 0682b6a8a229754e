package sanitizer

import (
	"net/url"
	"strings"
)

// NormalizeFeedURL canonicalizes a calendar feed address. Calendar providers
// embed secret tokens in the path and query, so only the scheme and host are
// rewritten.
func NormalizeFeedURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "webcals://"):
		s = "https://" + s[len("webcals://"):]
	case strings.HasPrefix(lower, "webcal://"):
		s = "https://" + s[len("webcal://"):]
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
	default:
		if strings.Contains(s, "://") {
			return ""
		}
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return u.String()
}

// RedactURL hides the query and user info of a feed URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return u.String()
}

package evidence

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that vary per referral without
// changing the document, so they are stripped before deduplication.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
}

// NormalizeURL canonicalizes a URL for deduplication: lowercased scheme and
// host, default ports and fragments dropped, tracking parameters removed,
// trailing slash trimmed. Unparsable input falls back to a trimmed,
// lowercased string so dedupe still has something stable to compare.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(raw)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	switch scheme {
	case "http":
		host = strings.TrimSuffix(host, ":80")
	case "https":
		host = strings.TrimSuffix(host, ":443")
	}

	q := parsed.Query()
	for key := range q {
		lk := strings.ToLower(key)
		if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
			q.Del(key)
		}
	}

	path := strings.TrimSuffix(parsed.Path, "/")

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if encoded := q.Encode(); encoded != "" {
		b.WriteString("?")
		b.WriteString(encoded)
	}
	return b.String()
}

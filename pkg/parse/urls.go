package parse

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// trackingParams are query keys that never select a different page.
var trackingParams = map[string]struct{}{
	"ref_": {},
	"ref":  {},
}

// NormalizeURL standardizes a page URL for dedupe and the listing loop guard.
// It lowercases the scheme and host, removes default ports, trims a trailing path slash,
// drops the fragment and tracking parameters (ref_, utm_*), and sorts the remaining query
// by key. Pages that differ only by query (?id=1, ?page=2) keep distinct keys.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" {
		normalized.Path = "/"
	} else if len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
	}
	normalized.RawPath = ""

	normalized.Fragment = ""
	normalized.RawFragment = ""
	if normalized.RawQuery != "" {
		query := normalized.Query()
		for key := range query {
			lower := strings.ToLower(key)
			if _, ok := trackingParams[lower]; ok || strings.HasPrefix(lower, "utm_") {
				query.Del(key)
			}
		}
		normalized.RawQuery = query.Encode() // Encode sorts by key
	}
	normalized.ForceQuery = false

	return normalized.String()
}

// ParseAndNormalize parses an absolute URL with the stricter url.ParseRequestURI and
// normalizes it with NormalizeURL. Returns the normalized key and the parsed URL.
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(urlStr))
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid URL '%s': %w", utils.ErrParsing, urlStr, err)
	}
	if parsed.Host == "" {
		return "", nil, fmt.Errorf("%w: invalid URL '%s': missing host", utils.ErrParsing, urlStr)
	}
	return NormalizeURL(parsed), parsed, nil
}

// ResolveURL resolves an href found on a page against that page's URL.
// Only http and https results are accepted; anything else (mailto:, javascript:, empty) is an ErrParsing.
func ResolveURL(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, fmt.Errorf("%w: invalid URL: empty href", utils.ErrParsing)
	}
	if base == nil {
		return nil, fmt.Errorf("%w: invalid URL: no base for href '%s'", utils.ErrParsing, href)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL '%s': %v", utils.ErrParsing, href, err)
	}
	resolved := base.ResolveReference(ref)

	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: invalid URL '%s': unsupported scheme '%s'", utils.ErrParsing, href, resolved.Scheme)
	}
	if resolved.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL '%s': missing host", utils.ErrParsing, href)
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved, nil
}

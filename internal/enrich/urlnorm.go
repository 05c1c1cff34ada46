package enrich

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL so equivalent forms collapse to one
// identity: scheme and host are lowercased, default ports removed, fragment
// and query dropped, and a trailing slash on non-root paths collapsed.
// Unparsable input is returned unchanged; callers treat such strings as
// non-normalizable rather than failing.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	return u.String()
}

// HomepageURL reduces a URL that may point at a sub-page to its homepage,
// e.g. https://example.com/locations/menus -> https://example.com.
// Input without a scheme and host is returned unchanged.
func HomepageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// Host returns the lowercased host of a URL, or "" if it cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrEmptyURL is returned by Normalize for an empty string.
	ErrEmptyURL = errors.New("empty URL")
	// ErrNotAbsolute is returned by Normalize when scheme or host is missing.
	ErrNotAbsolute = errors.New("URL must have both scheme and host")
)

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Normalize returns the form used to compare article identity between a
// crawl and a saved report: lowercase scheme and host, no default port, no
// fragment and no trailing slashes except on the root path. The query is
// kept as is.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("normalize %q: %w", rawURL, ErrNotAbsolute)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if port := u.Port(); port != "" && defaultPorts[u.Scheme] == port {
		host = strings.TrimSuffix(host, ":"+port)
	}
	u.Host = host
	u.Fragment, u.RawFragment = "", ""

	if trimmed := strings.TrimRight(u.Path, "/"); trimmed != u.Path {
		if trimmed == "" {
			trimmed = "/"
		}
		u.Path, u.RawPath = trimmed, ""
	}

	return u.String(), nil
}

// StripFragment removes everything from the first '#' onwards.
// It works on the raw string so URLs that fail to parse are still trimmed.
func StripFragment(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '#'); idx >= 0 {
		return rawURL[:idx]
	}
	return rawURL
}

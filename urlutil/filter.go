package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// IsSameDomain checks if targetURL belongs to the same domain as baseHost.
// Subdomains are considered same-domain (e.g., blog.example.com matches example.com).
func IsSameDomain(targetURL string, baseHost string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return IsSameHost(parsed.Hostname(), baseHost)
}

// IsSameHost reports whether host equals baseHost or is one of its subdomains.
func IsSameHost(host, baseHost string) bool {
	host = strings.ToLower(host)
	baseHost = strings.ToLower(baseHost)
	if host == "" || baseHost == "" {
		return false
	}
	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// Resolve resolves a possibly-relative href against base and returns the
// absolute URL. When stripFragment is set the fragment is dropped, which is
// how article links are keyed during discovery.
func Resolve(base *url.URL, href string, stripFragment bool) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	resolved := base.ResolveReference(ref)
	if stripFragment {
		resolved.Fragment = ""
		resolved.RawFragment = ""
	}
	return resolved.String(), nil
}

// SiteDomain returns the registrable domain (eTLD+1) for host, so that
// blog.example.co.uk yields example.co.uk. Hosts without a public suffix
// (localhost, IP addresses) are returned unchanged.
func SiteDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const maxRobotsBytes = 512 << 10

// RobotsChecker fetches robots.txt once per host and answers whether a
// listing page may be crawled by the configured user agent.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration

	mu     sync.Mutex
	groups map[string]*robotstxt.Group // nil group means allow all
}

// NewRobotsChecker creates a RobotsChecker. A nil client gets a default one.
// A positive timeout bounds each robots.txt fetch; a fetch that runs out of
// time fails open like any other fetch error.
func NewRobotsChecker(client *http.Client, userAgent string, timeout time.Duration) *RobotsChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		groups:    make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be fetched. Fetch and parse failures
// fail open: the URL is allowed and the error is returned for logging.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Host == "" {
		return true, nil
	}

	group, err := r.group(ctx, parsedURL.Scheme, parsedURL.Host)
	if group == nil {
		return true, err
	}

	path := parsedURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsedURL.RawQuery != "" {
		path += "?" + parsedURL.RawQuery
	}
	return group.Test(path), err
}

func (r *RobotsChecker) group(ctx context.Context, scheme, host string) (*robotstxt.Group, error) {
	r.mu.Lock()
	group, ok := r.groups[host]
	r.mu.Unlock()
	if ok {
		return group, nil
	}

	group, err := r.fetch(ctx, scheme, host)

	r.mu.Lock()
	r.groups[host] = group
	r.mu.Unlock()
	return group, err
}

func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) (*robotstxt.Group, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for host %s: %w", host, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for host %s: %w", host, err)
	}
	defer resp.Body.Close()

	// Missing or failing robots.txt allows everything.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt body for host %s: %w", host, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for host %s: %w", host, err)
	}
	return data.FindGroup(r.userAgent), nil
}

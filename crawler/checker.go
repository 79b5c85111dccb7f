package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lukemcguire/refcrawl/result"
)

// MaxRedirects is the number of redirect hops a link check will follow.
const MaxRedirects = 10

// ErrTooManyRedirects is returned when a link redirects more than MaxRedirects times.
var ErrTooManyRedirects = errors.New("stopped after too many redirects")

// LinkCheck is the outcome of fetching one reference URL.
type LinkCheck struct {
	URL        string
	Status     *int   // nil when no response was received
	StatusText string // e.g. "Not Found"
	FinalURL   string // set only when redirects changed the URL
	Err        error
	IsTimeout  bool
	Attempts   int
}

// Broken reports whether the check ended in a non-timeout failure or an error status.
func (c LinkCheck) Broken() bool {
	if c.Status != nil {
		return *c.Status >= 400
	}
	return c.Err != nil && !c.IsTimeout
}

// NewHTTPClient returns the client used for link checks. It follows at most
// MaxRedirects hops and stamps every request with userAgent.
func NewHTTPClient(userAgent string) *http.Client {
	return &http.Client{
		Transport: &userAgentTransport{base: http.DefaultTransport, userAgent: userAgent},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return fmt.Errorf("%w (%d)", ErrTooManyRedirects, MaxRedirects)
			}
			return nil
		},
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// CheckLink performs a single GET of rawURL bounded by timeout.
// Any received response, including 4xx and 5xx, populates Status.
func CheckLink(ctx context.Context, client *http.Client, rawURL string, timeout time.Duration) (check LinkCheck) {
	check = LinkCheck{URL: rawURL, Attempts: 1}

	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		check.Err = fmt.Errorf("create request: %w", err)
		return check
	}

	resp, err := client.Do(req)
	if err != nil {
		check.Err = err
		check.IsTimeout = result.IsTimeoutError(err)
		return check
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		if closeErr := resp.Body.Close(); closeErr != nil && check.Err == nil {
			check.Err = fmt.Errorf("close response body: %w", closeErr)
		}
	}()

	status := resp.StatusCode
	check.Status = &status
	check.StatusText = statusText(resp)

	if resp.Request != nil && resp.Request.URL != nil {
		if final := resp.Request.URL.String(); final != req.URL.String() {
			check.FinalURL = final
		}
	}
	return check
}

// statusText strips the numeric prefix from resp.Status ("404 Not Found").
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

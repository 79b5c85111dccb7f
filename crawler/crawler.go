// Package crawler audits the References sections of a blog. It walks the
// paginated listing to discover articles, extracts each article's reference
// links and checks every unique reference for liveness.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/phuslu/log"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/lukemcguire/refcrawl/browser"
	"github.com/lukemcguire/refcrawl/urlutil"
)

// PaginationSelector finds links to further listing pages.
const PaginationSelector = `a[href*="/page/"]`

var (
	// ErrNoTarget is returned when no target URL is configured.
	ErrNoTarget = errors.New("no target URL configured")
	// ErrPageStatus is returned when a page loads without a usable response.
	ErrPageStatus = errors.New("page returned an error status")
)

// Config holds crawler configuration.
type Config struct {
	TargetURL       string        // Listing page the crawl starts from
	MaxPages        int           // Listing pages to visit, 0 = unlimited
	CrawlTimeout    time.Duration // Per-page navigation timeout
	LinkTimeout     time.Duration // Per-attempt reference check timeout
	Retry           RetryPolicy   // Timeout retries for reference checks
	LinkConcurrency int           // Concurrent reference checks (1 = sequential)
	RateLimit       float64       // Page loads per second against the target, 0 = unpaced
	IgnoreRobots    bool          // Skip robots.txt checks for listing pages
	ReferenceWindow float64       // Layout units below the heading that count as references
	UserAgent       string
	Rules           urlutil.ArticleRules
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(targetURL string) Config {
	return Config{
		TargetURL:       targetURL,
		MaxPages:        5,
		CrawlTimeout:    30 * time.Second,
		LinkTimeout:     10 * time.Second,
		Retry:           DefaultRetryPolicy(),
		LinkConcurrency: 1,
		RateLimit:       5,
		ReferenceWindow: DefaultReferenceWindow,
		UserAgent:       "refcrawl/1.0",
		Rules:           urlutil.DefaultArticleRules(),
	}
}

// Discovery is the outcome of walking the listing pages.
type Discovery struct {
	Articles     []string // article URLs in first-seen order
	ListingPages []string // listing pages that were loaded (or attempted)
	Failed       []string // listing pages that failed to load
	Disallowed   []string // listing pages skipped because of robots.txt
}

// Crawler walks one blog through a page engine.
type Crawler struct {
	cfg        Config
	target     *url.URL
	siteDomain string
	engine     browser.Engine
	robots     *RobotsChecker
	pacer      *Pacer
	logger     *log.Logger
	progressCh chan<- CrawlEvent
}

// New creates a Crawler. The logger and progressCh are optional; pass nil
// to use the default logger or to disable progress events.
func New(cfg Config, engine browser.Engine, logger *log.Logger, progressCh chan<- CrawlEvent) (*Crawler, error) {
	if cfg.TargetURL == "" {
		return nil, ErrNoTarget
	}
	target, err := url.Parse(cfg.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}
	if !urlutil.IsHTTPScheme(cfg.TargetURL) || target.Host == "" {
		return nil, fmt.Errorf("target URL %q must be an absolute http(s) URL", cfg.TargetURL)
	}
	if target.Path == "" {
		target.Path = "/"
	}

	if cfg.Rules.TagPrefix == "" {
		cfg.Rules = urlutil.DefaultArticleRules()
	}
	if cfg.ReferenceWindow <= 0 {
		cfg.ReferenceWindow = DefaultReferenceWindow
	}
	if cfg.LinkConcurrency <= 0 {
		cfg.LinkConcurrency = 1
	}
	if logger == nil {
		logger = &log.DefaultLogger
	}

	return &Crawler{
		cfg:        cfg,
		target:     target,
		siteDomain: urlutil.SiteDomain(target.Hostname()),
		engine:     engine,
		robots:     NewRobotsChecker(nil, cfg.UserAgent, cfg.CrawlTimeout),
		pacer:      NewPacer(cfg.RateLimit, DefaultTargetRTT),
		logger:     logger,
		progressCh: progressCh,
	}, nil
}

// SiteDomain returns the registrable domain used to drop self-references.
func (c *Crawler) SiteDomain() string {
	return c.siteDomain
}

// Discover walks the listing pages breadth-first from the target URL and
// collects article URLs. Failing pages are logged and skipped. On context
// cancellation the partial discovery is returned with the context error.
func (c *Crawler) Discover(ctx context.Context) (*Discovery, error) {
	seen, err := NewVisitedTracker(max(c.cfg.MaxPages*4, DefaultVisitedCapacity))
	if err != nil {
		return nil, fmt.Errorf("create visited tracker: %w", err)
	}
	defer func() {
		if closeErr := seen.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("close visited tracker")
		}
	}()

	frontier := NewFrontier(seen)
	frontier.Push(c.target.String())

	articles := orderedmap.New[string, struct{}]()
	d := &Discovery{}

	for frontier.Len() > 0 {
		if c.cfg.MaxPages > 0 && len(d.ListingPages) >= c.cfg.MaxPages {
			c.logger.Info().Int("max_pages", c.cfg.MaxPages).Int("queued", frontier.Len()).Msg("listing page cap reached")
			break
		}
		if err := ctx.Err(); err != nil {
			d.Articles = orderedKeys(articles)
			return d, err
		}

		pageURL, _ := frontier.Pop()

		if !c.cfg.IgnoreRobots {
			allowed, robotsErr := c.robots.Allowed(ctx, pageURL)
			if robotsErr != nil {
				c.logger.Warn().Err(robotsErr).Str("url", pageURL).Msg("robots.txt check failed, allowing")
			}
			if !allowed {
				c.logger.Info().Str("url", pageURL).Msg("listing page disallowed by robots.txt")
				d.Disallowed = append(d.Disallowed, pageURL)
				continue
			}
		}

		d.ListingPages = append(d.ListingPages, pageURL)
		found, next, status, scanErr := c.scanListing(ctx, pageURL)
		if scanErr != nil {
			if ctx.Err() != nil {
				d.Articles = orderedKeys(articles)
				return d, ctx.Err()
			}
			c.logger.Warn().Err(scanErr).Str("url", pageURL).Msg("listing page skipped")
			d.Failed = append(d.Failed, pageURL)
			c.emit(CrawlEvent{Phase: PhaseDiscover, URL: pageURL, Status: status, Error: scanErr.Error(), Done: len(d.ListingPages), Found: articles.Len()})
			continue
		}

		added := 0
		for _, article := range found {
			if _, ok := articles.Get(article); !ok {
				articles.Set(article, struct{}{})
				added++
			}
		}
		queued := 0
		for _, listing := range next {
			if frontier.Push(listing) {
				queued++
			}
		}

		c.logger.Info().Str("url", pageURL).Int("articles", len(found)).Int("new", added).Int("queued", queued).Msg("listing page scanned")
		c.emit(CrawlEvent{Phase: PhaseDiscover, URL: pageURL, Status: status, Done: len(d.ListingPages), Found: articles.Len()})
	}

	d.Articles = orderedKeys(articles)
	if flushErr := seen.LastError(); flushErr != nil {
		c.logger.Warn().Err(flushErr).Msg("visited tracker flush failed")
	}
	entry := c.logger.Info().Int("listing_pages", len(d.ListingPages)).Int("articles", len(d.Articles)).Dur("avg_page_load", c.pacer.AverageRTT())
	if pace := c.pacer.Rate(); !math.IsInf(pace, 1) {
		entry = entry.Float64("pace_rps", pace)
	}
	entry.Msg("discovery complete")
	return d, nil
}

// scanListing loads one listing page and returns the article and pagination
// links on it, both resolved and restricted to the target host.
func (c *Crawler) scanListing(ctx context.Context, pageURL string) (articles, next []string, status int, err error) {
	page, err := c.open(ctx, pageURL)
	if page != nil {
		status = page.Status()
	}
	if err != nil {
		return nil, nil, status, err
	}
	defer page.Close()

	base, err := url.Parse(page.URL())
	if err != nil {
		return nil, nil, status, fmt.Errorf("parse page URL: %w", err)
	}

	hrefs, err := page.Hrefs(ctx, "a")
	if err != nil {
		return nil, nil, status, fmt.Errorf("read links: %w", err)
	}
	for _, href := range hrefs {
		resolved, ok := c.resolveOnSite(base, href)
		if ok && c.cfg.Rules.IsArticle(resolved) {
			articles = append(articles, resolved)
		}
	}

	pagination, err := page.Hrefs(ctx, PaginationSelector)
	if err != nil {
		return articles, nil, status, fmt.Errorf("read pagination links: %w", err)
	}
	for _, href := range pagination {
		if resolved, ok := c.resolveOnSite(base, href); ok {
			next = append(next, resolved)
		}
	}
	return articles, next, status, nil
}

// resolveOnSite resolves href against base, strips the fragment and keeps it
// only when it stays on the target host or one of its subdomains.
func (c *Crawler) resolveOnSite(base *url.URL, href string) (string, bool) {
	resolved, err := urlutil.Resolve(base, href, true)
	if err != nil {
		return "", false
	}
	if !urlutil.IsHTTPScheme(resolved) || !urlutil.IsSameDomain(resolved, c.target.Hostname()) {
		return "", false
	}
	return resolved, true
}

// open paces and loads a page from the target site. A page with no
// response or an error status is closed and reported as ErrPageStatus; the
// returned page is still non-nil so callers can read its status.
func (c *Crawler) open(ctx context.Context, pageURL string) (browser.Page, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for pacer: %w", err)
	}

	start := time.Now()
	page, err := c.engine.Open(ctx, pageURL, c.cfg.CrawlTimeout)
	c.pacer.Observe(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", pageURL, err)
	}

	if status := page.Status(); status == 0 || status >= 400 {
		_ = page.Close()
		return page, fmt.Errorf("%w: %s (%d)", ErrPageStatus, pageURL, status)
	}
	return page, nil
}

func (c *Crawler) emit(evt CrawlEvent) {
	if c.progressCh != nil {
		c.progressCh <- evt
	}
}

func orderedKeys[V any](m *orderedmap.OrderedMap[string, V]) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

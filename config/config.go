// Package config holds the refcrawl settings. Every option is a kong flag
// with an environment variable and a default, and can also come from a
// TOML or YAML file through Loader.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/phuslu/log"

	"github.com/lukemcguire/refcrawl/browser"
	"github.com/lukemcguire/refcrawl/crawler"
)

// DefaultTargetURL is the blog audited when no target is configured.
const DefaultTargetURL = "https://blog.silverandfit.com/"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the run configuration. Durations are in milliseconds to match
// the environment variables.
type Config struct {
	TargetURL       string  `name:"target" env:"TARGET_URL" default:"https://blog.silverandfit.com/" help:"Listing page the crawl starts from."`
	MaxPages        int     `name:"max-pages" env:"MAX_PAGES" default:"5" help:"Listing pages to visit (0 = unlimited)."`
	CrawlTimeout    int     `name:"crawl-timeout" env:"CRAWL_TIMEOUT" default:"30000" help:"Page load timeout in milliseconds."`
	LinkTimeout     int     `name:"link-timeout" env:"LINK_TIMEOUT" default:"10000" help:"Reference check timeout per attempt in milliseconds."`
	MaxRetries      int     `name:"max-retries" env:"MAX_RETRIES" default:"2" help:"Attempts per reference when it times out."`
	ReportDir       string  `name:"report-dir" env:"REPORT_DIR" default:"broken-link-reports" help:"Directory for saved reports."`
	Engine          string  `name:"engine" env:"PAGE_ENGINE" default:"static" enum:"static,browser" help:"Page engine: static or browser."`
	Headless        bool    `name:"headless" env:"HEADLESS" default:"true" negatable:"" help:"Run the browser engine headless."`
	LinkConcurrency int     `name:"link-concurrency" env:"LINK_CONCURRENCY" default:"1" help:"Concurrent reference checks."`
	RateLimit       float64 `name:"rate-limit" env:"RATE_LIMIT" default:"5" help:"Page loads per second against the target (0 = unpaced)."`
	IgnoreRobots    bool    `name:"ignore-robots" env:"IGNORE_ROBOTS" help:"Do not consult robots.txt for listing pages."`
	ReferenceWindow float64 `name:"reference-window" env:"REFERENCE_WINDOW" default:"500" help:"Vertical distance below the References heading that counts as the section."`
	TagPrefix       string  `name:"tag-prefix" env:"TAG_PREFIX" default:"tag" help:"First path segment of /<prefix>/<category>/<slug> article URLs."`
	UserAgent       string  `name:"user-agent" env:"USER_AGENT" default:"refcrawl/1.0" help:"User-Agent header."`
	LogLevel        string  `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"trace,debug,info,warn,error" help:"Log level."`
}

// Default returns the configuration with every default applied.
func Default() Config {
	return Config{
		TargetURL:       DefaultTargetURL,
		MaxPages:        5,
		CrawlTimeout:    30000,
		LinkTimeout:     10000,
		MaxRetries:      2,
		ReportDir:       "broken-link-reports",
		Engine:          string(browser.KindStatic),
		Headless:        true,
		LinkConcurrency: 1,
		RateLimit:       5,
		ReferenceWindow: crawler.DefaultReferenceWindow,
		TagPrefix:       "tag",
		UserAgent:       "refcrawl/1.0",
		LogLevel:        "info",
	}
}

// Validate checks ranges and the target URL.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: target %q must be an absolute http(s) URL", ErrInvalid, c.TargetURL))
	}
	if c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("%w: max-pages must be >= 0, got %d", ErrInvalid, c.MaxPages))
	}
	if c.CrawlTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: crawl-timeout must be > 0, got %d", ErrInvalid, c.CrawlTimeout))
	}
	if c.LinkTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: link-timeout must be > 0, got %d", ErrInvalid, c.LinkTimeout))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("%w: max-retries must be >= 1, got %d", ErrInvalid, c.MaxRetries))
	}
	if c.LinkConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%w: link-concurrency must be >= 1, got %d", ErrInvalid, c.LinkConcurrency))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: rate-limit must be >= 0, got %g", ErrInvalid, c.RateLimit))
	}
	if c.ReferenceWindow <= 0 {
		errs = append(errs, fmt.Errorf("%w: reference-window must be > 0, got %g", ErrInvalid, c.ReferenceWindow))
	}
	switch browser.Kind(c.Engine) {
	case browser.KindStatic, browser.KindBrowser:
	default:
		errs = append(errs, fmt.Errorf("%w: engine %q", ErrInvalid, c.Engine))
	}
	if c.ReportDir == "" {
		errs = append(errs, fmt.Errorf("%w: report-dir is empty", ErrInvalid))
	}

	return errors.Join(errs...)
}

// Crawler converts the settings into a crawler.Config.
func (c Config) Crawler() crawler.Config {
	cfg := crawler.DefaultConfig(c.TargetURL)
	cfg.MaxPages = c.MaxPages
	cfg.CrawlTimeout = time.Duration(c.CrawlTimeout) * time.Millisecond
	cfg.LinkTimeout = time.Duration(c.LinkTimeout) * time.Millisecond
	cfg.Retry.MaxAttempts = c.MaxRetries
	cfg.LinkConcurrency = c.LinkConcurrency
	cfg.RateLimit = c.RateLimit
	cfg.IgnoreRobots = c.IgnoreRobots
	cfg.ReferenceWindow = c.ReferenceWindow
	cfg.UserAgent = c.UserAgent
	if c.TagPrefix != "" {
		cfg.Rules.TagPrefix = c.TagPrefix
	}
	return cfg
}

// Browser returns the page engine options.
func (c Config) Browser() browser.Options {
	return browser.Options{
		Kind:      browser.Kind(c.Engine),
		UserAgent: c.UserAgent,
		Headless:  c.Headless,
	}
}

// Level returns the configured log level.
func (c Config) Level() log.Level {
	return log.ParseLevel(c.LogLevel)
}

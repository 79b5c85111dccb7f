// Package browser is the page-engine boundary for refcrawl. The crawler
// only needs to navigate, read hrefs and text, and ask where things sit on
// the rendered page; this package hides whether that comes from a real
// Chromium (playwright) or from a static fetch with an estimated layout.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind selects a page engine implementation.
type Kind string

const (
	KindStatic  Kind = "static"
	KindBrowser Kind = "browser"
)

var (
	// ErrNoElement is returned when a selector matches nothing.
	ErrNoElement = errors.New("no element matches selector")
	// ErrUnknownKind is returned by New for an unsupported engine kind.
	ErrUnknownKind = errors.New("unknown page engine")
)

// Engine opens pages. Implementations are used from a single goroutine.
type Engine interface {
	Open(ctx context.Context, rawURL string, timeout time.Duration) (Page, error)
	Close() error
}

// Page is one loaded document.
type Page interface {
	// URL is the address that was requested.
	URL() string
	// Status is the HTTP status of the main document, 0 when none was received.
	Status() int
	// Hrefs returns the raw href attribute of every element matching selector.
	Hrefs(ctx context.Context, selector string) ([]string, error)
	// FirstText returns the text content of the first element matching selector.
	FirstText(ctx context.Context, selector string) (string, error)
	// Layout returns text nodes and links with their vertical positions.
	Layout(ctx context.Context) (*Layout, error)
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// TextBox is a non-blank text node and the top of its parent element.
type TextBox struct {
	Text string  `json:"text"`
	Top  float64 `json:"top"`
}

// LinkBox is an anchor with an href attribute and its top position.
type LinkBox struct {
	Href string  `json:"href"`
	Top  float64 `json:"top"`
}

// Layout lists text nodes and links in document order.
type Layout struct {
	Texts []TextBox `json:"texts"`
	Links []LinkBox `json:"links"`
}

// Options configures New.
type Options struct {
	Kind      Kind
	UserAgent string
	Headless  bool
	Client    *http.Client // static engine only
}

// New builds the engine selected by opts.Kind.
func New(opts Options) (Engine, error) {
	switch opts.Kind {
	case KindStatic, "":
		return NewStatic(opts.Client, opts.UserAgent), nil
	case KindBrowser:
		return NewPlaywright(opts.UserAgent, opts.Headless)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}

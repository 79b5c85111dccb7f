package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// DefaultLineHeight is the estimated height of one block-level line.
	DefaultLineHeight = 24.0

	maxBodyBytes = 10 << 20
)

// blockElements start a new estimated line in the static layout.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "details": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "summary": true, "table": true,
	"tr": true, "ul": true,
}

// skippedElements are never rendered and contribute no text or links.
var skippedElements = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true, "template": true,
}

// Static fetches pages over plain HTTP and parses them with goquery.
// It cannot run scripts, so its Layout is an estimate: every block-level
// element advances the vertical position by LineHeight.
type Static struct {
	Client     *http.Client
	UserAgent  string
	LineHeight float64
}

// NewStatic returns a static engine. A nil client gets a default one.
func NewStatic(client *http.Client, userAgent string) *Static {
	if client == nil {
		client = &http.Client{}
	}
	return &Static{Client: client, UserAgent: userAgent, LineHeight: DefaultLineHeight}
}

// Open fetches rawURL. Error statuses still yield a page so callers can
// inspect Status; only transport failures return an error.
func (s *Static) Open(ctx context.Context, rawURL string, timeout time.Duration) (Page, error) {
	reqCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", rawURL, err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	return NewStaticPage(rawURL, resp.StatusCode, string(body), s.LineHeight)
}

// Close is a no-op; the static engine holds no browser resources.
func (s *Static) Close() error { return nil }

type staticPage struct {
	url        string
	status     int
	doc        *goquery.Document
	lineHeight float64
}

// NewStaticPage parses an already-fetched document. A lineHeight <= 0 uses
// DefaultLineHeight.
func NewStaticPage(rawURL string, status int, body string, lineHeight float64) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	return &staticPage{url: rawURL, status: status, doc: doc, lineHeight: lineHeight}, nil
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) Status() int { return p.status }

func (p *staticPage) Hrefs(_ context.Context, selector string) ([]string, error) {
	var hrefs []string
	p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

func (p *staticPage) FirstText(_ context.Context, selector string) (string, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return sel.Text(), nil
}

func (p *staticPage) Layout(_ context.Context) (*Layout, error) {
	layout := &Layout{}
	body := p.doc.Find("body")
	if body.Length() == 0 {
		return layout, nil
	}

	var y float64
	var walk func(n *html.Node, parentTop float64)
	walk = func(n *html.Node, parentTop float64) {
		switch n.Type {
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				layout.Texts = append(layout.Texts, TextBox{Text: n.Data, Top: parentTop})
			}
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				y += p.lineHeight
			}
			top := y
			if n.Data == "a" {
				for _, attr := range n.Attr {
					if attr.Key == "href" {
						layout.Links = append(layout.Links, LinkBox{Href: attr.Val, Top: top})
						break
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c, top)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, parentTop)
		}
	}

	for _, n := range body.Nodes {
		walk(n, 0)
	}
	return layout, nil
}

func (p *staticPage) HTML(_ context.Context) (string, error) {
	out, err := p.doc.Html()
	if err != nil {
		return "", fmt.Errorf("serialize %s: %w", p.url, err)
	}
	return out, nil
}

func (p *staticPage) Close() error { return nil }

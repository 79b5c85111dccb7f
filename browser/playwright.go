package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// layoutScript reports every non-blank text node with its parent's top edge
// and every anchor with an href, both in document order.
const layoutScript = `() => {
  const texts = [];
  const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT, null);
  let node;
  while ((node = walker.nextNode())) {
    if (!node.textContent || node.textContent.trim() === "" || !node.parentElement) continue;
    texts.push({ text: node.textContent, top: node.parentElement.getBoundingClientRect().top });
  }
  const links = Array.from(document.querySelectorAll("a[href]")).map(a => ({
    href: a.getAttribute("href"),
    top: a.getBoundingClientRect().top,
  }));
  return { texts, links };
}`

const hrefsScript = `(sel) => Array.from(document.querySelectorAll(sel))
  .map(el => el.getAttribute("href"))
  .filter(h => h !== null)`

const firstTextScript = `(sel) => {
  const el = document.querySelector(sel);
  return el ? el.textContent : null;
}`

type pwProvider interface {
	Install() error
	Run() (pwRunner, error)
}

type pwRunner interface {
	ChromiumLaunch(headless bool) (pwBrowser, error)
	Stop() error
}

type pwBrowser interface {
	NewPage(userAgent string) (pwPage, error)
	Close() error
}

type pwPage interface {
	Goto(url string, timeout time.Duration) (int, error)
	Evaluate(script string, arg any) (any, error)
	Content() (string, error)
	Close() error
}

type playwrightProvider struct{}

func (playwrightProvider) Install() error {
	return playwright.Install(&playwright.RunOptions{})
}

func (playwrightProvider) Run() (pwRunner, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, err
	}
	return &playwrightRunner{pw: pw}, nil
}

type playwrightRunner struct {
	pw *playwright.Playwright
}

func (r *playwrightRunner) ChromiumLaunch(headless bool) (pwBrowser, error) {
	b, err := r.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		return nil, err
	}
	return &playwrightBrowser{browser: b}, nil
}

func (r *playwrightRunner) Stop() error {
	return r.pw.Stop()
}

type playwrightBrowser struct {
	browser playwright.Browser
}

func (b *playwrightBrowser) NewPage(userAgent string) (pwPage, error) {
	opts := playwright.BrowserNewPageOptions{}
	if userAgent != "" {
		opts.UserAgent = playwright.String(userAgent)
	}
	page, err := b.browser.NewPage(opts)
	if err != nil {
		return nil, err
	}
	return &playwrightPage{page: page}, nil
}

func (b *playwrightBrowser) Close() error {
	return b.browser.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) (int, error) {
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (p *playwrightPage) Evaluate(script string, arg any) (any, error) {
	if arg == nil {
		return p.page.Evaluate(script)
	}
	return p.page.Evaluate(script, arg)
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

// Playwright drives a headless Chromium so Layout reports real rendered
// positions. One browser is launched per engine and one tab per Open.
type Playwright struct {
	userAgent string
	runner    pwRunner
	browser   pwBrowser
}

// NewPlaywright installs (if needed) and launches Chromium.
func NewPlaywright(userAgent string, headless bool) (*Playwright, error) {
	return newPlaywrightWith(playwrightProvider{}, userAgent, headless)
}

func newPlaywrightWith(provider pwProvider, userAgent string, headless bool) (*Playwright, error) {
	if err := provider.Install(); err != nil {
		return nil, fmt.Errorf("install playwright: %w", err)
	}
	runner, err := provider.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	b, err := runner.ChromiumLaunch(headless)
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &Playwright{userAgent: userAgent, runner: runner, browser: b}, nil
}

// Open navigates a fresh tab to rawURL and waits for DOMContentLoaded.
func (e *Playwright) Open(ctx context.Context, rawURL string, timeout time.Duration) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := e.browser.NewPage(e.userAgent)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	status, err := page.Goto(rawURL, timeout)
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate to %s: %w", rawURL, err)
	}
	return &livePage{url: rawURL, status: status, page: page}, nil
}

// Close shuts down the browser and the playwright driver.
func (e *Playwright) Close() error {
	var errs []error
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		e.browser = nil
	}
	if e.runner != nil {
		if err := e.runner.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		e.runner = nil
	}
	return errors.Join(errs...)
}

type livePage struct {
	url    string
	status int
	page   pwPage
}

func (p *livePage) URL() string { return p.url }

func (p *livePage) Status() int { return p.status }

func (p *livePage) Hrefs(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.page.Evaluate(hrefsScript, selector)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	items, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: unexpected result %T", selector, raw)
	}
	hrefs := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			hrefs = append(hrefs, s)
		}
	}
	return hrefs, nil
}

func (p *livePage) FirstText(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := p.page.Evaluate(firstTextScript, selector)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", selector, err)
	}
	text, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return text, nil
}

func (p *livePage) Layout(ctx context.Context) (*Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.page.Evaluate(layoutScript, nil)
	if err != nil {
		return nil, fmt.Errorf("evaluate layout: %w", err)
	}
	// Evaluate hands back generic maps; a JSON round trip types them.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	var layout Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return &layout, nil
}

func (p *livePage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *livePage) Close() error {
	return p.page.Close()
}

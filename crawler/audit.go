package crawler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/refcrawl/result"
)

// owner is the first article that cited a reference URL.
type owner struct {
	URL   string
	Title string
}

// runState holds everything one audit run accumulates. It is created by
// Run and never shared between runs.
type runState struct {
	discovery *Discovery
	articles  []result.ArticleInfo
	refs      *orderedmap.OrderedMap[string, owner]
	links     []result.LinkResult
}

func newRunState() *runState {
	return &runState{refs: orderedmap.New[string, owner]()}
}

// Auditor sequences discovery, reference extraction and link checking.
type Auditor struct {
	crawler *Crawler
	client  *http.Client
	now     func() time.Time
}

// NewAuditor creates an Auditor. A nil client gets NewHTTPClient with the
// crawler's user agent.
func NewAuditor(c *Crawler, client *http.Client) *Auditor {
	if client == nil {
		client = NewHTTPClient(c.cfg.UserAgent)
	}
	return &Auditor{crawler: c, client: client, now: time.Now}
}

// Run executes the audit. Per-page and per-link failures are recorded in
// the report; only context cancellation and setup failures return an error.
func (a *Auditor) Run(ctx context.Context) (*result.Report, error) {
	started := a.now()
	c := a.crawler
	state := newRunState()

	discovery, err := c.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover articles: %w", err)
	}
	state.discovery = discovery

	if err := a.extractAll(ctx, state); err != nil {
		return nil, err
	}
	if err := a.checkAll(ctx, state); err != nil {
		return nil, err
	}

	report := &result.Report{
		RunID:     uuid.NewString(),
		TargetURL: c.target.String(),
		StartedAt: started.UTC(),
		Articles:  state.articles,
		Links:     state.links,
	}
	report.Tally()
	report.Stats.ListingPages = len(discovery.ListingPages)
	report.Stats.Duration = a.now().Sub(started)

	c.logger.Info().
		Int("articles", report.Stats.ArticlesFound).
		Int("with_references", report.Stats.ArticlesWithReferences).
		Int("references", report.Stats.ReferenceLinks).
		Int("broken", report.Stats.Broken).
		Int("timeouts", report.Stats.Timeouts).
		Dur("duration", report.Stats.Duration).
		Msg("audit complete")
	c.emit(CrawlEvent{Phase: PhaseDone, Done: report.Stats.ReferenceLinks, Total: report.Stats.ReferenceLinks, Broken: report.Stats.Broken, Timeouts: report.Stats.Timeouts})

	return report, nil
}

// extractAll visits every discovered article in order and records its
// title and references. The first article citing a URL owns it.
func (a *Auditor) extractAll(ctx context.Context, state *runState) error {
	c := a.crawler
	rules := DefaultReferenceRules(c.siteDomain)
	rules.Window = c.cfg.ReferenceWindow
	total := len(state.discovery.Articles)

	for i, articleURL := range state.discovery.Articles {
		if err := ctx.Err(); err != nil {
			return err
		}

		info := a.extractOne(ctx, articleURL, rules)
		if err := ctx.Err(); err != nil {
			return err
		}
		state.articles = append(state.articles, info)

		for _, ref := range info.ReferenceLinks {
			if _, ok := state.refs.Get(ref); !ok {
				state.refs.Set(ref, owner{URL: info.URL, Title: info.Title})
			}
		}
		c.emit(CrawlEvent{Phase: PhaseExtract, URL: articleURL, Found: len(info.ReferenceLinks), Done: i + 1, Total: total})
	}
	return nil
}

func (a *Auditor) extractOne(ctx context.Context, articleURL string, rules ReferenceRules) result.ArticleInfo {
	c := a.crawler
	info := result.ArticleInfo{URL: articleURL, Title: articleURL, ReferenceLinks: []string{}}

	page, err := c.open(ctx, articleURL)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", articleURL).Msg("article skipped")
		return info
	}
	defer page.Close()

	refs, err := ExtractReferences(ctx, page, rules)
	info.Title = refs.Title
	if err != nil {
		c.logger.Warn().Err(err).Str("url", articleURL).Msg("reference extraction failed")
		return info
	}
	if refs.Links != nil {
		info.ReferenceLinks = refs.Links
	}

	c.logger.Info().Str("url", articleURL).Str("title", info.Title).Bool("heading", refs.HeadingFound).Int("references", len(info.ReferenceLinks)).Msg("article scanned")
	return info
}

// checkAll checks every unique reference once. With LinkConcurrency 1 the
// checks run strictly one after another; larger values fan out up to that
// limit. Results keep discovery order either way.
func (a *Auditor) checkAll(ctx context.Context, state *runState) error {
	c := a.crawler
	total := state.refs.Len()
	state.links = make([]result.LinkResult, total)

	var (
		mu       sync.Mutex
		done     int
		broken   int
		timeouts int
	)

	var g errgroup.Group
	g.SetLimit(c.cfg.LinkConcurrency)

	i := 0
	for pair := state.refs.Oldest(); pair != nil; pair = pair.Next() {
		idx, ref, own := i, pair.Key, pair.Value
		i++

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			check := CheckLinkWithRetry(ctx, a.client, ref, c.cfg.LinkTimeout, c.cfg.Retry)
			link := toLinkResult(check, own)
			state.links[idx] = link

			logEntry := c.logger.Info()
			if !link.Working() {
				logEntry = c.logger.Warn()
			}
			logEntry.Str("url", ref).Int("status", link.StatusCode()).Str("category", string(link.Category)).Int("attempts", link.Attempts).Str("error", link.ErrorMessage).Msg("reference checked")

			mu.Lock()
			done++
			if link.IsBroken {
				broken++
			}
			if link.IsTimeout {
				timeouts++
			}
			evt := CrawlEvent{Phase: PhaseCheck, URL: ref, Status: link.StatusCode(), Error: link.ErrorMessage, Done: done, Total: total, Broken: broken, Timeouts: timeouts}
			mu.Unlock()

			c.emit(evt)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("check references: %w", err)
	}
	return ctx.Err()
}

// toLinkResult turns a finished check into a report row. The category is
// the single source for the broken and timeout flags.
func toLinkResult(check LinkCheck, own owner) result.LinkResult {
	link := result.LinkResult{
		OriginalURL:  check.URL,
		FoundOnPage:  own.URL,
		ArticleTitle: own.Title,
		Status:       check.Status,
		StatusText:   check.StatusText,
		RedirectedTo: check.FinalURL,
		Attempts:     check.Attempts,
	}
	if check.Err != nil {
		link.ErrorMessage = check.Err.Error()
	}

	link.Category = result.Classify(check.Status, check.Err)
	link.IsBroken = link.Category == result.CategoryBroken
	link.IsTimeout = link.Category == result.CategoryTimeout
	return link
}

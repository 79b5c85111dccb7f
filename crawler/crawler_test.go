package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phuslu/log"

	"github.com/lukemcguire/refcrawl/browser"
	"github.com/lukemcguire/refcrawl/crawler"
)

// quietLogger discards log output in tests.
func quietLogger() *log.Logger {
	return &log.Logger{Level: log.InfoLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}

// newReferenceServer serves the external reference targets. Its URL uses
// "localhost" so the references do not share the blog's 127.0.0.1 domain.
//
//	/ok      -> 200
//	/gone    -> 404
//	/old     -> 301 to /new (200)
//	/shared  -> 200
//	/slow    -> never answers in time
func newReferenceServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/shared", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, strings.Replace(server.URL, "127.0.0.1", "localhost", 1)
}

func article(title, body string) string {
	return fmt.Sprintf(`<html><body>
		<header><a href="/">Blog</a></header>
		<h1>%s</h1>
		%s
		%s
		<footer><a href="https://social.example.org/share">Share</a></footer>
	</body></html>`, title, body, strings.Repeat("<p>Comment</p>", 25))
}

// newBlogServer creates a paginated blog.
//
//	/        -> power-training, healthy-fats, author page, off-site link, /page/2
//	/page/2  -> power-training (again), how-to-stay-active-daily, /page/3
//	/page/3  -> server-error article, /page/4, off-site pagination
//	/page/4  -> 404
func newBlogServer(t *testing.T, refs string, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	serve := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, body)
		})
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, `<html><body>
			<a href="/tag/fitness/power-training">Power</a>
			<a href="/tag/fitness/power-training#comments">Comments</a>
			<a href="/tag/nutrition/healthy-fats/">Fats</a>
			<a href="/author/jane-doe">Jane</a>
			<a href="/tag/fitness">Fitness</a>
			<a href="https://other.example.org/tag/fitness/elsewhere-post">Elsewhere</a>
			<a href="/page/2">Next</a>
		</body></html>`)
	})
	serve("/robots.txt", robots)
	serve("/page/2", `<html><body>
		<a href="/tag/fitness/power-training">Power again</a>
		<a href="/how-to-stay-active-daily">Active</a>
		<a href="/">Home</a>
		<a href="/page/3">Next</a>
	</body></html>`)
	serve("/page/3", `<html><body>
		<a href="/tag/misc/server-error-post">Broken article</a>
		<a href="/page/4">Next</a>
		<a href="https://other.example.org/page/9">Off-site listing</a>
	</body></html>`)
	mux.HandleFunc("/page/4", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	serve("/tag/fitness/power-training", article("Power Training", fmt.Sprintf(`
		<p>Intro linking <a href="%[1]s/ok?inline=1">a study</a>.</p>
		<h2>References</h2>
		<ul>
			<li><a href="%[1]s/ok">ok</a></li>
			<li><a href="%[1]s/gone">gone</a></li>
			<li><a href="%[1]s/old">moved</a></li>
			<li><a href="%[1]s/shared">shared</a></li>
		</ul>`, refs)))
	serve("/tag/nutrition/healthy-fats/", article("Healthy Fats &lt;script&gt;alert(1)&lt;/script&gt;", fmt.Sprintf(`
		<h2>Reference</h2>
		<ul>
			<li><a href="%[1]s/shared">shared again</a></li>
			<li><a href="%[1]s/slow">slow</a></li>
			<li><a href="/tag/nutrition/related-post">related</a></li>
			<li><a href="http://127.0.0.1/self">self</a></li>
		</ul>`, refs)))
	serve("/how-to-stay-active-daily", article("Stay Active", `<p>No sources here.</p>`))
	mux.HandleFunc("/tag/misc/server-error-post", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(target string) crawler.Config {
	cfg := crawler.DefaultConfig(target)
	cfg.MaxPages = 0
	cfg.RateLimit = 0
	cfg.CrawlTimeout = 5 * time.Second
	cfg.LinkTimeout = 200 * time.Millisecond
	cfg.Retry = crawler.RetryPolicy{MaxAttempts: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	return cfg
}

func newCrawler(t *testing.T, cfg crawler.Config, progressCh chan<- crawler.CrawlEvent) *crawler.Crawler {
	t.Helper()
	c, err := crawler.New(cfg, browser.NewStatic(nil, cfg.UserAgent), quietLogger(), progressCh)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew_RejectsBadTarget(t *testing.T) {
	engine := browser.NewStatic(nil, "")
	if _, err := crawler.New(crawler.Config{}, engine, nil, nil); !errors.Is(err, crawler.ErrNoTarget) {
		t.Errorf("empty target error = %v, want ErrNoTarget", err)
	}
	for _, target := range []string{"ftp://blog.example.com/", "/relative/only", "http://[::1"} {
		if _, err := crawler.New(crawler.DefaultConfig(target), engine, nil, nil); err == nil {
			t.Errorf("New(%q) should fail", target)
		}
	}
}

func TestDiscover(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "")

	d, err := newCrawler(t, testConfig(blog.URL), nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	wantArticles := []string{
		blog.URL + "/tag/fitness/power-training",
		blog.URL + "/tag/nutrition/healthy-fats/",
		blog.URL + "/how-to-stay-active-daily",
		blog.URL + "/tag/misc/server-error-post",
	}
	if len(d.Articles) != len(wantArticles) {
		t.Fatalf("Articles = %v, want %v", d.Articles, wantArticles)
	}
	for i := range wantArticles {
		if d.Articles[i] != wantArticles[i] {
			t.Errorf("Articles[%d] = %q, want %q", i, d.Articles[i], wantArticles[i])
		}
	}

	wantPages := []string{blog.URL + "/", blog.URL + "/page/2", blog.URL + "/page/3", blog.URL + "/page/4"}
	if strings.Join(d.ListingPages, ",") != strings.Join(wantPages, ",") {
		t.Errorf("ListingPages = %v, want %v", d.ListingPages, wantPages)
	}
	if len(d.Failed) != 1 || d.Failed[0] != blog.URL+"/page/4" {
		t.Errorf("Failed = %v, want only /page/4", d.Failed)
	}
}

func TestDiscover_Idempotent(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "")
	c := newCrawler(t, testConfig(blog.URL), nil)

	first, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	second, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("second Discover() error: %v", err)
	}
	if strings.Join(first.Articles, ",") != strings.Join(second.Articles, ",") {
		t.Errorf("runs disagree:\n%v\n%v", first.Articles, second.Articles)
	}
}

func TestDiscover_PageCap(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "")

	tests := []struct {
		maxPages     int
		wantPages    int
		wantArticles int
	}{
		{1, 1, 2},
		{2, 2, 3},
		{0, 4, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max_%d", tt.maxPages), func(t *testing.T) {
			cfg := testConfig(blog.URL)
			cfg.MaxPages = tt.maxPages
			d, err := newCrawler(t, cfg, nil).Discover(context.Background())
			if err != nil {
				t.Fatalf("Discover() error: %v", err)
			}
			if len(d.ListingPages) != tt.wantPages {
				t.Errorf("visited %d listing pages, want %d", len(d.ListingPages), tt.wantPages)
			}
			if len(d.Articles) != tt.wantArticles {
				t.Errorf("found %d articles, want %d: %v", len(d.Articles), tt.wantArticles, d.Articles)
			}
		})
	}
}

func TestDiscover_HangingRobotsDoesNotBlock(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><a href="/tag/fitness/power-training">Power</a></body></html>`)
	})
	blog := httptest.NewServer(mux)
	t.Cleanup(blog.Close)

	cfg := testConfig(blog.URL)
	cfg.CrawlTimeout = 200 * time.Millisecond

	type outcome struct {
		d   *crawler.Discovery
		err error
	}
	c := newCrawler(t, cfg, nil)
	done := make(chan outcome, 1)
	go func() {
		d, err := c.Discover(context.Background())
		done <- outcome{d, err}
	}()

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("Discover() error: %v", got.err)
		}
		if len(got.d.Articles) != 1 || got.d.Articles[0] != blog.URL+"/tag/fitness/power-training" {
			t.Errorf("Articles = %v, want the listed article", got.d.Articles)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Discover still blocked on robots.txt")
	}
}

func TestDiscover_PaginationFragmentsCollapse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, `<html><body>
			<a href="/page/2#top">Next</a>
			<a href="/page/2">2</a>
		</body></html>`)
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><a href="/page/2#comments">Self</a></body></html>`)
	})
	blog := httptest.NewServer(mux)
	t.Cleanup(blog.Close)

	d, err := newCrawler(t, testConfig(blog.URL), nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	want := []string{blog.URL + "/", blog.URL + "/page/2"}
	if strings.Join(d.ListingPages, ",") != strings.Join(want, ",") {
		t.Errorf("ListingPages = %v, want %v", d.ListingPages, want)
	}
}

func TestDiscover_LogsPacing(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "")

	var buf strings.Builder
	logger := &log.Logger{Level: log.InfoLevel, Writer: &log.IOWriter{Writer: &buf}}
	cfg := testConfig(blog.URL)
	cfg.RateLimit = 50
	c, err := crawler.New(cfg, browser.NewStatic(nil, cfg.UserAgent), logger, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := c.Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	var summary string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "discovery complete") {
			summary = line
		}
	}
	for _, field := range []string{`"avg_page_load"`, `"pace_rps"`} {
		if !strings.Contains(summary, field) {
			t.Errorf("discovery summary missing %s: %s", field, summary)
		}
	}
}

func TestDiscover_RespectsRobots(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "User-agent: *\nDisallow: /page/2\n")

	cfg := testConfig(blog.URL)
	d, err := newCrawler(t, cfg, nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(d.Disallowed) != 1 || d.Disallowed[0] != blog.URL+"/page/2" {
		t.Errorf("Disallowed = %v", d.Disallowed)
	}
	if len(d.Articles) != 2 {
		t.Errorf("Articles = %v, want only the root page's two", d.Articles)
	}

	cfg.IgnoreRobots = true
	d, err = newCrawler(t, cfg, nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(d.Disallowed) != 0 || len(d.Articles) != 4 {
		t.Errorf("IgnoreRobots: Disallowed = %v, Articles = %v", d.Disallowed, d.Articles)
	}
}

func TestDiscover_UnreachableSeed(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := dead.URL
	dead.Close()

	cfg := testConfig(addr)
	cfg.IgnoreRobots = true
	d, err := newCrawler(t, cfg, nil).Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(d.Articles) != 0 || len(d.Failed) != 1 {
		t.Errorf("expected one failed page and no articles, got %+v", d)
	}
}

func TestDiscover_Cancelled(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newCrawler(t, testConfig(blog.URL), nil).Discover(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Discover() error = %v, want context.Canceled", err)
	}
}

func TestDiscover_ProgressEvents(t *testing.T) {
	_, refs := newReferenceServer(t)
	blog := newBlogServer(t, refs, "")

	events := make(chan crawler.CrawlEvent, 100)
	if _, err := newCrawler(t, testConfig(blog.URL), events).Discover(context.Background()); err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	close(events)

	var got []crawler.CrawlEvent
	for evt := range events {
		got = append(got, evt)
	}
	if len(got) != 4 {
		t.Fatalf("expected one event per listing page, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.Phase != crawler.PhaseDiscover || last.Status != http.StatusNotFound || last.Error == "" {
		t.Errorf("unexpected event for /page/4: %+v", last)
	}
	if got[2].Found != 4 {
		t.Errorf("Found = %d after /page/3, want 4", got[2].Found)
	}
}

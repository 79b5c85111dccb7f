package crawler

import (
	"fmt"
	"io"
	"net/url"

	"golang.org/x/net/html"

	"github.com/lukemcguire/refcrawl/urlutil"
)

// ExtractLinks tokenizes HTML from body and returns every anchor href,
// resolved against baseURL, fragment-stripped and deduplicated in document
// order. Non-HTTP schemes are dropped; keep, when non-nil, filters the rest.
func ExtractLinks(body io.Reader, baseURL *url.URL, keep func(string) bool) ([]string, error) {
	tokenizer := html.NewTokenizer(body)
	seen := make(map[string]bool)
	links := []string{}
	var errs []error

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != nil && err != io.EOF {
				return links, fmt.Errorf("tokenize html: %w", err)
			}
			if len(errs) > 0 {
				return links, fmt.Errorf("encountered %d bad hrefs (first: %w)", len(errs), errs[0])
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key != "href" || attr.Val == "" {
					continue
				}
				resolved, err := urlutil.Resolve(baseURL, attr.Val, true)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if !urlutil.IsHTTPScheme(resolved) || seen[resolved] {
					continue
				}
				if keep != nil && !keep(resolved) {
					continue
				}
				seen[resolved] = true
				links = append(links, resolved)
			}
		}
	}
}

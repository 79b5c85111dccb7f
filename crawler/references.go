package crawler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/lukemcguire/refcrawl/browser"
)

// DefaultReferenceWindow is how far below the References heading, in layout
// units, a link may sit and still count as a reference.
const DefaultReferenceWindow = 500.0

// DefaultReferenceHeading matches the trimmed text of a References heading.
var DefaultReferenceHeading = regexp.MustCompile(`(?i)^references?$`)

// ReferenceRules controls reference extraction for one site.
type ReferenceRules struct {
	Window     float64        // links must satisfy anchor < top < anchor+Window
	SiteDomain string         // hrefs containing this are treated as internal
	Heading    *regexp.Regexp // matched against trimmed text nodes
}

// DefaultReferenceRules returns rules for a site whose registrable domain is siteDomain.
func DefaultReferenceRules(siteDomain string) ReferenceRules {
	return ReferenceRules{
		Window:     DefaultReferenceWindow,
		SiteDomain: siteDomain,
		Heading:    DefaultReferenceHeading,
	}
}

// References is what one article page yields.
type References struct {
	Title        string
	Links        []string
	HeadingFound bool
	HeadingTop   float64
}

// ExtractReferences reads the article title and the external links placed
// just below its References heading. A page without the heading yields no
// links and no error. The page is only queried, never modified.
func ExtractReferences(ctx context.Context, page browser.Page, rules ReferenceRules) (References, error) {
	refs := References{Title: articleTitle(ctx, page)}

	if rules.Window <= 0 {
		rules.Window = DefaultReferenceWindow
	}
	if rules.Heading == nil {
		rules.Heading = DefaultReferenceHeading
	}

	layout, err := page.Layout(ctx)
	if err != nil {
		return refs, fmt.Errorf("read layout of %s: %w", page.URL(), err)
	}

	for _, text := range layout.Texts {
		if rules.Heading.MatchString(strings.TrimSpace(text.Text)) {
			refs.HeadingFound = true
			refs.HeadingTop = text.Top
			break
		}
	}
	if !refs.HeadingFound {
		return refs, nil
	}

	seen := make(map[string]bool)
	for _, link := range layout.Links {
		if link.Top <= refs.HeadingTop || link.Top >= refs.HeadingTop+rules.Window {
			continue
		}
		if !isExternalReference(link.Href, rules.SiteDomain) || seen[link.Href] {
			continue
		}
		seen[link.Href] = true
		refs.Links = append(refs.Links, link.Href)
	}
	return refs, nil
}

// articleTitle returns the trimmed first h1, or the page URL when there is none.
func articleTitle(ctx context.Context, page browser.Page) string {
	text, err := page.FirstText(ctx, "h1")
	if err != nil {
		return page.URL()
	}
	if title := strings.TrimSpace(text); title != "" {
		return title
	}
	return page.URL()
}

func isExternalReference(href, siteDomain string) bool {
	if !strings.HasPrefix(href, "http") {
		return false
	}
	return siteDomain == "" || !strings.Contains(href, siteDomain)
}

package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// DefaultExcludePatterns rejects author, pagination, category, query, asset
// and pseudo-scheme URLs before any path-shape check runs.
var DefaultExcludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/author/`),
	regexp.MustCompile(`(?i)/page/-?\d+`),
	regexp.MustCompile(`(?i)/category/`),
	regexp.MustCompile(`\?`),
	regexp.MustCompile(`(?i)\.(pdf|jpg|jpeg|png|gif|svg|webp|ico|zip|mp4|mp3|wav|css|js|json|xml|txt|woff|woff2|ttf|eot)$`),
	regexp.MustCompile(`(?i)/hubfs/`),
	regexp.MustCompile(`(?i)/hs-fs/`),
	regexp.MustCompile(`(?i)/wp-content/`),
	regexp.MustCompile(`(?i)/wp-includes/`),
	regexp.MustCompile(`/#`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)mailto:`),
}

// ArticleRules decides whether a URL points at a single blog article.
// The zero value is not useful; start from DefaultArticleRules.
type ArticleRules struct {
	ExcludePatterns   []*regexp.Regexp // any match rejects the URL
	TagPrefix         string           // first path segment of /<prefix>/<category>/<slug>
	MinSlugLength     int              // slug must be longer than this
	MinTopLevelLength int              // single-segment paths must be longer than this
}

// DefaultArticleRules returns the rules tuned for /tag/<category>/<slug> blogs.
func DefaultArticleRules() ArticleRules {
	return ArticleRules{
		ExcludePatterns:   DefaultExcludePatterns,
		TagPrefix:         "tag",
		MinSlugLength:     5,
		MinTopLevelLength: 10,
	}
}

// Verdict explains how ArticleRules classified a URL.
type Verdict struct {
	URL           string
	Path          string
	ExcludedBy    string // pattern that rejected the URL, if any
	TagMatch      bool
	Category      string
	Slug          string
	SlugHasHyphen bool
	SlugLength    int
	TopLevelMatch bool
	ParseError    string
	IsArticle     bool
}

// IsBlogArticle reports whether rawURL is an article under the default rules.
func IsBlogArticle(rawURL string) bool {
	return DefaultArticleRules().IsArticle(rawURL)
}

// IsArticle reports whether rawURL is an article page.
func (r ArticleRules) IsArticle(rawURL string) bool {
	return r.Explain(rawURL).IsArticle
}

// Explain classifies rawURL and records every intermediate decision.
func (r ArticleRules) Explain(rawURL string) Verdict {
	v := Verdict{URL: rawURL}

	for _, pattern := range r.ExcludePatterns {
		if pattern.MatchString(rawURL) {
			v.ExcludedBy = pattern.String()
			return v
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		v.ParseError = err.Error()
		return v
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		v.ParseError = ErrNotAbsolute.Error()
		return v
	}
	v.Path = parsed.Path

	segments := strings.Split(strings.TrimSuffix(parsed.Path, "/"), "/")
	// "/tag/fitness/power-training" splits into ["", "tag", "fitness", "power-training"].
	if len(segments) == 4 && segments[0] == "" && segments[1] == r.TagPrefix &&
		segments[2] != "" && segments[3] != "" {
		v.TagMatch = true
		v.Category = segments[2]
		v.Slug = segments[3]
		v.SlugHasHyphen = strings.Contains(v.Slug, "-")
		v.SlugLength = len(v.Slug)
		if v.SlugHasHyphen && v.SlugLength > r.MinSlugLength {
			v.IsArticle = true
			return v
		}
	}

	var parts []string
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 1 && strings.Contains(parts[0], "-") && len(parts[0]) > r.MinTopLevelLength {
		v.TopLevelMatch = true
		v.IsArticle = true
	}

	return v
}

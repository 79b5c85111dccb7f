package result

import "time"

// ArticleInfo is one discovered blog article and the references found on it.
type ArticleInfo struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	ReferenceLinks []string `json:"referenceLinks"`
}

// HasReferences reports whether the article carries at least one reference link.
func (a ArticleInfo) HasReferences() bool {
	return len(a.ReferenceLinks) > 0
}

// LinkResult is the outcome of checking one unique reference URL.
type LinkResult struct {
	OriginalURL  string   `json:"originalUrl"`
	FoundOnPage  string   `json:"foundOnPage"`
	ArticleTitle string   `json:"articleTitle"`
	Status       *int     `json:"status"`
	StatusText   string   `json:"statusText,omitempty"`
	RedirectedTo string   `json:"redirectedTo,omitempty"`
	IsBroken     bool     `json:"isBroken"`
	IsTimeout    bool     `json:"isTimeout"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	Attempts     int      `json:"attempts"`
	Category     Category `json:"category"`
}

// Working reports whether the link is neither broken nor timed out.
func (l LinkResult) Working() bool {
	return !l.IsBroken && !l.IsTimeout
}

// Redirected reports whether a working link ended up on a different URL.
func (l LinkResult) Redirected() bool {
	return l.RedirectedTo != "" && l.Working()
}

// StatusCode returns the HTTP status or 0 when no response was received.
func (l LinkResult) StatusCode() int {
	if l.Status == nil {
		return 0
	}
	return *l.Status
}

// Stats contains aggregate counters for one audit run.
type Stats struct {
	ListingPages           int           `json:"listingPages"`
	ArticlesFound          int           `json:"articlesFound"`
	ArticlesWithReferences int           `json:"articlesWithReferences"`
	ReferenceLinks         int           `json:"referenceLinks"`
	Broken                 int           `json:"broken"`
	Timeouts               int           `json:"timeouts"`
	Redirects              int           `json:"redirects"`
	Working                int           `json:"working"`
	Duration               time.Duration `json:"duration"`
}

// Report is the complete output of an audit run.
type Report struct {
	RunID     string        `json:"runId"`
	TargetURL string        `json:"targetUrl"`
	StartedAt time.Time     `json:"startedAt"`
	Articles  []ArticleInfo `json:"articles"`
	Links     []LinkResult  `json:"links"`
	Broken    []LinkResult  `json:"broken"`
	Timeouts  []LinkResult  `json:"timeouts"`
	Stats     Stats         `json:"stats"`
}

// HasBrokenStatus reports whether any reference answered with a status >= 400.
// Transport failures and timeouts do not count.
func (r *Report) HasBrokenStatus() bool {
	for _, link := range r.Links {
		if link.StatusCode() >= 400 {
			return true
		}
	}
	return false
}

// Tally recomputes Stats from the article and link lists. Duration and
// ListingPages are left untouched.
func (r *Report) Tally() {
	r.Stats.ArticlesFound = len(r.Articles)
	r.Stats.ArticlesWithReferences = 0
	for _, article := range r.Articles {
		if article.HasReferences() {
			r.Stats.ArticlesWithReferences++
		}
	}

	r.Broken = r.Broken[:0]
	r.Timeouts = r.Timeouts[:0]
	r.Stats.Redirects = 0
	r.Stats.Working = 0
	for _, link := range r.Links {
		switch {
		case link.IsBroken:
			r.Broken = append(r.Broken, link)
		case link.IsTimeout:
			r.Timeouts = append(r.Timeouts, link)
		default:
			r.Stats.Working++
			if link.Redirected() {
				r.Stats.Redirects++
			}
		}
	}
	r.Stats.ReferenceLinks = len(r.Links)
	r.Stats.Broken = len(r.Broken)
	r.Stats.Timeouts = len(r.Timeouts)
}

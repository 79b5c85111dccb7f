package crawler

// Phase names a stage of an audit run.
type Phase string

const (
	PhaseDiscover Phase = "discover"
	PhaseExtract  Phase = "extract"
	PhaseCheck    Phase = "check"
	PhaseDone     Phase = "done"
)

// CrawlEvent reports progress for a single page or reference link.
type CrawlEvent struct {
	Phase    Phase
	URL      string
	Status   int    // HTTP status, 0 when unknown
	Error    string // load or check failure
	Found    int    // articles discovered, or references on an article
	Done     int    // items finished in the current phase
	Total    int    // items in the current phase, 0 while unknown
	Broken   int
	Timeouts int
}

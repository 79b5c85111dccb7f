package crawler

// Frontier is the FIFO queue of listing pages still to visit. A URL is
// accepted at most once: Push rejects anything already queued or already
// taken off the queue.
type Frontier struct {
	queue  []string
	queued map[string]struct{}
	seen   *VisitedTracker
}

// NewFrontier creates an empty frontier that records dequeued URLs in seen.
func NewFrontier(seen *VisitedTracker) *Frontier {
	return &Frontier{
		queued: make(map[string]struct{}),
		seen:   seen,
	}
}

// Push enqueues rawURL and reports whether it was new.
func (f *Frontier) Push(rawURL string) bool {
	if _, ok := f.queued[rawURL]; ok {
		return false
	}
	if f.seen.IsVisited(rawURL) {
		return false
	}
	f.queued[rawURL] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

// Pop removes the oldest URL and marks it seen.
func (f *Frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	next := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.queued, next)
	f.seen.VisitIfNew(next)
	return next, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.queue)
}

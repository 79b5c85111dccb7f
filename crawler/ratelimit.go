package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// emaAlpha weights a new RTT sample against the running average.
	emaAlpha = 0.2

	// recoveryFactor raises the rate after a fast response.
	recoveryFactor = 1.1

	// backoffFactor bounds how far one slow response can drop the rate.
	backoffFactor = 0.5

	// minPaceRate is the slowest pace, in requests per second.
	minPaceRate = 0.5

	// DefaultTargetRTT is the page load time the pacer aims to stay under.
	DefaultTargetRTT = 2 * time.Second
)

// Pacer spaces out page loads against the target site. It starts at the
// configured rate, slows down while page loads exceed the target RTT and
// recovers towards (never past) the configured rate once they speed up.
type Pacer struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	ceiling   float64
	current   float64
	targetRTT time.Duration
	emaRTT    time.Duration
}

// NewPacer creates a pacer allowing rps requests per second.
// rps <= 0 disables pacing entirely.
func NewPacer(rps float64, targetRTT time.Duration) *Pacer {
	if targetRTT <= 0 {
		targetRTT = DefaultTargetRTT
	}
	if rps <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1), ceiling: math.Inf(1), current: math.Inf(1), targetRTT: targetRTT, emaRTT: targetRTT}
	}
	return &Pacer{
		limiter:   rate.NewLimiter(rate.Limit(rps), burstFor(rps)),
		ceiling:   rps,
		current:   rps,
		targetRTT: targetRTT,
		emaRTT:    targetRTT,
	}
}

// Wait blocks until the next page load may start or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Observe records how long a page load took and adjusts the pace.
func (p *Pacer) Observe(rtt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if math.IsInf(p.ceiling, 1) {
		return
	}

	p.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(p.emaRTT))
	ratio := float64(p.targetRTT) / float64(p.emaRTT)

	next := p.current * recoveryFactor
	if ratio < 1 {
		next = math.Max(p.current*ratio, p.current*backoffFactor)
	}
	next = math.Min(math.Max(next, minPaceRate), p.ceiling)

	if math.Abs(next-p.current) > 0.01 {
		p.current = next
		p.limiter.SetLimit(rate.Limit(next))
		p.limiter.SetBurst(burstFor(next))
	}
}

// Rate returns the current pace in requests per second.
func (p *Pacer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// AverageRTT returns the smoothed page load time.
func (p *Pacer) AverageRTT() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emaRTT
}

func burstFor(rps float64) int {
	return max(1, int(math.Ceil(rps)))
}

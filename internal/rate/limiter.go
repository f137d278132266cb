package rate

import (
	"context"
	"sync"
	"time"
)

// Config holds the window parameters for a limiter instance.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter answers whether a request under the given identifier exceeds the
// configured budget. Implementations count the call itself: asking is
// spending.
type Limiter interface {
	IsRateLimited(ctx context.Context, identifier string) (bool, error)
}

// SlidingWindow is the in-memory limiter. Per identifier it keeps the
// timestamps of recent requests; each call prunes entries older than the
// window, appends now, and compares the count against the budget.
//
// Safe for concurrent use within one process only. Horizontally scaled
// deployments need [NewRedisLimiter] so instances share one budget.
type SlidingWindow struct {
	mu   sync.Mutex
	cfg  Config
	hits map[string][]time.Time
	now  func() time.Time
}

// NewSlidingWindow creates an in-memory sliding-window limiter.
func NewSlidingWindow(cfg Config) *SlidingWindow {
	return &SlidingWindow{
		cfg:  cfg,
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

// IsRateLimited records the request and reports whether the identifier has
// exceeded MaxRequests within the trailing window. The decision comes from
// the pruned in-window count; a per-identifier list that grows beyond twice
// the budget is then trimmed to the most recent MaxRequests entries so
// sustained abuse cannot grow memory unbounded. Trimming never changes the
// decision: every in-window entry past the budget keeps the caller limited.
func (l *SlidingWindow) IsRateLimited(_ context.Context, identifier string) (bool, error) {
	if l.cfg.MaxRequests <= 0 {
		return false, nil
	}
	now := l.now()
	cutoff := now.Add(-l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.hits[identifier]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	limited := len(kept) > l.cfg.MaxRequests

	if len(kept) > 2*l.cfg.MaxRequests {
		kept = kept[len(kept)-l.cfg.MaxRequests:]
	}
	l.hits[identifier] = kept

	return limited, nil
}

// Reset forgets all recorded requests for the identifier.
func (l *SlidingWindow) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, identifier)
}

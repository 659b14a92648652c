package security

import (
	"context"
	"sync"
	"time"

	"github.com/mnaflow/crm-guard/internal/common/logging"
	"github.com/mnaflow/crm-guard/internal/monitoring"
)

// DefaultIdleHorizon is how long an empty window is kept before a sweep drops it
const DefaultIdleHorizon = time.Hour

// Limiter decides whether one more event is allowed for identifier.
// Callers compose identifiers themselves, e.g. "user123:login".
type Limiter interface {
	IsAllowed(identifier string, limit int, window time.Duration) bool
}

// rateWindow is the sliding window for one identifier
type rateWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastSeen   time.Time
	// window is the longest window this identifier has been checked with
	window  time.Duration
	evicted bool
}

// prune drops timestamps that are at least window old. Timestamps are
// appended in order so the survivors are a suffix.
func (w *rateWindow) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(w.timestamps) && now.Sub(w.timestamps[i]) >= window {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// RateLimiter is an in-memory sliding-window limiter. Each identifier has its
// own mutex so prune, count and append happen atomically per identifier;
// the table mutex only guards lookups and sweeps.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*rateWindow
	clock       Clock
	idleHorizon time.Duration
	logger      *logging.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter creates a limiter; idleHorizon <= 0 uses DefaultIdleHorizon
func NewRateLimiter(idleHorizon time.Duration, logger *logging.Logger) *RateLimiter {
	if idleHorizon <= 0 {
		idleHorizon = DefaultIdleHorizon
	}
	if logger == nil {
		logger = logging.New("ratelimit", logging.LevelInfo)
	}
	return &RateLimiter{
		windows:     make(map[string]*rateWindow),
		clock:       SystemClock{},
		idleHorizon: idleHorizon,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// WithClock sets a custom clock (for testing)
func (l *RateLimiter) WithClock(clock Clock) *RateLimiter {
	l.clock = clock
	return l
}

// IsAllowed prunes entries at least window old, then denies without
// recording when the remaining count is >= limit, else records now and allows.
func (l *RateLimiter) IsAllowed(identifier string, limit int, window time.Duration) bool {
	for {
		w := l.windowFor(identifier)

		w.mu.Lock()
		if w.evicted {
			// lost a race with Sweep; the next lookup creates a fresh window
			w.mu.Unlock()
			continue
		}

		now := l.clock.Now()
		w.lastSeen = now
		w.window = max(w.window, window)
		w.prune(now, window)

		allowed := limit > 0 && len(w.timestamps) < limit
		if allowed {
			w.timestamps = append(w.timestamps, now)
		}
		w.mu.Unlock()

		monitoring.RecordRateLimitDecision(allowed)
		if !allowed {
			l.logger.DebugKV("Rate limit exceeded", "identifier", identifier, "limit", limit, "window", window)
		}
		return allowed
	}
}

// Remaining returns how many more events identifier may record in window
// without recording anything itself
func (l *RateLimiter) Remaining(identifier string, limit int, window time.Duration) int {
	l.mu.Lock()
	w, ok := l.windows[identifier]
	l.mu.Unlock()
	if !ok {
		return max(limit, 0)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	now := l.clock.Now()
	count := 0
	for _, ts := range w.timestamps {
		if now.Sub(ts) < window {
			count++
		}
	}
	return max(limit-count, 0)
}

func (l *RateLimiter) windowFor(identifier string) *rateWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identifier]
	if !ok {
		w = &rateWindow{}
		l.windows[identifier] = w
	}
	return w
}

// Sweep evicts identifiers whose window is empty after pruning with their own
// window and that have not been checked within the idle horizon. Timestamps
// still inside their window are never dropped. Returns the number evicted.
func (l *RateLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	evicted := 0
	for id, w := range l.windows {
		w.mu.Lock()
		w.prune(now, w.window)
		if len(w.timestamps) == 0 && now.Sub(w.lastSeen) >= l.idleHorizon {
			w.evicted = true
			delete(l.windows, id)
			evicted++
		}
		w.mu.Unlock()
	}

	monitoring.RecordRateLimitSweep(len(l.windows), evicted)
	if evicted > 0 {
		l.logger.DebugKV("Rate limit sweep", "evicted", evicted, "tracked", len(l.windows))
	}
	return evicted
}

// Len returns the number of tracked identifiers
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Start runs Sweep every interval until ctx is done or Close is called.
// interval <= 0 disables the loop; Sweep can still be called directly.
func (l *RateLimiter) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-ctx.Done():
				return
			case <-l.done:
				return
			}
		}
	}()
}

// Close stops the sweep loop. Safe to call multiple times.
func (l *RateLimiter) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	return nil
}

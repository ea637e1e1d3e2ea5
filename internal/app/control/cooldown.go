package control

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// tagCooldown suppresses repeated detections of the same tag inside a
// cooldown window. Readers re-report a tag that stays on the device
// every poll cycle; without this, detection counts and playback
// triggers would fire continuously. Each UID gets its own single-token
// limiter that refills once per window.
type tagCooldown struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	window   time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleAfter is how long an idle entry survives before pruning.
const staleAfter = 10 * time.Minute

// newTagCooldown creates a cooldown tracker. A non-positive window
// disables suppression.
func newTagCooldown(window time.Duration) *tagCooldown {
	return &tagCooldown{
		limiters: make(map[string]*limiterEntry),
		window:   window,
	}
}

// Allow reports whether a detection of the given UID should pass.
func (c *tagCooldown) Allow(uid string) bool {
	if c.window <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry, ok := c.limiters[uid]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(c.window), 1)}
		c.limiters[uid] = entry
	}
	entry.lastSeen = now

	c.pruneLocked(now)
	return entry.limiter.Allow()
}

// pruneLocked drops entries for tags not seen in a while.
func (c *tagCooldown) pruneLocked(now time.Time) {
	for uid, entry := range c.limiters {
		if now.Sub(entry.lastSeen) > staleAfter {
			delete(c.limiters, uid)
		}
	}
}

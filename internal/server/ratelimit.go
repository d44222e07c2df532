package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter manages request rate limiting and daily quotas per client.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	burst             int
	maxRequestsPerDay int
	maxDataPerDay     int64

	clients map[string]*clientUsage
	now     func() time.Time
}

// clientUsage tracks usage for a specific client.
type clientUsage struct {
	limiter       *rate.Limiter
	requestsToday int
	dataToday     int64
	dayStart      time.Time
	lastSeen      time.Time
}

// Usage is a snapshot of one client's consumption.
type Usage struct {
	RequestsToday int
	DataToday     int64
	LastSeen      time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	return &RateLimiter{
		requestsPerMinute: cfg.RequestsPerMinute,
		burst:             burst,
		maxRequestsPerDay: cfg.MaxRequestsPerDay,
		maxDataPerDay:     cfg.MaxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit checks if a request from the given client is allowed and
// records it when it is.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.getOrCreate(clientID, now)
	usage.lastSeen = now

	if !sameDay(usage.dayStart, now) {
		usage.requestsToday = 0
		usage.dataToday = 0
		usage.dayStart = now
	}

	if err := rl.checkDailyQuotas(usage, dataSize, now); err != nil {
		return err
	}

	if usage.limiter != nil {
		r := usage.limiter.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			return &RateLimitError{
				Type:       "minute",
				Limit:      rl.requestsPerMinute,
				RetryAfter: delay,
			}
		}
	}

	usage.requestsToday++
	usage.dataToday += dataSize
	return nil
}

// checkDailyQuotas checks daily request and data quotas.
func (rl *RateLimiter) checkDailyQuotas(usage *clientUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	if rl.maxRequestsPerDay > 0 && usage.requestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.requestsToday),
			Resets: resets,
		}
	}

	if rl.maxDataPerDay > 0 && usage.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: resets,
		}
	}

	return nil
}

func (rl *RateLimiter) getOrCreate(clientID string, now time.Time) *clientUsage {
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &clientUsage{dayStart: now}
		if rl.requestsPerMinute > 0 {
			every := time.Minute / time.Duration(rl.requestsPerMinute)
			usage.limiter = rate.NewLimiter(rate.Every(every), rl.burst)
		}
		rl.clients[clientID] = usage
	}
	return usage
}

// GetUsage returns current usage statistics for a client.
func (rl *RateLimiter) GetUsage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.clients[clientID]; ok {
		return Usage{
			RequestsToday: usage.requestsToday,
			DataToday:     usage.dataToday,
			LastSeen:      usage.lastSeen,
		}
	}
	return Usage{}
}

// Prune drops clients not seen within maxIdle and returns how many were removed.
func (rl *RateLimiter) Prune(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for id, usage := range rl.clients {
		if usage.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

// Clients returns the number of clients with tracked state.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

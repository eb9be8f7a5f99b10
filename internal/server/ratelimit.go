package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RateLimiter enforces per-client request rates and daily quotas using fixed
// windows. A zero limit disables that check.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int

	hourStart time.Time
	hourCount int

	day       string // local date, 2006-01-02
	dayCount  int
	dayBytes  int64
	lastCheck time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int
	BytesToday         int64
}

// NewRateLimiter creates a new rate limiter with the given limits.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits or rejects one request of dataSize bytes from
// clientID. Rejected requests are not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usageFor(clientID, now)
	u.roll(now)

	if rl.requestsPerMinute > 0 && u.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: u.minuteStart.Add(time.Minute).Sub(now),
		}
	}
	if rl.requestsPerHour > 0 && u.hourCount >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: u.hourStart.Add(time.Hour).Sub(now),
		}
	}

	if rl.maxRequestsPerDay > 0 && u.dayCount >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(u.dayCount),
			Resets: nextMidnight(now),
		}
	}
	if rl.maxDataPerDay > 0 && u.dayBytes+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   u.dayBytes,
			Resets: nextMidnight(now),
		}
	}

	u.minuteCount++
	u.hourCount++
	u.dayCount++
	u.dayBytes += dataSize
	return nil
}

// Usage returns a snapshot of the counters for clientID.
func (rl *RateLimiter) Usage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	return Usage{
		RequestsLastMinute: u.minuteCount,
		RequestsLastHour:   u.hourCount,
		RequestsToday:      u.dayCount,
		BytesToday:         u.dayBytes,
	}
}

// Prune forgets clients not seen for longer than idle and returns how many
// were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, u := range rl.clients {
		if now.Sub(u.lastCheck) > idle {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) usageFor(clientID string, now time.Time) *clientUsage {
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now, day: now.Format(time.DateOnly)}
		rl.clients[clientID] = u
	}
	u.lastCheck = now
	return u
}

// roll starts new windows once the current ones have elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minuteCount = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hourCount = now, 0
	}
	if day := now.Format(time.DateOnly); day != u.day {
		u.day, u.dayCount, u.dayBytes = day, 0, 0
	}
}

// StartRateLimitPruning drops idle clients every interval until ctx is done.
// It is a no-op when rate limiting is disabled.
func (s *Server) StartRateLimitPruning(ctx context.Context, interval, idle time.Duration) {
	if s.rateLimiter == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.rateLimiter.Prune(idle); n > 0 {
					slog.Debug("Pruned idle rate limit clients", "count", n)
				}
			}
		}
	}()
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter.Round(time.Second))
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

package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/handwriter/internal/config"
)

// RateLimiter limits /write requests per client address. Minute and hour
// limits use fixed windows that open with a client's first request in
// them; the request and byte quotas reset at local midnight.
type RateLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	limits  config.RateLimitConfig
	clients map[string]*ClientUsage
}

// Window counts the requests made since Start.
type Window struct {
	Start time.Time
	Count int
}

// roll opens a new window once span has elapsed since Start.
func (w *Window) roll(now time.Time, span time.Duration) {
	if now.Sub(w.Start) >= span {
		w.Start = now
		w.Count = 0
	}
}

// ClientUsage is what one client has used so far.
type ClientUsage struct {
	Minute Window
	Hour   Window
	// Day is midnight of the day Requests and Bytes count for.
	Day      time.Time
	Requests int
	Bytes    int64
}

// NewRateLimiter creates a rate limiter for the configured limits. A zero
// limit is not enforced.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		now:     time.Now,
		limits:  cfg,
		clients: make(map[string]*ClientUsage),
	}
}

// Allow records a request carrying size body bytes for client, or returns
// a *RateLimitError or *QuotaExceededError without recording anything.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.usage(client, now)
	u.Minute.roll(now, time.Minute)
	u.Hour.roll(now, time.Hour)
	if day := midnight(now); !day.Equal(u.Day) {
		u.Day = day
		u.Requests = 0
		u.Bytes = 0
	}

	if err := windowExceeded("minute", u.Minute, rl.limits.RequestsPerMinute, time.Minute, now); err != nil {
		return err
	}
	if err := windowExceeded("hour", u.Hour, rl.limits.RequestsPerHour, time.Hour, now); err != nil {
		return err
	}

	resets := u.Day.AddDate(0, 0, 1)
	if limit := rl.limits.MaxRequestsPerDay; limit > 0 && u.Requests >= limit {
		return &QuotaExceededError{Type: "requests", Limit: int64(limit), Used: int64(u.Requests), Resets: resets}
	}
	if limit := rl.limits.MaxDataPerDayKB * 1024; limit > 0 && u.Bytes+size > limit {
		return &QuotaExceededError{Type: "data", Limit: limit, Used: u.Bytes, Resets: resets}
	}

	u.Minute.Count++
	u.Hour.Count++
	u.Requests++
	u.Bytes += size
	return nil
}

func windowExceeded(name string, w Window, limit int, span time.Duration, now time.Time) error {
	if limit <= 0 || w.Count < limit {
		return nil
	}
	return &RateLimitError{Type: name, Limit: limit, RetryAfter: w.Start.Add(span).Sub(now)}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (rl *RateLimiter) usage(client string, now time.Time) *ClientUsage {
	u, ok := rl.clients[client]
	if !ok {
		u = &ClientUsage{Minute: Window{Start: now}, Hour: Window{Start: now}, Day: midnight(now)}
		rl.clients[client] = u
	}
	return u
}

// Forget drops everything recorded for client.
func (rl *RateLimiter) Forget(client string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, client)
}

// Usage returns a copy of the usage recorded for client.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// RateLimitError is returned when a minute or hour window is full.
type RateLimitError struct {
	Type       string // minute, hour
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError is returned when a daily quota is used up.
type QuotaExceededError struct {
	Type   string // requests, data
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}

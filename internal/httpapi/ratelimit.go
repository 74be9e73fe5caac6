package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	sensitiveMaxAttempts = 5
	sensitiveWindow      = 15 * time.Minute
)

type attemptWindow struct {
	count   int
	started time.Time
}

// SensitiveLimiter is a fixed-window counter for credential endpoints, keyed
// by client IP plus user identity so one address cannot burn another user's
// budget. Windows reset in full once they lapse.
type SensitiveLimiter struct {
	mu      sync.Mutex
	windows map[string]*attemptWindow
	max     int
	window  time.Duration
	now     func() time.Time
}

// LimiterOption configures a SensitiveLimiter.
type LimiterOption func(*SensitiveLimiter)

// WithLimiterClock overrides the time source (useful for tests).
func WithLimiterClock(fn func() time.Time) LimiterOption {
	return func(l *SensitiveLimiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithLimits overrides the attempt budget and window length.
func WithLimits(max int, window time.Duration) LimiterOption {
	return func(l *SensitiveLimiter) {
		if max > 0 {
			l.max = max
		}
		if window > 0 {
			l.window = window
		}
	}
}

func NewSensitiveLimiter(opts ...LimiterOption) *SensitiveLimiter {
	l := &SensitiveLimiter{
		windows: make(map[string]*attemptWindow),
		max:     sensitiveMaxAttempts,
		window:  sensitiveWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow counts one attempt and reports whether it fits the window. When it
// does not, retryAfter is how long until the window resets.
func (l *SensitiveLimiter) Allow(ip, userID string) (bool, time.Duration) {
	if userID == "" {
		userID = "anonymous"
	}
	key := ip + ":" + userID

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.started) >= l.window {
		l.windows[key] = &attemptWindow{count: 1, started: now}
		return true, 0
	}
	if w.count >= l.max {
		return false, w.started.Add(l.window).Sub(now)
	}
	w.count++
	return true, 0
}

// limitSensitive applies the limiter to a handler and answers 429 with a
// retry hint when the budget is spent.
func (a *API) limitSensitive(w http.ResponseWriter, r *http.Request, userID string) bool {
	ok, retryAfter := a.limiter.Allow(clientIP(r), userID)
	if ok {
		return true
	}
	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"success":    false,
		"error":      "Too many attempts, please try again later",
		"retryAfter": seconds,
	})
	return false
}

package workflow

import (
	"sync"

	"golang.org/x/time/rate"
)

// UserLimiter is a per-user token bucket guarding generate/regenerate calls,
// so one reviewer cannot monopolize the content backend.
type UserLimiter struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	users  map[int64]*rate.Limiter
}

// NewUserLimiter allows perMin events per minute with the given burst.
// perMin <= 0 disables limiting.
func NewUserLimiter(perMin, burst int) *UserLimiter {
	if burst <= 0 {
		burst = 1
	}
	l := &UserLimiter{burst: burst, users: make(map[int64]*rate.Limiter)}
	if perMin > 0 {
		l.limit = rate.Limit(float64(perMin) / 60.0)
	} else {
		l.limit = rate.Inf
	}
	return l
}

func (l *UserLimiter) Allow(userID int64) bool {
	l.mu.Lock()
	lim := l.users[userID]
	if lim == nil {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.users[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

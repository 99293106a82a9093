package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
)

// SubjectLimiter is a token bucket per authenticated subject.
type SubjectLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// NewSubjectLimiter allows perMinute requests per subject with a burst of the same size.
// perMinute <= 0 disables limiting.
func NewSubjectLimiter(perMinute int) *SubjectLimiter {
	if perMinute <= 0 {
		return &SubjectLimiter{every: rate.Inf}
	}
	return &SubjectLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *SubjectLimiter) get(sub string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[sub]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[sub] = lim
	}
	return lim
}

func (l *SubjectLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.every == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}
		lim := l.get(auth.SubjectFromContext(r.Context()))
		if !lim.Allow() {
			retry := time.Duration(float64(time.Second) / float64(l.every))
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "too many submissions, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

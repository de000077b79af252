package api

import (
	"golang.org/x/time/rate"
)

// rateLimiter is a token bucket shared by every route on the Handler.
type rateLimiter struct {
	lim *rate.Limiter
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *rateLimiter) allow() bool {
	return l.lim.Allow()
}

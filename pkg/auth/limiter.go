package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// Per-client request budget. A polling client issues a list fetch every
// 10s and a thread fetch every 5s, so the defaults leave headroom for a
// burst of sends and read-marks on top of the poll cadence.
const (
	defaultRPS   = 5
	defaultBurst = 10
)

// limiterPool keeps one token bucket per remote client address. Buckets
// are retained for the life of the process.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &limiterPool{
		m:     make(map[string]*rate.Limiter),
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

// Allow reports whether the client may issue another request now.
func (p *limiterPool) Allow(client string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.m[client]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.m[client] = l
	}
	return l.Allow()
}

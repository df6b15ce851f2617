package client

import (
	"context"
	"time"
)

// Default polling cadences. The conversation list refreshes on a slower
// schedule than the open thread, mirroring how the two views are used.
const (
	DefaultListInterval   = 10 * time.Second
	DefaultThreadInterval = 5 * time.Second
)

// Poller drives near-real-time freshness for a Session without a push
// channel: two independent fixed-interval loops, one for the
// conversation list and one for the open thread. Ticks fire regardless
// of in-flight request completion; the Session skips a tick when the
// previous request has not resolved yet, so requests never pile up.
type Poller struct {
	Session        *Session
	ListInterval   time.Duration
	ThreadInterval time.Duration
}

// NewPoller returns a Poller with the default intervals.
func NewPoller(s *Session) *Poller {
	return &Poller{
		Session:        s,
		ListInterval:   DefaultListInterval,
		ThreadInterval: DefaultThreadInterval,
	}
}

// Run starts both polling loops and blocks until ctx is cancelled;
// cancellation is the "view unmounted" signal. Each tick dispatches its
// request in a goroutine so a slow or hung list call never starves the
// thread schedule (and vice versa); the Session's in-flight guards keep
// requests from piling up. The thread loop only issues requests while a
// conversation is open; switching the selection resets the Session's
// cursor, and any result that lands after a switch is discarded inside
// the Session by conversation-id comparison.
func (p *Poller) Run(ctx context.Context) {
	listIv := p.ListInterval
	if listIv <= 0 {
		listIv = DefaultListInterval
	}
	threadIv := p.ThreadInterval
	if threadIv <= 0 {
		threadIv = DefaultThreadInterval
	}

	// prime the list so the view has data as early as possible
	go func() { _ = p.Session.RefreshList(ctx) }()

	listT := time.NewTicker(listIv)
	threadT := time.NewTicker(threadIv)
	defer listT.Stop()
	defer threadT.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-listT.C:
			// poll failures keep last known good data; next tick retries
			go func() { _ = p.Session.RefreshList(ctx) }()
		case <-threadT.C:
			go func() { _ = p.Session.PollThread(ctx) }()
		}
	}
}

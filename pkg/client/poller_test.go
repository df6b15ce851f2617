package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"croptalk/pkg/chat"
	"croptalk/pkg/logger"
)

// countingService wraps fakeService to count list fetches.
type countingService struct {
	*fakeService
	mu        sync.Mutex
	listCalls int
}

func (c *countingService) Conversations(ctx context.Context, viewer string) ([]chat.ConversationView, error) {
	c.mu.Lock()
	c.listCalls++
	c.mu.Unlock()
	return c.fakeService.Conversations(ctx, viewer)
}

func (c *countingService) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	logger.Init()
	svc := &countingService{fakeService: newFakeService()}
	svc.convs = []chat.ConversationView{{ID: "c1", Counterparty: "bob"}}
	s := NewSession(svc, "alice")

	p := &Poller{Session: s, ListInterval: 5 * time.Millisecond, ThreadInterval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Run primes the list immediately, then keeps ticking
	require.Eventually(t, func() bool { return svc.calls() >= 2 }, time.Second, time.Millisecond)
	require.NotEmpty(t, s.Conversations())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestThreadPollKeepsScheduleWhileListBlocked(t *testing.T) {
	logger.Init()
	svc := newFakeService()
	s := NewSession(svc, "alice")

	svc.addMessage("c1", "bob", "alice", "first")
	require.NoError(t, s.Select(context.Background(), "c1"))

	// every list request hangs until released
	release := make(chan struct{})
	svc.listHook = func() { <-release }
	defer close(release)

	p := &Poller{Session: s, ListInterval: 5 * time.Millisecond, ThreadInterval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// thread polls must keep flowing while the list call is in flight
	svc.addMessage("c1", "bob", "alice", "second")
	require.Eventually(t, func() bool { return len(s.Thread()) == 2 }, time.Second, time.Millisecond)
}

func TestPollerThreadLoopPicksUpNewMessages(t *testing.T) {
	logger.Init()
	svc := &countingService{fakeService: newFakeService()}
	s := NewSession(svc, "alice")

	svc.addMessage("c1", "bob", "alice", "first")
	require.NoError(t, s.Select(context.Background(), "c1"))

	p := &Poller{Session: s, ListInterval: time.Hour, ThreadInterval: 5 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	svc.addMessage("c1", "bob", "alice", "second")
	require.Eventually(t, func() bool { return len(s.Thread()) == 2 }, time.Second, time.Millisecond)
}

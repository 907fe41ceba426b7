package loghub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu      sync.Mutex
	entries []Entry
	failing bool
	closed  bool
}

func (f *fakeSubscriber) Send(e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return assert.AnError
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) snapshot() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry(nil), f.entries...)
}

func TestHub_RecentBoundedByMaxHistory(t *testing.T) {
	hub := New(3)
	defer hub.Shutdown()

	for i := 0; i < 10; i++ {
		hub.Emit("line", "install")
	}

	recent := hub.Recent(0, "")
	assert.Len(t, recent, 3)
}

func TestHub_RecentFiltersByTag(t *testing.T) {
	hub := New(100)
	defer hub.Shutdown()

	hub.Emit("a", "install")
	hub.Emit("b", "nodes")
	hub.Emit("c", "install")

	installOnly := hub.Recent(0, "install")
	require.Len(t, installOnly, 2)
	assert.Equal(t, "a", installOnly[0].Message)
	assert.Equal(t, "c", installOnly[1].Message)
}

func TestHub_RecentRespectsLimit(t *testing.T) {
	hub := New(100)
	defer hub.Shutdown()

	for i := 0; i < 5; i++ {
		hub.Emit("line", "")
	}

	assert.Len(t, hub.Recent(2, ""), 2)
}

func TestHub_SubscribeReceivesLiveBroadcast(t *testing.T) {
	hub := New(10)
	defer hub.Shutdown()

	sub := &fakeSubscriber{}
	hub.Subscribe(sub)
	hub.Emit("hello", "server")

	require.Eventually(t, func() bool {
		return len(sub.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", sub.snapshot()[0].Message)
}

func TestHub_FailingSubscriberIsDropped(t *testing.T) {
	hub := New(10)
	defer hub.Shutdown()

	sub := &fakeSubscriber{failing: true}
	hub.Subscribe(sub)
	hub.Emit("first", "server")

	require.Eventually(t, func() bool {
		hub.subMu.Lock()
		defer hub.subMu.Unlock()
		_, stillSubscribed := hub.subscribers[sub]
		return !stillSubscribed
	}, time.Second, 10*time.Millisecond)
}

func TestHub_CloseAllClosesSubscribers(t *testing.T) {
	hub := New(10)
	defer hub.Shutdown()

	sub := &fakeSubscriber{}
	hub.Subscribe(sub)
	hub.CloseAll()

	assert.True(t, sub.closed)
}

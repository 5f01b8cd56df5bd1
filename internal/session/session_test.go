package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStore_PutGet(t *testing.T) {
	s := New(time.Minute)
	s.Put(Session{ID: "abc", CreatedAt: time.Now(), Data: map[string]any{"user": "alice"}})

	got, ok := s.Get("abc")
	assert.True(t, ok)
	assert.Equal(t, "alice", got.Data["user"])
}

func TestStore_GetMissing(t *testing.T) {
	s := New(time.Minute)
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestStore_GetExpired(t *testing.T) {
	s := New(time.Millisecond)
	s.Put(Session{ID: "abc", CreatedAt: time.Now()})
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get("abc")
	assert.False(t, ok)
}

func TestStore_PutAlreadyExpiredIsNoOp(t *testing.T) {
	s := New(time.Minute)
	s.Put(Session{ID: "stale", CreatedAt: time.Now().Add(-time.Hour)})

	_, ok := s.Get("stale")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStore_EvictExpired(t *testing.T) {
	s := New(10 * time.Millisecond)
	s.Put(Session{ID: "fresh", CreatedAt: time.Now()})
	s.mu.Lock()
	s.items["stale"] = Session{ID: "stale", CreatedAt: time.Now().Add(-time.Hour)}
	s.mu.Unlock()

	removed := s.EvictExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())

	_, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestStore_RunEvictionLoop(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.mu.Lock()
	s.items["stale"] = Session{ID: "stale", CreatedAt: time.Now().Add(-time.Hour)}
	s.mu.Unlock()

	stop := make(chan struct{})
	go s.RunEvictionLoop(5*time.Millisecond, stop)

	assert.Eventually(t, func() bool {
		return s.Len() == 0
	}, 200*time.Millisecond, 5*time.Millisecond)

	close(stop)
}

func TestStore_Len(t *testing.T) {
	s := New(time.Minute)
	assert.Equal(t, 0, s.Len())
	s.Put(Session{ID: "a", CreatedAt: time.Now()})
	s.Put(Session{ID: "b", CreatedAt: time.Now()})
	assert.Equal(t, 2, s.Len())
}

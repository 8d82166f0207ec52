package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bowerhall/moviegraph/internal/engine"
	"github.com/bowerhall/moviegraph/internal/history"
)

func testFactory(calls *int) Factory {
	var mu sync.Mutex
	return func(profile, id string) (*engine.Engine, error) {
		mu.Lock()
		*calls++
		mu.Unlock()
		return engine.New(engine.Config{Profile: profile}, history.New(id)), nil
	}
}

func TestSessionTryAcquireAndRelease(t *testing.T) {
	s := &Session{}

	// first acquire should succeed
	if !s.TryAcquire() {
		t.Error("first TryAcquire should succeed")
	}

	// second acquire should fail (already processing)
	if s.TryAcquire() {
		t.Error("second TryAcquire should fail")
	}

	s.Release()

	if !s.TryAcquire() {
		t.Error("TryAcquire after Release should succeed")
	}
	s.Release()
}

func TestRegistryGetCreatesSession(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), time.Minute)

	sess1, err := reg.Get("deepseek", "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	sess2, _ := reg.Get("deepseek", "abc")
	if sess1 != sess2 {
		t.Error("Get should return same session for same key")
	}
	if calls != 1 {
		t.Errorf("expected factory to run once, ran %d times", calls)
	}
	if sess1.Engine.History().SessionID() != "abc" {
		t.Errorf("engine history bound to wrong session %q", sess1.Engine.History().SessionID())
	}
}

func TestRegistryProfilesAreIsolated(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), time.Minute)

	a, _ := reg.Get("deepseek", "abc")
	b, _ := reg.Get("gemini", "abc")

	if a == b {
		t.Error("different profiles should get different sessions")
	}

	a.Engine.History().Append(history.RoleUser, "hello")
	if b.Engine.History().Len() != 0 {
		t.Error("history leaked across profiles")
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", reg.Len())
	}
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry(func(profile, id string) (*engine.Engine, error) {
		return nil, errors.New("no such profile")
	}, time.Minute)

	if _, err := reg.Get("nope", "abc"); err == nil {
		t.Fatal("expected factory error")
	}
	if reg.Len() != 0 {
		t.Errorf("failed session should not be stored, have %d", reg.Len())
	}
}

func TestRegistryEnd(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), time.Minute)

	var ended []string
	reg.OnEvict(func(s *Session) { ended = append(ended, s.Profile) })

	reg.Get("deepseek", "abc")
	reg.Get("gemini", "abc")
	reg.Get("deepseek", "other")

	if n := reg.End("abc"); n != 2 {
		t.Errorf("expected 2 sessions ended, got %d", n)
	}
	if len(ended) != 2 {
		t.Errorf("expected hook for both profiles, got %v", ended)
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 session left, got %d", reg.Len())
	}
}

func TestRegistryEndHookSkipsSweep(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), 10*time.Minute)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	var order, ended []string
	reg.OnEvict(func(s *Session) { order = append(order, "evict:"+s.ID) })
	reg.OnEnd(func(s *Session) {
		order = append(order, "end:"+s.ID)
		ended = append(ended, s.ID)
	})

	reg.Get("deepseek", "idle")
	reg.Get("deepseek", "abc")

	now = now.Add(5 * time.Minute)
	reg.End("abc")

	if len(order) != 2 || order[0] != "evict:abc" || order[1] != "end:abc" {
		t.Errorf("expected evict then end hook for abc, got %v", order)
	}

	now = now.Add(11 * time.Minute)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected idle session swept, got %d", n)
	}
	if len(ended) != 1 {
		t.Errorf("end hook should not run for swept sessions, ran for %v", ended)
	}
}

func TestRegistrySweepSparesSessionBeingFetched(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), 10*time.Minute)

	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return start }
	reg.Get("deepseek", "abc")

	// The next clock read (the touch inside Get) stalls until released, so
	// Sweep starts while Get is between lookup and touch.
	late := start.Add(time.Hour)
	var stall atomic.Bool
	stall.Store(true)
	entered := make(chan struct{})
	resume := make(chan struct{})
	reg.now = func() time.Time {
		if stall.CompareAndSwap(true, false) {
			close(entered)
			<-resume
		}
		return late
	}

	got := make(chan *Session, 1)
	go func() {
		sess, _ := reg.Get("deepseek", "abc")
		got <- sess
	}()
	<-entered

	swept := make(chan int, 1)
	go func() { swept <- reg.Sweep() }()

	time.Sleep(20 * time.Millisecond)
	close(resume)

	sess := <-got
	if n := <-swept; n != 0 {
		t.Fatalf("expected no eviction of a session being fetched, evicted %d", n)
	}

	again, _ := reg.Get("deepseek", "abc")
	if again != sess {
		t.Error("fetched session was dropped from the registry")
	}
	if calls != 1 {
		t.Errorf("expected the original engine to be reused, factory ran %d times", calls)
	}
}

func TestRegistrySweep(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), 10*time.Minute)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	var evicted []string
	reg.OnEvict(func(s *Session) { evicted = append(evicted, s.ID) })

	reg.Get("deepseek", "old")
	busy, _ := reg.Get("deepseek", "busy")

	now = now.Add(5 * time.Minute)
	reg.Get("deepseek", "fresh")

	now = now.Add(6 * time.Minute)

	busy.TryAcquire()
	defer busy.Release()

	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if len(evicted) != 1 || evicted[0] != "old" {
		t.Errorf("expected only 'old' evicted, got %v", evicted)
	}
	if reg.Len() != 2 {
		t.Errorf("expected busy and fresh to remain, got %d", reg.Len())
	}
}

func TestRegistrySweepDisabled(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), 0)
	reg.Get("deepseek", "abc")

	reg.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if n := reg.Sweep(); n != 0 {
		t.Errorf("zero TTL should never evict, evicted %d", n)
	}
}

func TestStartEvictionRejectsBadSchedule(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), time.Minute)

	if err := reg.StartEviction("not a schedule"); err == nil {
		reg.Stop()
		t.Fatal("expected invalid schedule error")
	}

	if err := reg.StartEviction("@every 1h"); err != nil {
		t.Fatalf("StartEviction failed: %v", err)
	}
	reg.Stop()
}

func TestRegistryConcurrentGet(t *testing.T) {
	var calls int
	reg := NewRegistry(testFactory(&calls), time.Minute)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Get("deepseek", "shared")
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Errorf("expected a single engine for a shared key, factory ran %d times", calls)
	}
}

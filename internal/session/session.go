// Package session keeps one conversation engine per session key and
// expires idle ones.
package session

import (
	"fmt"
	"time"

	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/metrics"
	"github.com/robfig/cron/v3"
)

// TryAcquire attempts to acquire the processing lock.
// Returns true if acquired, false if already processing.
func (s *Session) TryAcquire() bool {
	return s.processing.TryLock()
}

// Release releases the processing lock.
func (s *Session) Release() {
	s.processing.Unlock()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

// NewRegistry returns a registry that evicts sessions idle for longer than
// ttl. A zero ttl disables eviction.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[key]*Session),
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
	}
}

// OnEvict registers a hook run for every session removed by Sweep or End.
func (r *Registry) OnEvict(fn func(*Session)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// OnEnd registers a hook run after OnEvict for sessions removed by End. Idle
// sessions removed by Sweep do not trigger it.
func (r *Registry) OnEnd(fn func(*Session)) {
	r.mu.Lock()
	r.onEnd = fn
	r.mu.Unlock()
}

// Get returns the live session for (profile, id), creating it through the
// factory on first use.
func (r *Registry) Get(profile, id string) (*Session, error) {
	k := key{profile: profile, id: id}

	// Touch under the read lock so Sweep cannot evict a session between
	// lookup and touch.
	r.mu.RLock()
	sess, ok := r.sessions[k]
	if ok {
		sess.touch(r.now())
	}
	r.mu.RUnlock()

	if ok {
		return sess, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok = r.sessions[k]; ok {
		sess.touch(r.now())
		return sess, nil
	}

	eng, err := r.factory(profile, id)
	if err != nil {
		return nil, fmt.Errorf("create session %s/%s: %w", profile, id, err)
	}

	sess = &Session{ID: id, Profile: profile, Engine: eng, lastSeen: r.now()}
	r.sessions[k] = sess
	metrics.Sessions.Set(float64(len(r.sessions)))

	logger.Debug("session created", "session", id, "profile", profile)
	return sess, nil
}

// End removes every profile's session for id and returns how many were
// removed.
func (r *Registry) End(id string) int {
	r.mu.Lock()
	var ended []*Session
	for k, sess := range r.sessions {
		if k.id == id {
			ended = append(ended, sess)
			delete(r.sessions, k)
		}
	}
	metrics.Sessions.Set(float64(len(r.sessions)))
	evictHook, endHook := r.onEvict, r.onEnd
	r.mu.Unlock()

	for _, sess := range ended {
		if evictHook != nil {
			evictHook(sess)
		}
		if endHook != nil {
			endHook(sess)
		}
	}
	return len(ended)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle past the TTL. Sessions in the middle of a turn
// are left alone until the next sweep.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var evicted []*Session
	for k, sess := range r.sessions {
		if !sess.LastSeen().Before(cutoff) {
			continue
		}
		if !sess.TryAcquire() {
			continue
		}
		sess.Release()
		evicted = append(evicted, sess)
		delete(r.sessions, k)
	}
	metrics.Sessions.Set(float64(len(r.sessions)))
	hook := r.onEvict
	r.mu.Unlock()

	for _, sess := range evicted {
		metrics.Evictions.Inc()
		logger.Info("session evicted", "session", sess.ID, "profile", sess.Profile, "idle", r.now().Sub(sess.LastSeen()).Round(time.Second))
		if hook != nil {
			hook(sess)
		}
	}
	return len(evicted)
}

// StartEviction runs Sweep on the given cron schedule, e.g. "@every 1m".
func (r *Registry) StartEviction(schedule string) error {
	if r.ttl <= 0 {
		logger.Info("session eviction disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { r.Sweep() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()

	r.mu.Lock()
	r.sched = c
	r.mu.Unlock()

	logger.Info("session eviction started", "schedule", schedule, "ttl", r.ttl)
	return nil
}

// Stop halts the eviction schedule and waits for a running sweep to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	c := r.sched
	r.sched = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

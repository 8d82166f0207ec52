package session

import (
	"sync"
	"time"

	"github.com/bowerhall/moviegraph/internal/engine"
	"github.com/robfig/cron/v3"
)

// Factory builds the engine for a new session. It is called at most once
// per (profile, id) while the session is live.
type Factory func(profile, id string) (*engine.Engine, error)

type key struct {
	profile string
	id      string
}

type Session struct {
	ID      string
	Profile string
	Engine  *engine.Engine

	mu         sync.Mutex
	lastSeen   time.Time
	processing sync.Mutex
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[key]*Session
	factory  Factory
	ttl      time.Duration
	onEvict  func(*Session)
	onEnd    func(*Session)
	now      func() time.Time
	sched    *cron.Cron
}

// Package budget enforces an optional daily token budget across every
// model call the engines make.
package budget

import (
	"sync"
	"time"

	"github.com/bowerhall/moviegraph/internal/logger"
)

type Tracker struct {
	mu         sync.Mutex
	dailyLimit int
	warnAt     float64
	tokens     int
	lastReset  time.Time
	onWarn     func(used, limit int)
	onExceeded func(used, limit int)
	warnSent   bool
	timezone   *time.Location
	store      *Store
	now        func() time.Time
}

type Config struct {
	DailyLimit int
	WarnAt     float64
	Timezone   *time.Location
}

func NewTracker(cfg Config, onWarn, onExceeded func(used, limit int)) *Tracker {
	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}

	return &Tracker{
		dailyLimit: cfg.DailyLimit,
		warnAt:     cfg.WarnAt,
		lastReset:  time.Now().In(tz),
		onWarn:     onWarn,
		onExceeded: onExceeded,
		timezone:   tz,
		now:        time.Now,
	}
}

// SetStore attaches persistent usage storage and resumes today's count
// from it.
func (t *Tracker) SetStore(s *Store) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.store = s
	if s == nil {
		return
	}

	tokens, err := s.TodayTokens()
	if err != nil {
		logger.Warn("budget: failed to load today's usage", "error", err)
		return
	}
	t.tokens = tokens
	if float64(t.tokens) >= float64(t.dailyLimit)*t.warnAt {
		t.warnSent = true
	}
}

// Add counts tokens against today's budget and reports whether the budget
// still has room afterwards.
func (t *Tracker) Add(tokens int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkReset()
	t.tokens += tokens

	if t.tokens >= t.dailyLimit {
		if t.onExceeded != nil {
			t.onExceeded(t.tokens, t.dailyLimit)
		}
		return false
	}

	if !t.warnSent && float64(t.tokens) >= float64(t.dailyLimit)*t.warnAt {
		t.warnSent = true
		if t.onWarn != nil {
			t.onWarn(t.tokens, t.dailyLimit)
		}
	}

	return true
}

// Exhausted reports whether today's budget is already used up.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkReset()
	return t.tokens >= t.dailyLimit
}

func (t *Tracker) Record(provider, model string, inputTokens, outputTokens int) bool {
	t.mu.Lock()
	store := t.store
	t.mu.Unlock()

	if store != nil {
		if err := store.Record(provider, model, inputTokens, outputTokens); err != nil {
			// usage tracking never blocks an answer
			logger.Warn("budget: failed to record usage", "model", model, "error", err)
		}
	}

	return t.Add(inputTokens + outputTokens)
}

func (t *Tracker) Usage() (used, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkReset()
	return t.tokens, t.dailyLimit
}

// must hold lock
func (t *Tracker) checkReset() {
	now := t.now().In(t.timezone)
	if now.YearDay() != t.lastReset.YearDay() || now.Year() != t.lastReset.Year() {
		t.tokens = 0
		t.warnSent = false
		t.lastReset = now
	}
}

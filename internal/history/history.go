package history

import (
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleContext marks synthetic turns, such as a formatted results block,
	// that ground the model but are never shown to the end user.
	RoleContext Role = "system-context"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleContext:
		return true
	}
	return false
}

type Turn struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Recorder receives every appended turn, e.g. to persist it. Failures are
// the recorder's to report; they never block the conversation.
type Recorder interface {
	Record(sessionID string, turn Turn)
}

// History is the append-only turn log of one session.
type History struct {
	mu        sync.Mutex
	sessionID string
	turns     []Turn
	recorder  Recorder
}

func New(sessionID string) *History {
	return &History{sessionID: sessionID}
}

// Restore creates a history that starts with previously recorded turns.
// The restored turns are not passed to the recorder again.
func Restore(sessionID string, turns []Turn) *History {
	h := New(sessionID)
	h.turns = append(h.turns, turns...)
	return h
}

func (h *History) SetRecorder(r Recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorder = r
}

func (h *History) SessionID() string {
	return h.sessionID
}

func (h *History) Append(role Role, content string) Turn {
	h.mu.Lock()
	turn := Turn{Role: role, Content: content, CreatedAt: time.Now()}
	h.turns = append(h.turns, turn)
	recorder := h.recorder
	h.mu.Unlock()

	if recorder != nil {
		recorder.Record(h.sessionID, turn)
	}

	return turn
}

// Turns returns a copy of the log in append order.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	copied := make([]Turn, len(h.turns))
	copy(copied, h.turns)

	return copied
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}


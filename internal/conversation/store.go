// Package conversation persists session history turns in sqlite so a
// session can be restored after a restart.
package conversation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/logger"
)

type Store struct {
	db       *sql.DB
	maxTurns int
}

const schema = `
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
`

// NewStore creates a turn store using the provided database connection.
// maxTurns <= 0 keeps every turn.
func NewStore(db *sql.DB, maxTurns int) (*Store, error) {
	s := &Store{db: db, maxTurns: maxTurns}
	if _, err := s.db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate turns: %w", err)
	}
	return s, nil
}

func (s *Store) Add(sessionID string, turn history.Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(turn.Role), turn.Content, createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	if s.maxTurns <= 0 {
		return nil
	}

	// trim to max turns (FIFO)
	_, err = s.db.Exec(`
		DELETE FROM turns
		WHERE session_id = ? AND id NOT IN (
			SELECT id FROM turns
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		)`, sessionID, sessionID, s.maxTurns)
	return err
}

// Record satisfies history.Recorder. Write failures are logged; the
// in-memory history stays authoritative for the live session.
func (s *Store) Record(sessionID string, turn history.Turn) {
	if err := s.Add(sessionID, turn); err != nil {
		logger.Warn("failed to persist turn", "session", sessionID, "role", turn.Role, "error", err)
	}
}

// Load returns the stored turns for a session in append order.
func (s *Store) Load(sessionID string) ([]history.Turn, error) {
	rows, err := s.db.Query(`
		SELECT role, content, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []history.Turn
	for rows.Next() {
		var role, content, createdAt string
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, err
		}
		t := history.Turn{Role: history.Role(role), Content: content}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if !t.Role.Valid() {
			logger.Warn("skipping stored turn with unknown role", "session", sessionID, "role", role)
			continue
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

func (s *Store) Clear(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM turns WHERE session_id = ?`, sessionID)
	return err
}

package budget

import (
	"database/sql"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost_usd REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_model ON usage(model);
`

// timestamps are stored as sortable UTC text
const timeLayout = "2006-01-02 15:04:05"

type Store struct {
	db       *sql.DB
	timezone *time.Location
	now      func() time.Time
}

func NewStore(db *sql.DB, timezone *time.Location) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}

	tz := timezone
	if tz == nil {
		tz = time.UTC
	}

	return &Store{db: db, timezone: tz, now: time.Now}, nil
}

func (s *Store) Record(provider, model string, inputTokens, outputTokens int) error {
	_, err := s.db.Exec(
		`INSERT INTO usage (timestamp, provider, model, input_tokens, output_tokens, cost_usd) VALUES (?, ?, ?, ?, ?, ?)`,
		s.now().UTC().Format(timeLayout),
		provider,
		model,
		inputTokens,
		outputTokens,
		CalculateCost(model, inputTokens, outputTokens),
	)
	return err
}

type Summary struct {
	TotalRequests     int
	TotalInputTokens  int
	TotalOutputTokens int
	TotalCostUSD      float64
}

func (s *Summary) TotalTokens() int {
	return s.TotalInputTokens + s.TotalOutputTokens
}

func (s *Store) SummaryRange(from, to time.Time) (*Summary, error) {
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost_usd), 0)
		FROM usage
		WHERE timestamp >= ? AND timestamp < ?
	`, from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))

	var sum Summary
	if err := row.Scan(&sum.TotalRequests, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
		return nil, err
	}

	return &sum, nil
}

// Today summarizes usage since local midnight in the store's timezone.
func (s *Store) Today() (*Summary, error) {
	now := s.now().In(s.timezone)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.timezone)

	return s.SummaryRange(start, start.AddDate(0, 0, 1))
}

func (s *Store) TodayTokens() (int, error) {
	sum, err := s.Today()
	if err != nil {
		return 0, err
	}
	return sum.TotalTokens(), nil
}

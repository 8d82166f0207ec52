package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bowerhall/moviegraph/internal/logger"
)

// Executor runs structured queries and returns fully materialized records.
type Executor struct {
	store    Store
	database string
	timeout  time.Duration
}

func NewExecutor(store Store, database string, timeout time.Duration) *Executor {
	return &Executor{store: store, database: database, timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, q Query) (records []Record, err error) {
	if q.Empty() {
		return nil, &ExecutionError{Message: "empty query text"}
	}

	if missing := q.MissingParams(); len(missing) > 0 {
		return nil, &ExecutionError{Message: fmt.Sprintf("expected parameter(s): %s", strings.Join(missing, ", "))}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()

	sess, err := e.store.OpenSession(ctx, e.database)
	if err != nil {
		return nil, newExecutionError(fmt.Errorf("open session: %w", err))
	}

	defer func() {
		// closed with a fresh context so an expired deadline still releases the session
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil {
			logger.Warn("graph session close failed", "error", cerr)
		}
	}()

	records, err = sess.Run(ctx, q.Text, q.Params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ExecutionError{Message: "query timed out", Err: err}
		}
		return nil, newExecutionError(err)
	}

	logger.Debug("query executed", "records", len(records), "duration", time.Since(start))

	return records, nil
}

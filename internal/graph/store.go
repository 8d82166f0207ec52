package graph

import "context"

// Store opens scoped sessions against a logical database.
type Store interface {
	OpenSession(ctx context.Context, database string) (Session, error)
}

// Session runs queries with named parameters. It is used by one goroutine
// and must be closed by the caller.
type Session interface {
	Run(ctx context.Context, text string, params map[string]any) ([]Record, error)
	Close(ctx context.Context) error
}

package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig holds connection settings for a Neo4j server.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
}

// Neo4jStore adapts the Neo4j driver to Store. The driver is safe for
// concurrent use; sessions are not.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jStore(cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

func (s *Neo4jStore) OpenSession(ctx context.Context, database string) (Session, error) {
	sess := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeRead,
	})
	return &neo4jSession{sess: sess}, nil
}

// Ping verifies the server is reachable.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

type neo4jSession struct {
	sess neo4j.SessionWithContext
}

func (n *neo4jSession) Run(ctx context.Context, text string, params map[string]any) ([]Record, error) {
	result, err := n.sess.Run(ctx, text, params)
	if err != nil {
		return nil, err
	}

	raw, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(raw))
	for i, r := range raw {
		records[i] = convertRecord(r.Keys, r.Values)
	}

	return records, nil
}

func (n *neo4jSession) Close(ctx context.Context) error {
	return n.sess.Close(ctx)
}

func convertRecord(keys []string, values []any) Record {
	rec := Record{
		Keys:   append([]string(nil), keys...),
		Values: make([]Value, len(values)),
	}
	for i, v := range values {
		rec.Values[i] = convertValue(v)
	}
	return rec
}

// convertValue is the only place driver types are inspected.
func convertValue(v any) Value {
	switch val := v.(type) {
	case neo4j.Node:
		return Composite(val.Props)
	case neo4j.Relationship:
		return Composite(val.Props)
	case map[string]any:
		return Composite(val)
	default:
		return Scalar(val)
	}
}

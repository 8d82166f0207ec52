package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/bowerhall/moviegraph/internal/engine"
	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/schema"
)

type emptyTranslator struct{}

func (emptyTranslator) Strategy() string { return "stub" }

func (emptyTranslator) Translate(ctx context.Context, question string, sc *schema.Descriptor, turns []history.Turn) (graph.Query, error) {
	return graph.Query{}, nil
}

func TestAskAllSkipsBlankLines(t *testing.T) {
	eng := engine.New(engine.Config{Translator: emptyTranslator{}}, history.New("cli"))
	var out bytes.Buffer

	in := strings.NewReader("Who directed Inception?\n\n   \nWhat about Heat?\n")
	if err := askAll(context.Background(), eng, in, &out); err != nil {
		t.Fatalf("askAll failed: %v", err)
	}

	if n := strings.Count(out.String(), engine.ApologyTranslation); n != 2 {
		t.Errorf("expected 2 answers, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "> What about Heat?") {
		t.Errorf("expected questions echoed, got:\n%s", out.String())
	}
}

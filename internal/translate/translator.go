package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/llm"
	"github.com/bowerhall/moviegraph/internal/schema"
)

// Translator turns a question into a structured query. An empty query with
// a nil error means the model answered but its output was unusable; a
// non-nil error is always a *TranslationError.
type Translator interface {
	Translate(ctx context.Context, question string, sc *schema.Descriptor, turns []history.Turn) (graph.Query, error)
	Strategy() string
}

const (
	StrategyQuery  = "query"
	StrategyIntent = "intent"
)

// New builds the translator for a configured strategy name.
func New(strategy string, model llm.LLM) (Translator, error) {
	switch strategy {
	case StrategyQuery:
		return NewQueryTranslator(model), nil
	case StrategyIntent:
		return NewIntentTranslator(model), nil
	default:
		return nil, fmt.Errorf("unknown translation strategy: %q", strategy)
	}
}

const contextPrefix = "Database query results from an earlier turn:\n"

// conversation returns the turns as model messages, making sure the
// question is the final user message.
func conversation(question string, turns []history.Turn) []llm.Message {
	msgs := history.Messages(turns, contextPrefix)

	if n := len(msgs); n == 0 || msgs[n-1].Role != llm.RoleUser || strings.TrimSpace(msgs[n-1].Content) != strings.TrimSpace(question) {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	}

	return msgs
}

package translate

import (
	"context"
	"fmt"

	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/llm"
	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/schema"
)

// QueryTranslator asks the model to write the Cypher query itself. The
// query text is not validated beyond parameter binding; the store is the
// authority on whether it runs.
type QueryTranslator struct {
	llm llm.LLM
}

func NewQueryTranslator(model llm.LLM) *QueryTranslator {
	return &QueryTranslator{llm: model}
}

func (t *QueryTranslator) Strategy() string {
	return StrategyQuery
}

func (t *QueryTranslator) Translate(ctx context.Context, question string, sc *schema.Descriptor, turns []history.Turn) (graph.Query, error) {
	resp, err := t.llm.Chat(ctx, queryPrompt(sc), conversation(question, turns))
	if err != nil {
		return graph.Query{}, &TranslationError{Strategy: StrategyQuery, Err: err}
	}

	parsed := ParseModelOutput(resp.Content)
	if !parsed.OK() {
		logger.Warn("query translation unparsable", "error", parsed.Err, "raw", parsed.Raw)
		return graph.Query{}, nil
	}

	text := parsed.String("query")
	if text == "" {
		logger.Warn("query translation missing query field", "raw", parsed.Raw)
		return graph.Query{}, nil
	}

	var params map[string]any
	switch v := parsed.Fields["params"].(type) {
	case nil:
		params = map[string]any{}
	case map[string]any:
		params = v
	default:
		logger.Warn("query translation params is not an object", "raw", parsed.Raw)
		return graph.Query{}, nil
	}

	logger.Debug("query translated", "query", text, "params", len(params))

	return graph.Query{Text: text, Params: params}, nil
}

func queryPrompt(sc *schema.Descriptor) string {
	return fmt.Sprintf(`You translate questions about a movie database into Neo4j Cypher.

The graph schema is:
%s
Use the earlier conversation to resolve references such as "he", "that movie" or "his other films".
Put every literal value supplied by the user in params and reference it as $name in the query; never inline user values.
Only read data. Never write MATCH ... DELETE, CREATE, MERGE or SET.
Respond strictly with a single JSON object with two fields:
{"query": "<cypher>", "params": {"<name>": <value>}}`, sc.Describe())
}

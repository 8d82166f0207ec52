package translate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/llm"
	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/schema"
)

// SearchInfo is the model's classification of a question.
type SearchInfo struct {
	Intent   string
	Entities map[string]any
}

type intentTemplate struct {
	query    string
	slots    []string
	defaults map[string]any
}

const defaultTopRatedLimit = int64(5)

var intentTemplates = map[string]intentTemplate{
	"search_movies_by_actor": {
		query: `MATCH (p:Person {name: $actor_name})-[:ACTED_IN]->(m:Movie)
RETURN m.title AS title, m.year AS year, m.genre AS genre, m.rating AS rating
ORDER BY m.year`,
		slots: []string{"actor_name"},
	},
	"search_movies_by_director": {
		query: `MATCH (p:Person {name: $director_name})-[:DIRECTED]->(m:Movie)
RETURN m.title AS title, m.year AS year, m.genre AS genre, m.rating AS rating
ORDER BY m.year`,
		slots: []string{"director_name"},
	},
	"search_movies_by_genre": {
		query: `MATCH (m:Movie {genre: $genre})
RETURN m.title AS title, m.year AS year, m.director AS director, m.rating AS rating
ORDER BY m.rating DESC`,
		slots: []string{"genre"},
	},
	"get_top_rated_movies": {
		query: `MATCH (m:Movie)
RETURN m.title AS title, m.year AS year, m.genre AS genre, m.rating AS rating
ORDER BY m.rating DESC
LIMIT $limit`,
		defaults: map[string]any{"limit": defaultTopRatedLimit},
	},
	"get_movie_rating": {
		query: `MATCH (m:Movie {title: $title}) RETURN m.title AS title, m.rating AS rating`,
		slots: []string{"title"},
	},
	"get_movie_details": {
		query: `MATCH (m:Movie {title: $title})
OPTIONAL MATCH (a:Person)-[:ACTED_IN]->(m)
OPTIONAL MATCH (d:Person)-[:DIRECTED]->(m)
RETURN m.title AS title, m.year AS year, m.genre AS genre, m.rating AS rating,
       collect(DISTINCT a.name) AS actors, collect(DISTINCT d.name) AS directors`,
		slots: []string{"title"},
	},
}

// Intents returns the supported intent names, sorted.
func Intents() []string {
	names := make([]string, 0, len(intentTemplates))
	for name := range intentTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IntentTranslator classifies the question into a fixed intent and fills
// a canned query template. Correcting misspelled or mis-cased names is left
// to the model through the prompt; nothing here fuzzy-matches.
type IntentTranslator struct {
	llm llm.LLM
}

func NewIntentTranslator(model llm.LLM) *IntentTranslator {
	return &IntentTranslator{llm: model}
}

func (t *IntentTranslator) Strategy() string {
	return StrategyIntent
}

func (t *IntentTranslator) Translate(ctx context.Context, question string, sc *schema.Descriptor, turns []history.Turn) (graph.Query, error) {
	resp, err := t.llm.Chat(ctx, intentPrompt(sc), conversation(question, turns))
	if err != nil {
		return graph.Query{}, &TranslationError{Strategy: StrategyIntent, Err: err}
	}

	parsed := ParseModelOutput(resp.Content)
	if !parsed.OK() {
		logger.Warn("intent translation unparsable", "error", parsed.Err, "raw", parsed.Raw)
		return graph.Query{}, nil
	}

	info := SearchInfo{Intent: parsed.String("intent"), Entities: parsed.Object("entities")}

	q, err := BuildIntentQuery(info)
	if err != nil {
		logger.Warn("intent translation unusable", "error", err, "intent", info.Intent)
		return graph.Query{}, nil
	}

	logger.Debug("intent translated", "intent", info.Intent)

	return q, nil
}

// BuildIntentQuery maps a classification onto its query template.
func BuildIntentQuery(info SearchInfo) (graph.Query, error) {
	tmpl, ok := intentTemplates[info.Intent]
	if !ok {
		return graph.Query{}, fmt.Errorf("unknown intent %q", info.Intent)
	}

	params := make(map[string]any, len(tmpl.slots)+len(tmpl.defaults))

	for _, slot := range tmpl.slots {
		value, _ := info.Entities[slot].(string)
		value = strings.TrimSpace(value)
		if value == "" {
			return graph.Query{}, fmt.Errorf("intent %s requires entity %s", info.Intent, slot)
		}
		params[slot] = value
	}

	for name, def := range tmpl.defaults {
		params[name] = def
	}

	if tmpl.defaults["limit"] != nil {
		if limit, ok := positiveInt(info.Entities["limit"]); ok {
			params["limit"] = limit
		}
	}

	return graph.Query{Text: tmpl.query, Params: params}, nil
}

// positiveInt accepts whole-number limits in [1, MaxInt32]; anything else
// leaves the template default in place.
func positiveInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, n >= 1 && n <= math.MaxInt32
	case float64:
		if n < 1 || n > math.MaxInt32 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func intentPrompt(sc *schema.Descriptor) string {
	return fmt.Sprintf(`You classify questions about a movie database.

The graph schema is:
%s
Supported intents and their entities:
- search_movies_by_actor: actor_name
- search_movies_by_director: director_name
- search_movies_by_genre: genre
- get_top_rated_movies: limit (optional, default 5)
- get_movie_rating: title
- get_movie_details: title

Use the earlier conversation to resolve references such as "he" or "that movie".
If user entity names have typos or inconsistent casing, correct them to the nearest valid entries before extracting.
Extract 'intent' and 'entities' from the user question and respond strictly with a JSON object:
{"intent": "<intent>", "entities": {"<entity>": <value>}}`, sc.Describe())
}

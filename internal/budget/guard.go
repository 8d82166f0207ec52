package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/bowerhall/moviegraph/internal/llm"
)

var ErrExceeded = errors.New("daily token budget exceeded")

// Guard wraps a model so every call is checked against and counted toward
// the tracker's budget.
type Guard struct {
	next    llm.LLM
	tracker *Tracker
}

func NewGuard(next llm.LLM, tracker *Tracker) *Guard {
	return &Guard{next: next, tracker: tracker}
}

func (g *Guard) Chat(ctx context.Context, systemPrompt string, messages []llm.Message) (*llm.ChatResponse, error) {
	if g.tracker.Exhausted() {
		used, limit := g.tracker.Usage()
		return nil, fmt.Errorf("%w: %d/%d tokens", ErrExceeded, used, limit)
	}

	resp, err := g.next.Chat(ctx, systemPrompt, messages)
	if err != nil {
		return nil, err
	}

	if resp.Usage != nil {
		g.tracker.Record(g.next.Provider(), g.next.Model(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return resp, nil
}

func (g *Guard) Provider() string {
	return g.next.Provider()
}

func (g *Guard) Model() string {
	return g.next.Model()
}

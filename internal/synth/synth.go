// Package synth turns query results into the conversational answer.
package synth

import (
	"context"
	"fmt"
	"strings"

	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/llm"
)

const systemPrompt = `You are a friendly movie expert chatting with the user about a movie database.
Answer using only the database query results supplied in the conversation. If the results do not contain the answer, say so instead of guessing.
Use the full conversation to handle follow-up questions and references such as "his", "her" or "that one".
Respond in a warm, conversational tone and use lightweight Markdown (lists, emphasis) when it helps.`

const contextPrefix = "Database query results:\n"

// SynthesisError reports that the answer could not be generated.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

type Synthesizer struct {
	llm llm.LLM
}

func New(model llm.LLM) *Synthesizer {
	return &Synthesizer{llm: model}
}

// Synthesize sends the whole history in one request and returns the
// trimmed reply. An empty reply is returned as is; judging it is up to the
// caller. When the history does not already end with resultsText as a
// context turn, it is appended so the model always sees the results.
func (s *Synthesizer) Synthesize(ctx context.Context, question, resultsText string, turns []history.Turn) (string, error) {
	msgs := history.Messages(turns, contextPrefix)

	if !endsWithResults(turns, resultsText) {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: contextPrefix + resultsText})
	}

	last := &msgs[len(msgs)-1]
	last.Content += fmt.Sprintf("\n\nPlease answer the question %q based on these results.", question)

	resp, err := s.llm.Chat(ctx, systemPrompt, msgs)
	if err != nil {
		return "", &SynthesisError{Err: err}
	}

	return strings.TrimSpace(resp.Content), nil
}

func endsWithResults(turns []history.Turn, resultsText string) bool {
	if len(turns) == 0 {
		return false
	}
	last := turns[len(turns)-1]
	return last.Role == history.RoleContext && last.Content == resultsText
}

package llm

import "context"

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type ChatResponse struct {
	Content    string
	StopReason string
	Usage      *Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLM is a single round-trip text generation collaborator. Implementations
// must be safe for concurrent use and must not retry on their own.
type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (*ChatResponse, error)
	Provider() string
	Model() string
}

package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

type openaiCompatible struct {
	client   *openai.Client
	provider string
	model    string
}

func newOpenAICompatible(provider, apiKey, baseURL, model string) LLM {
	if apiKey == "" {
		apiKey = "dummy-key" // local endpoints ignore it
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &openaiCompatible{
		client:   openai.NewClientWithConfig(config),
		provider: provider,
		model:    model,
	}
}

func (o *openaiCompatible) Chat(ctx context.Context, systemPrompt string, messages []Message) (*ChatResponse, error) {
	var oaiMessages []openai.ChatCompletionMessage

	if systemPrompt != "" {
		oaiMessages = append(oaiMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		oaiMessages = append(oaiMessages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: oaiMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("%s chat completion: %w", o.provider, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices in response", o.provider)
	}

	return &ChatResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (o *openaiCompatible) Provider() string {
	return o.provider
}

func (o *openaiCompatible) Model() string {
	return o.model
}

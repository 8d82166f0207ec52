package history

import "github.com/bowerhall/moviegraph/internal/llm"

// Messages converts turns into model messages. Context turns are sent as
// user content prefixed with contextPrefix, since providers have no role
// for injected grounding text.
func Messages(turns []Turn, contextPrefix string) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))

	for _, t := range turns {
		switch t.Role {
		case RoleAssistant:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: t.Content})
		case RoleContext:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: contextPrefix + t.Content})
		default:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: t.Content})
		}
	}

	return msgs
}

package llm

import "testing"

func TestNewKnownProviders(t *testing.T) {
	for _, provider := range []string{"claude", "openai", "ollama", "openrouter", "gemini", "deepseek"} {
		model, err := New(Config{Provider: provider, APIKey: "test-key"})
		if err != nil {
			t.Fatalf("New(%s) failed: %v", provider, err)
		}
		if model.Provider() != provider {
			t.Errorf("expected provider %s, got %s", provider, model.Provider())
		}
		if model.Model() == "" {
			t.Errorf("expected default model for %s", provider)
		}
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewCompatibleRequiresModel(t *testing.T) {
	if _, err := New(Config{Provider: "mistral", APIKey: "k"}); err == nil {
		t.Error("expected error when provider has no default model")
	}

	model, err := New(Config{Provider: "mistral", APIKey: "k", Model: "mistral-small"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Model() != "mistral-small" {
		t.Errorf("expected mistral-small, got %s", model.Model())
	}
}

func TestIsKnownProvider(t *testing.T) {
	if !IsKnownProvider("gemini") {
		t.Error("gemini should be known")
	}
	if IsKnownProvider("kimi-but-not-really") {
		t.Error("unexpected provider reported as known")
	}
	if len(KnownProviders()) < 4 {
		t.Errorf("expected at least 4 providers, got %d", len(KnownProviders()))
	}
}

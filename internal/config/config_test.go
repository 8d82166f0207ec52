package config

import (
	"testing"
	"time"

	"github.com/bowerhall/moviegraph/internal/translate"
)

// clearEnv blanks every variable Load reads so the host environment
// doesn't leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "TZ", "NEO4J_URI", "NEO4J_USERNAME", "NEO4J_PASSWORD", "NEO4J_DATABASE",
		"TRANSLATION_STRATEGY", "SCHEMA_FILE",
		"DEEPSEEK_PROVIDER", "DEEPSEEK_MODEL", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_STRATEGY",
		"GEMINI_PROVIDER", "GEMINI_MODEL", "GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_STRATEGY",
		"OPENROUTER_API_KEY", "LLM_TIMEOUT", "STORE_TIMEOUT", "SESSION_TTL", "SESSION_SWEEP",
		"HISTORY_DB", "HISTORY_MAX_TURNS",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "MINIO_BUCKET",
		"BUDGET_ENABLED", "BUDGET_DAILY_LIMIT", "BUDGET_WARN_AT", "BUDGET_DB",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.Port)
	}
	if cfg.Neo4j.URI != "bolt://localhost:7687" || cfg.Neo4j.Database != "neo4j" {
		t.Errorf("unexpected neo4j defaults: %+v", cfg.Neo4j)
	}
	if cfg.Translation.Strategy != translate.StrategyQuery || cfg.Translation.Source != "default" {
		t.Errorf("expected default query strategy, got %+v", cfg.Translation)
	}
	if cfg.Timeouts.LLM != 60*time.Second || cfg.Timeouts.Store != 30*time.Second {
		t.Errorf("unexpected timeouts: %+v", cfg.Timeouts)
	}
	if cfg.Session.Sweep != "@every 1m" {
		t.Errorf("unexpected sweep %q", cfg.Session.Sweep)
	}
	if cfg.History.Enabled || cfg.History.MaxTurns != 0 {
		t.Errorf("history should be off and unbounded by default: %+v", cfg.History)
	}
	if cfg.Storage.Enabled || cfg.Budget.Enabled {
		t.Error("storage and budget should be off by default")
	}
}

func TestLoadRequiresNeo4jPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	if _, err := Load(); err == nil {
		t.Error("expected error when NEO4J_PASSWORD is missing")
	}
}

func TestLoadRequiresAProfile(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")

	if _, err := Load(); err == nil {
		t.Error("expected error when no model credentials are set")
	}
}

func TestLoadProfiles(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("GEMINI_STRATEGY", "intent")
	t.Setenv("DEEPSEEK_MODEL", "deepseek/deepseek-chat")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(cfg.Profiles))
	}

	ds, ok := cfg.Profile("deepseek")
	if !ok {
		t.Fatal("deepseek profile missing")
	}
	if ds.LLM.Provider != "openrouter" || ds.LLM.APIKey != "or-key" || ds.LLM.Model != "deepseek/deepseek-chat" {
		t.Errorf("unexpected deepseek profile: %+v", ds)
	}
	if ds.Strategy != translate.StrategyQuery {
		t.Errorf("deepseek should inherit the global strategy, got %s", ds.Strategy)
	}

	gm, _ := cfg.Profile("gemini")
	if gm.LLM.Provider != "gemini" || gm.Strategy != translate.StrategyIntent {
		t.Errorf("unexpected gemini profile: %+v", gm)
	}
}

func TestLoadProfileScopedKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "shared")
	t.Setenv("DEEPSEEK_API_KEY", "scoped")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if p, _ := cfg.Profile("deepseek"); p.LLM.APIKey != "scoped" {
		t.Errorf("expected scoped key, got %q", p.LLM.APIKey)
	}
	if _, ok := cfg.Profile("gemini"); ok {
		t.Error("gemini should not be configured without a key")
	}
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("TRANSLATION_STRATEGY", "magic")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestLoadStrategyFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("TRANSLATION_STRATEGY", "Intent")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Translation.Strategy != translate.StrategyIntent || cfg.Translation.Source != "TRANSLATION_STRATEGY" {
		t.Errorf("unexpected translation config %+v", cfg.Translation)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("LLM_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Error("expected error for unparseable LLM_TIMEOUT")
	}
}

func TestLoadOptionalStores(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("HISTORY_DB", "/tmp/history.db")
	t.Setenv("HISTORY_MAX_TURNS", "40")
	t.Setenv("MINIO_ACCESS_KEY", "a")
	t.Setenv("MINIO_SECRET_KEY", "b")
	t.Setenv("BUDGET_ENABLED", "true")
	t.Setenv("BUDGET_WARN_AT", "1.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.History.Enabled || cfg.History.MaxTurns != 40 {
		t.Errorf("unexpected history config %+v", cfg.History)
	}
	if !cfg.Storage.Enabled || cfg.Storage.Bucket != "moviegraph-transcripts" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if !cfg.Budget.Enabled || cfg.Budget.WarnAt != 0.8 {
		t.Errorf("out-of-range warn threshold should fall back to 0.8, got %+v", cfg.Budget)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEO4J_PASSWORD", "secret")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("DEEPSEEK_PROVIDER", "carrier-pigeon")
	t.Setenv("DEEPSEEK_API_KEY", "k")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

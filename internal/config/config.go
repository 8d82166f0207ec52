package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bowerhall/moviegraph/internal/llm"
	"github.com/bowerhall/moviegraph/internal/translate"
)

// built-in profiles and the provider each one uses unless overridden
var defaultProfiles = []struct {
	name     string
	provider string
}{
	{"deepseek", "openrouter"},
	{"gemini", "gemini"},
}

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	timezone := os.Getenv("TZ")
	if timezone == "" {
		timezone = "UTC"
	}

	neo4jConfig, err := loadNeo4jConfig()
	if err != nil {
		return nil, err
	}

	translationConfig, err := loadTranslationConfig()
	if err != nil {
		return nil, err
	}

	profiles, err := loadProfiles(translationConfig.Strategy)
	if err != nil {
		return nil, err
	}

	timeouts, err := loadTimeoutConfig()
	if err != nil {
		return nil, err
	}

	sessionConfig, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:        port,
		Timezone:    timezone,
		Neo4j:       neo4jConfig,
		Translation: translationConfig,
		Profiles:    profiles,
		Timeouts:    timeouts,
		Session:     sessionConfig,
		History:     loadHistoryConfig(),
		Storage:     loadStorageConfig(),
		Budget:      loadBudgetConfig(),
	}, nil
}

func loadNeo4jConfig() (Neo4jConfig, error) {
	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}

	username := os.Getenv("NEO4J_USERNAME")
	if username == "" {
		username = "neo4j"
	}

	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		return Neo4jConfig{}, fmt.Errorf("NEO4J_PASSWORD not set")
	}

	database := os.Getenv("NEO4J_DATABASE")
	if database == "" {
		database = "neo4j"
	}

	return Neo4jConfig{
		URI:      uri,
		Username: username,
		Password: password,
		Database: database,
	}, nil
}

func loadTranslationConfig() (TranslationConfig, error) {
	strategy, source := translate.StrategyQuery, "default"
	if v := os.Getenv("TRANSLATION_STRATEGY"); v != "" {
		strategy, source = strings.ToLower(v), "TRANSLATION_STRATEGY"
	}

	if !validStrategy(strategy) {
		return TranslationConfig{}, fmt.Errorf("unknown translation strategy %q (want %s or %s)", strategy, translate.StrategyQuery, translate.StrategyIntent)
	}

	return TranslationConfig{
		Strategy:   strategy,
		Source:     source,
		SchemaFile: os.Getenv("SCHEMA_FILE"),
	}, nil
}

func validStrategy(s string) bool {
	return s == translate.StrategyQuery || s == translate.StrategyIntent
}

// loadProfiles configures every built-in profile that has credentials.
// Each profile reads <NAME>_PROVIDER, <NAME>_MODEL, <NAME>_API_KEY,
// <NAME>_BASE_URL and <NAME>_STRATEGY.
func loadProfiles(defaultStrategy string) ([]ProfileConfig, error) {
	var profiles []ProfileConfig

	for _, def := range defaultProfiles {
		prefix := strings.ToUpper(def.name)

		provider := os.Getenv(prefix + "_PROVIDER")
		if provider == "" {
			provider = def.provider
		}
		if !llm.IsKnownProvider(provider) {
			return nil, fmt.Errorf("%s_PROVIDER: unknown provider %q (known: %s)", prefix, provider, strings.Join(llm.KnownProviders(), ", "))
		}

		apiKey := getAPIKey(provider, prefix)
		if apiKey == "" {
			continue
		}

		strategy := defaultStrategy
		if v := os.Getenv(prefix + "_STRATEGY"); v != "" {
			strategy = strings.ToLower(v)
			if !validStrategy(strategy) {
				return nil, fmt.Errorf("%s_STRATEGY: unknown translation strategy %q", prefix, v)
			}
		}

		profiles = append(profiles, ProfileConfig{
			Name:     def.name,
			Strategy: strategy,
			LLM: LLMConfig{
				Provider: provider,
				APIKey:   apiKey,
				Model:    os.Getenv(prefix + "_MODEL"),
				BaseURL:  os.Getenv(prefix + "_BASE_URL"),
			},
		})
	}

	if len(profiles) == 0 {
		return nil, fmt.Errorf("no model profile configured: set OPENROUTER_API_KEY or GEMINI_API_KEY")
	}

	return profiles, nil
}

// getAPIKey prefers the profile-scoped key and falls back to the
// provider's conventional variable.
func getAPIKey(provider, prefix string) string {
	if key := os.Getenv(prefix + "_API_KEY"); key != "" {
		return key
	}

	if provider == "ollama" {
		// Ollama doesn't need an API key
		return "ollama"
	}

	if env := EnvKeyForProvider(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

func EnvKeyForProvider(provider string) string {
	switch provider {
	case "claude":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "together":
		return "TOGETHER_API_KEY"
	default:
		return ""
	}
}

func loadTimeoutConfig() (TimeoutConfig, error) {
	llmTimeout, err := durationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return TimeoutConfig{}, err
	}

	storeTimeout, err := durationEnv("STORE_TIMEOUT", 30*time.Second)
	if err != nil {
		return TimeoutConfig{}, err
	}

	return TimeoutConfig{LLM: llmTimeout, Store: storeTimeout}, nil
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := durationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	sweep := os.Getenv("SESSION_SWEEP")
	if sweep == "" {
		sweep = "@every 1m"
	}

	return SessionConfig{TTL: ttl, Sweep: sweep}, nil
}

func loadHistoryConfig() HistoryConfig {
	path := os.Getenv("HISTORY_DB")

	maxTurns := 0 // unbounded
	if n, err := strconv.Atoi(os.Getenv("HISTORY_MAX_TURNS")); err == nil && n > 0 {
		maxTurns = n
	}

	return HistoryConfig{
		Enabled:  path != "",
		DBPath:   path,
		MaxTurns: maxTurns,
	}
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "moviegraph-transcripts"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	return StorageConfig{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:    bucket,
	}
}

func loadBudgetConfig() BudgetConfig {
	enabled := os.Getenv("BUDGET_ENABLED") == "true"

	dailyLimit := 100000 // default 100k tokens
	if limit, err := strconv.Atoi(os.Getenv("BUDGET_DAILY_LIMIT")); err == nil && limit > 0 {
		dailyLimit = limit
	}

	warnAt := 0.8 // default 80%
	if warn, err := strconv.ParseFloat(os.Getenv("BUDGET_WARN_AT"), 64); err == nil && warn > 0 && warn < 1 {
		warnAt = warn
	}

	dbPath := os.Getenv("BUDGET_DB")
	if dbPath == "" {
		dbPath = "moviegraph-usage.db"
	}

	return BudgetConfig{
		Enabled:    enabled,
		DailyLimit: dailyLimit,
		WarnAt:     warnAt,
		DBPath:     dbPath,
	}
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

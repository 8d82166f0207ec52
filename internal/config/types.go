package config

import "time"

type Config struct {
	Port        string
	Timezone    string
	Neo4j       Neo4jConfig
	Translation TranslationConfig
	Profiles    []ProfileConfig
	Timeouts    TimeoutConfig
	Session     SessionConfig
	History     HistoryConfig
	Storage     StorageConfig
	Budget      BudgetConfig
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type TranslationConfig struct {
	Strategy string
	// Source names where Strategy came from, for the startup log.
	Source     string
	SchemaFile string
}

// ProfileConfig is one selectable engine: a model plus the translation
// strategy it uses.
type ProfileConfig struct {
	Name     string
	Strategy string
	LLM      LLMConfig
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type TimeoutConfig struct {
	LLM   time.Duration
	Store time.Duration
}

type SessionConfig struct {
	TTL   time.Duration
	Sweep string
}

type HistoryConfig struct {
	Enabled  bool
	DBPath   string
	MaxTurns int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type BudgetConfig struct {
	Enabled    bool
	DailyLimit int
	WarnAt     float64
	DBPath     string
}

// Profile returns the named profile, if configured.
func (c *Config) Profile(name string) (ProfileConfig, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ProfileConfig{}, false
}

func (c *Config) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}

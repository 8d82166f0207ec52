// Package app assembles engine profiles and the per-session factory from
// configuration. Both binaries share it.
package app

import (
	"fmt"
	"time"

	"github.com/bowerhall/moviegraph/internal/budget"
	"github.com/bowerhall/moviegraph/internal/config"
	"github.com/bowerhall/moviegraph/internal/conversation"
	"github.com/bowerhall/moviegraph/internal/engine"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/llm"
	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/schema"
	"github.com/bowerhall/moviegraph/internal/session"
	"github.com/bowerhall/moviegraph/internal/synth"
	"github.com/bowerhall/moviegraph/internal/translate"
)

type Profile struct {
	Name        string
	Translator  translate.Translator
	Synthesizer engine.Synthesizer
}

// BuildProfiles creates one model per configured profile. When tracker is
// non-nil every model call is counted against the daily budget.
func BuildProfiles(cfg *config.Config, tracker *budget.Tracker) (map[string]Profile, error) {
	profiles := make(map[string]Profile, len(cfg.Profiles))

	for _, pc := range cfg.Profiles {
		model, err := llm.New(llm.Config{
			Provider: pc.LLM.Provider,
			APIKey:   pc.LLM.APIKey,
			Model:    pc.LLM.Model,
			BaseURL:  pc.LLM.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", pc.Name, err)
		}

		if tracker != nil {
			model = budget.NewGuard(model, tracker)
		}

		tr, err := translate.New(pc.Strategy, model)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", pc.Name, err)
		}

		source := cfg.Translation.Source
		if pc.Strategy != cfg.Translation.Strategy {
			source = "profile override"
		}
		logger.Info("profile ready",
			"profile", pc.Name,
			"provider", model.Provider(),
			"model", model.Model(),
			"strategy", tr.Strategy(),
			"strategy_source", source,
		)

		profiles[pc.Name] = Profile{
			Name:        pc.Name,
			Translator:  tr,
			Synthesizer: synth.New(model),
		}
	}

	return profiles, nil
}

// HistoryKey scopes stored turns to one profile's session.
func HistoryKey(profile, id string) string {
	return profile + ":" + id
}

type FactoryConfig struct {
	Profiles     map[string]Profile
	Schema       *schema.Descriptor
	Executor     engine.Executor
	StageTimeout time.Duration
	// Turns is optional durable history.
	Turns *conversation.Store
}

func NewFactory(fc FactoryConfig) session.Factory {
	return func(profile, id string) (*engine.Engine, error) {
		p, ok := fc.Profiles[profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", profile)
		}

		hist := history.New(id)
		if fc.Turns != nil {
			key := HistoryKey(profile, id)
			turns, err := fc.Turns.Load(key)
			if err != nil {
				return nil, fmt.Errorf("restore history: %w", err)
			}
			if len(turns) > 0 {
				hist = history.Restore(id, turns)
				logger.Info("session restored", "session", id, "profile", profile, "turns", len(turns))
			}
			hist.SetRecorder(keyedRecorder{store: fc.Turns, key: key})
		}

		return engine.New(engine.Config{
			Profile:      profile,
			Schema:       fc.Schema,
			Translator:   p.Translator,
			Executor:     fc.Executor,
			Synthesizer:  p.Synthesizer,
			StageTimeout: fc.StageTimeout,
		}, hist), nil
	}
}

// ForgetHistory returns a registry end hook that drops the session's durable
// turns, so an ended session starts fresh if its id is reused.
func ForgetHistory(turns *conversation.Store) func(*session.Session) {
	return func(s *session.Session) {
		if err := turns.Clear(HistoryKey(s.Profile, s.ID)); err != nil {
			logger.Warn("failed to clear stored history", "session", s.ID, "profile", s.Profile, "error", err)
		}
	}
}

// keyedRecorder writes turns under the profile-scoped key rather than the
// bare session id.
type keyedRecorder struct {
	store *conversation.Store
	key   string
}

func (r keyedRecorder) Record(_ string, turn history.Turn) {
	r.store.Record(r.key, turn)
}

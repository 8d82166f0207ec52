// Package engine drives one conversation turn through translation,
// execution and synthesis, recording every step in the session history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/history"
	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/metrics"
	"github.com/bowerhall/moviegraph/internal/schema"
	"github.com/bowerhall/moviegraph/internal/translate"
)

const defaultStageTimeout = 60 * time.Second

var errEmptyQuery = errors.New("translation produced an empty query")

type Executor interface {
	Execute(ctx context.Context, q graph.Query) ([]graph.Record, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question, resultsText string, turns []history.Turn) (string, error)
}

type Config struct {
	Profile     string
	Schema      *schema.Descriptor
	Translator  translate.Translator
	Executor    Executor
	Synthesizer Synthesizer
	// StageTimeout bounds each model round trip. Execution deadlines are
	// owned by the executor.
	StageTimeout time.Duration
}

// Engine is not safe for concurrent Handle calls; the session registry
// serializes access per session.
type Engine struct {
	profile      string
	schema       *schema.Descriptor
	translator   translate.Translator
	executor     Executor
	synthesizer  Synthesizer
	history      *history.History
	stageTimeout time.Duration

	mu    sync.Mutex
	state State
}

func New(cfg Config, hist *history.History) *Engine {
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = defaultStageTimeout
	}
	sc := cfg.Schema
	if sc == nil {
		sc = schema.Movies()
	}
	return &Engine{
		profile:      cfg.Profile,
		schema:       sc,
		translator:   cfg.Translator,
		executor:     cfg.Executor,
		synthesizer:  cfg.Synthesizer,
		history:      hist,
		stageTimeout: timeout,
		state:        StateIdle,
	}
}

func (e *Engine) Profile() string {
	return e.profile
}

func (e *Engine) History() *history.History {
	return e.history
}

// State reports where the most recent Handle call ended up.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Handle answers one question. It always returns user-facing text; errors
// from collaborators are logged and replaced by fixed replies.
func (e *Engine) Handle(ctx context.Context, question string) (reply string) {
	sessionID := e.history.SessionID()
	log := logger.With("session", sessionID, "profile", e.profile)

	defer func() {
		if r := recover(); r != nil {
			log.Error("turn panicked", "state", e.State(), "panic", fmt.Sprint(r))
			e.setState(StateFailed)
			metrics.Turns.WithLabelValues(e.profile, "panic").Inc()
			reply = ApologyGeneric
		}
	}()

	e.setState(StateReceived)
	e.history.Append(history.RoleUser, question)

	e.setState(StateTranslating)
	query, err := e.translate(ctx, question)
	if err == nil && query.Empty() {
		err = errEmptyQuery
	}
	if err != nil {
		return e.fail(log, "translate", "translation_failed", err, ApologyTranslation)
	}
	e.setState(StateTranslated)
	log.Debug("query translated", "strategy", e.translator.Strategy(), "query", query.Text, "params", query.Params)

	e.setState(StateExecuting)
	start := time.Now()
	records, err := e.executor.Execute(ctx, query)
	metrics.StageDuration.WithLabelValues(e.profile, "execute").Observe(time.Since(start).Seconds())
	if err != nil {
		return e.fail(log, "execute", "execution_failed", err, ApologyExecution)
	}
	e.setState(StateExecuted)

	if len(records) == 0 {
		e.history.Append(history.RoleAssistant, NoResults)
		e.setState(StateDone)
		metrics.Turns.WithLabelValues(e.profile, "no_results").Inc()
		log.Info("query returned no records")
		return NoResults
	}

	resultsText := graph.FormatResults(question, records)
	e.history.Append(history.RoleContext, resultsText)

	e.setState(StateSynthesizing)
	answer, err := e.synthesize(ctx, question, resultsText)
	if err == nil && answer == "" {
		err = errors.New("synthesizer returned an empty answer")
	}
	if err != nil {
		return e.fail(log, "synthesize", "synthesis_failed", err, ApologyGeneric)
	}

	e.history.Append(history.RoleAssistant, answer)
	e.setState(StateDone)
	metrics.Turns.WithLabelValues(e.profile, "answered").Inc()
	log.Info("turn answered", "records", len(records), "turns", e.history.Len())
	return answer
}

func (e *Engine) translate(ctx context.Context, question string) (graph.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(e.profile, "translate").Observe(time.Since(start).Seconds())
	}()

	return e.translator.Translate(ctx, question, e.schema, e.history.Turns())
}

func (e *Engine) synthesize(ctx context.Context, question, resultsText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.stageTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues(e.profile, "synthesize").Observe(time.Since(start).Seconds())
	}()

	return e.synthesizer.Synthesize(ctx, question, resultsText, e.history.Turns())
}

func (e *Engine) fail(log *slog.Logger, stage, outcome string, err error, reply string) string {
	e.setState(StateFailed)
	metrics.Turns.WithLabelValues(e.profile, outcome).Inc()
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("stage timed out", "stage", stage, "error", err)
	} else {
		log.Warn("stage failed", "stage", stage, "error", err)
	}
	return reply
}

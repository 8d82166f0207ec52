package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bowerhall/moviegraph/internal/api"
	"github.com/bowerhall/moviegraph/internal/app"
	"github.com/bowerhall/moviegraph/internal/budget"
	"github.com/bowerhall/moviegraph/internal/config"
	"github.com/bowerhall/moviegraph/internal/conversation"
	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/metrics"
	"github.com/bowerhall/moviegraph/internal/schema"
	"github.com/bowerhall/moviegraph/internal/session"
	"github.com/bowerhall/moviegraph/internal/storage"
)

func init() {
	godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := schema.Load(cfg.Translation.SchemaFile)
	if err != nil {
		logger.Fatal("failed to load schema", "error", err)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("failed to register metrics", "error", err)
	}

	store, err := graph.NewNeo4jStore(graph.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	})
	if err != nil {
		logger.Fatal("failed to create graph store", "error", err)
	}
	defer store.Close(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("graph store unreachable at startup", "uri", cfg.Neo4j.URI, "error", err)
	} else {
		logger.Info("graph store connected", "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
	}
	cancel()

	var tracker *budget.Tracker
	if cfg.Budget.Enabled {
		tracker = budget.NewTracker(budget.Config{
			DailyLimit: cfg.Budget.DailyLimit,
			WarnAt:     cfg.Budget.WarnAt,
			Timezone:   loadTimezone(cfg.Timezone),
		}, func(used, limit int) {
			logger.Warn("token budget warning", "used", used, "limit", limit)
		}, func(used, limit int) {
			logger.Error("token budget exceeded", "used", used, "limit", limit)
		})

		db, err := sql.Open("sqlite3", cfg.Budget.DBPath)
		if err != nil {
			logger.Fatal("failed to open usage db", "error", err)
		}
		defer db.Close()

		usage, err := budget.NewStore(db, loadTimezone(cfg.Timezone))
		if err != nil {
			logger.Fatal("failed to create usage store", "error", err)
		}
		tracker.SetStore(usage)

		used, limit := tracker.Usage()
		logger.Info("token budget enabled", "used", used, "limit", limit)
	}

	var turns *conversation.Store
	if cfg.History.Enabled {
		db, err := sql.Open("sqlite3", cfg.History.DBPath)
		if err != nil {
			logger.Fatal("failed to open history db", "error", err)
		}
		defer db.Close()

		turns, err = conversation.NewStore(db, cfg.History.MaxTurns)
		if err != nil {
			logger.Fatal("failed to create history store", "error", err)
		}
		logger.Info("durable history enabled", "path", cfg.History.DBPath, "max_turns", cfg.History.MaxTurns)
	}

	profiles, err := app.BuildProfiles(cfg, tracker)
	if err != nil {
		logger.Fatal("failed to build profiles", "error", err)
	}

	registry := session.NewRegistry(app.NewFactory(app.FactoryConfig{
		Profiles:     profiles,
		Schema:       sc,
		Executor:     graph.NewExecutor(store, cfg.Neo4j.Database, cfg.Timeouts.Store),
		StageTimeout: cfg.Timeouts.LLM,
		Turns:        turns,
	}), cfg.Session.TTL)

	if turns != nil {
		registry.OnEnd(app.ForgetHistory(turns))
	}

	var archive api.Archive
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
		if err != nil {
			logger.Fatal("failed to create storage client", "error", err)
		}

		if err := client.Init(ctx); err != nil {
			logger.Warn("failed to init transcript bucket", "error", err)
		}

		registry.OnEvict(func(s *session.Session) {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			name, err := client.Archive(archiveCtx, s.Profile, s.ID, s.Engine.History().Turns())
			if err != nil {
				logger.Warn("failed to archive transcript", "session", s.ID, "profile", s.Profile, "error", err)
				return
			}
			if name != "" {
				logger.Info("transcript archived", "session", s.ID, "object", name)
			}
		})
		logger.Info("transcript archive enabled", "endpoint", cfg.Storage.Endpoint, "bucket", client.Bucket())
		archive = client
	}

	if err := registry.StartEviction(cfg.Session.Sweep); err != nil {
		logger.Fatal("failed to start session eviction", "error", err)
	}
	defer registry.Stop()

	var usage api.UsageReporter
	if tracker != nil {
		usage = tracker
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewServer(api.Deps{
			Registry: registry,
			Profiles: cfg.ProfileNames(),
			Store:    store,
			Budget:   usage,
			Archive:  archive,
		}).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * cfg.Timeouts.LLM,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "profiles", cfg.ProfileNames())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

func loadTimezone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

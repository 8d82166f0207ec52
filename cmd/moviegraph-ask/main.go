// Command moviegraph-ask answers questions about the movie graph from the
// terminal. Questions come from the arguments, or one per line on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/bowerhall/moviegraph/internal/app"
	"github.com/bowerhall/moviegraph/internal/config"
	"github.com/bowerhall/moviegraph/internal/engine"
	"github.com/bowerhall/moviegraph/internal/graph"
	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/schema"
)

func init() {
	godotenv.Load()
}

func main() {
	profileName := flag.String("model", "", "engine profile to use (default: first configured)")
	sessionID := flag.String("session", "", "session id (default: random)")
	flag.Parse()

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

	store, err := graph.NewNeo4jStore(graph.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	})
	if err != nil {
		logger.Fatal("failed to create graph store", "error", err)
	}
	defer store.Close(context.Background())

	profiles, err := app.BuildProfiles(cfg, nil)
	if err != nil {
		logger.Fatal("failed to build profiles", "error", err)
	}

	name := *profileName
	if name == "" {
		name = cfg.Profiles[0].Name
	}

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}

	eng, err := app.NewFactory(app.FactoryConfig{
		Profiles:     profiles,
		Schema:       sc,
		Executor:     graph.NewExecutor(store, cfg.Neo4j.Database, cfg.Timeouts.Store),
		StageTimeout: cfg.Timeouts.LLM,
	})(name, id)
	if err != nil {
		logger.Fatal("failed to create engine", "error", err, "available", cfg.ProfileNames())
	}

	if args := flag.Args(); len(args) > 0 {
		for _, q := range args {
			ask(ctx, eng, os.Stdout, q)
		}
		return
	}

	if err := askAll(ctx, eng, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("failed to read questions", "error", err)
	}
}

func askAll(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		ask(ctx, eng, out, q)
	}
	return scanner.Err()
}

func ask(ctx context.Context, eng *engine.Engine, out io.Writer, question string) {
	fmt.Fprintf(out, "> %s\n%s\n\n", question, eng.Handle(ctx, question))
}

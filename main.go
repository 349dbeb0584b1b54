package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telmi-agent/server/internal/agent/catalog"
	"github.com/telmi-agent/server/internal/agent/conversations"
	"github.com/telmi-agent/server/internal/agent/export"
	"github.com/telmi-agent/server/internal/agent/graph"
	"github.com/telmi-agent/server/internal/agent/intent"
	"github.com/telmi-agent/server/internal/agent/llm"
	"github.com/telmi-agent/server/internal/agent/model"
	"github.com/telmi-agent/server/internal/agent/repo"
	"github.com/telmi-agent/server/internal/agent/respond"
	"github.com/telmi-agent/server/internal/agent/router"
	"github.com/telmi-agent/server/internal/agent/sqlgen"
	"github.com/telmi-agent/server/internal/agent/store"
	"github.com/telmi-agent/server/internal/agent/viz"
	"github.com/telmi-agent/server/internal/core"
	"github.com/telmi-agent/server/internal/observability"
	logx "github.com/telmi-agent/server/pkg/logger"
	pkgpostgres "github.com/telmi-agent/server/pkg/postgres"
	pkgredis "github.com/telmi-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Infrastructure
	Postgres pkgpostgres.Config
	Redis    pkgredis.Config

	// Agent configs
	LLM          model.LLMConfig
	Executor     model.ExecutorConfig
	Export       model.ExportConfig
	Viz          model.VizConfig
	Conversation model.ConversationConfig
	Catalog      model.CatalogConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	db, err := cfg.Postgres.New()
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	rdb, err := cfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", cfg.Conversation.TTL, err)
	}

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	completer, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to build LLM client: %v", err)
	}

	metrics := observability.New(prometheus.DefaultRegisterer)
	go serveMetrics(cfg.MetricsAddr)

	workflow, err := graph.New(graph.Config{
		Classifier: router.New(completer),
		Analyzer:   intent.New(completer, cat),
		Synth:      sqlgen.New(completer, cat, cfg.Executor),
		Executor:   store.NewExecutor(store.NewSQLStore(db), cfg.Executor),
		Exporter:   export.New(cfg.Export),
		Planner:    viz.New(completer, cfg.Viz),
		Composer:   respond.New(cat),
		Metrics:    metrics,
	})
	if err != nil {
		log.Fatalf("Failed to build workflow: %v", err)
	}

	manager := conversations.NewManager(
		repo.NewRedisConversationRepository(rdb, ttl),
		cfg.Conversation,
	)

	runREPL(ctx, workflow, manager)
}

func loadCatalog(cfg model.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path != "" {
		return catalog.Load(cfg.Path)
	}
	return catalog.Default()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logx.Warn().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
	}
}

func runREPL(ctx context.Context, workflow *graph.Workflow, manager *conversations.Manager) {
	conversationID := uuid.NewString()
	fmt.Println("🤖 Assistant France Services — posez vos questions (\"exit\" pour quitter, \"reset\" pour oublier la conversation)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch {
		case question == "":
			continue
		case question == "exit" || question == "quit":
			return
		case question == "reset":
			if err := manager.Clear(ctx, conversationID); err != nil {
				fmt.Println("Impossible de réinitialiser la conversation.")
				continue
			}
			conversationID = uuid.NewString()
			fmt.Println("Conversation réinitialisée.")
			continue
		}

		contextual := manager.ContextualQuestion(ctx, conversationID, question)
		state := workflow.RunState(ctx, contextual)
		fmt.Println("\n" + state.FinalResponse)

		manager.Record(ctx, conversationID, question, state)
	}
}

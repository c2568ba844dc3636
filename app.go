package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/appliance-router/server/internal/agent/graph"
	"github.com/appliance-router/server/internal/agent/graph/conversations"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/agent/orchestrator"
	"github.com/appliance-router/server/internal/agent/repo"
	"github.com/appliance-router/server/internal/agent/session"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

// app is the wired router shared by the serve and chat commands.
type app struct {
	controller *orchestrator.Controller
	registry   *prometheus.Registry
	// janitor sweeps expired in-memory sessions; nil for other backends.
	janitor func(ctx context.Context)
	rdb     *redis.Client
}

func (a *app) Close() error {
	if a.rdb != nil {
		return a.rdb.Close()
	}
	return nil
}

func buildApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	var (
		store model.SessionStore
		locks *session.Manager
	)
	switch cfg.SessionStore.Backend {
	case storeMemory, "":
		mem := repo.NewMemorySessionStore(cfg.Conversation.TTL)
		a.janitor = func(ctx context.Context) { mem.RunJanitor(ctx, cfg.Conversation.SweepInterval) }
		store = mem
		locks = session.NewManager()
	case storeRedis:
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.rdb = rdb
		store = repo.NewRedisSessionStore(rdb, cfg.Conversation.TTL)
		locks = session.NewManager(session.WithLocker(session.NewRedisLocker(rdb, "conversation:"), cfg.SessionStore.LockTTL))
		logx.Info().Msg("Connected to Redis successfully")
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore.Backend)
	}

	cms, err := llm.NewChatModels(ctx, llm.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		NLUConfig:  &cfg.NLU,
		RespConfig: &cfg.Response,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	mm := conversations.NewMessagesManager(cfg.Conversation.History.MaxTurns)

	runner, err := graph.BuildTurnGraph(ctx, graph.Config{
		NLU: llm.NewChatModelGenerator(cms.NLU, llm.GeneratorConfig{
			Component: "nlu",
			ModelName: cms.NLUModelName,
			Timeout:   cfg.Generation.Timeout,
			Messages:  mm,
			Metrics:   m,
		}),
		Response: llm.NewChatModelGenerator(cms.Response, llm.GeneratorConfig{
			Component: "response",
			ModelName: cms.ResponseModelName,
			Timeout:   cfg.Generation.Timeout,
			Messages:  mm,
			Metrics:   m,
		}),
		Store:          store,
		Catalog:        cfg.Catalog,
		HandlerTimeout: cfg.Generation.HandlerTimeout,
		Metrics:        m,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	a.controller = orchestrator.New(runner, locks, cfg.Conversation.DefaultSessionKey, m)
	return a, nil
}

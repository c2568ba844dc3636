package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/appliance-router/server/internal/agent/classifier"
	"github.com/appliance-router/server/internal/agent/fallback"
	"github.com/appliance-router/server/internal/agent/graph/nodes"
	"github.com/appliance-router/server/internal/agent/graph/observers"
	"github.com/appliance-router/server/internal/agent/graph/tools"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/agent/routing"
	"github.com/appliance-router/server/internal/agent/slotfill"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

// maxRunSteps bounds one turn; the longest path visits six nodes.
const maxRunSteps = 20

// Runner executes one conversational turn.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (*model.Turn, error)
}

// Config holds the collaborators needed to compose the turn graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the pipeline steps.
type Config struct {
	// NLU serves classification, extraction, routing and the handler refinements.
	NLU llm.Generator
	// Response serves the free-form off-domain redirection.
	Response       llm.Generator
	Store          model.SessionStore
	Catalog        model.CatalogConfig
	HandlerTimeout time.Duration
	// Registry overrides the built-in help handlers when set.
	Registry *tools.Registry
	Metrics  *metrics.Metrics
}

// GraphConfig holds the pipeline steps the graph nodes are built from.
type GraphConfig struct {
	Store      model.SessionStore
	Classifier *classifier.Classifier
	SlotFiller *slotfill.Agent
	Decider    *routing.Decider
	Fallback   *fallback.Handler
	Dispatcher *tools.Dispatcher
}

// GraphBuilder handles the construction of the turn graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.Turn]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.Turn]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (*model.Turn, error) {
	return r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
}

// BuildTurnGraph constructs the pipeline steps from cfg, builds the graph and returns a Runner.
func BuildTurnGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.NLU == nil || cfg.Response == nil {
		return nil, fmt.Errorf("generators are not properly initialized")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is nil")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = tools.DefaultRegistry(cfg.NLU)
	}
	dispatcher, err := tools.NewDispatcher(ctx, registry, cfg.HandlerTimeout, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Store:      cfg.Store,
		Classifier: classifier.New(cfg.NLU, cfg.Metrics),
		SlotFiller: slotfill.New(cfg.NLU),
		Decider:    routing.NewDecider(cfg.NLU, cfg.Catalog.BaseURL, cfg.Metrics),
		Fallback:   fallback.New(cfg.Response),
		Dispatcher: dispatcher,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled turn graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.Turn], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if config.Classifier == nil || config.SlotFiller == nil || config.Decider == nil ||
		config.Fallback == nil || config.Dispatcher == nil {
		return nil, fmt.Errorf("pipeline steps are not properly initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.Turn](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	type node struct {
		key    string
		lambda *compose.Lambda
		opts   []compose.GraphAddNodeOpt
	}
	all := []node{
		{nodes.NodeSessionLoader, nodes.NewSessionLoaderNode(b.config.Store), []compose.GraphAddNodeOpt{
			compose.WithStatePreHandler(nodes.NewSessionLoaderPreHandler()),
			compose.WithStatePostHandler(nodes.NewPathPostHandler[*model.Turn](nodes.NodeSessionLoader)),
		}},
		{nodes.NodeClassifier, nodes.NewClassifierNode(b.config.Classifier), nil},
		{nodes.NodeSlotFiller, nodes.NewSlotFillerNode(b.config.SlotFiller), nil},
		{nodes.NodeRouter, nodes.NewRouterNode(b.config.Decider), nil},
		{nodes.NodeFallback, nodes.NewFallbackNode(b.config.Fallback), nil},
		{nodes.NodeDispatcher, nodes.NewDispatcherNode(b.config.Dispatcher, b.config.Store), nil},
		{nodes.NodeReply, nodes.NewReplyNode(b.config.Store), []compose.GraphAddNodeOpt{
			compose.WithStatePostHandler(nodes.NewReplyPostHandler()),
		}},
	}

	for _, n := range all {
		opts := n.opts
		if opts == nil {
			opts = []compose.GraphAddNodeOpt{
				compose.WithStatePostHandler(nodes.NewPathPostHandler[*model.Turn](n.key)),
			}
		}
		opts = append(opts, compose.WithNodeName(n.key))
		if err := b.graph.AddLambdaNode(n.key, n.lambda, opts...); err != nil {
			logx.Error().Err(err).Str("node", n.key).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", n.key, err)
		}
	}
	return nil
}

// addEdges creates the unconditional connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeSessionLoader},
		{nodes.NodeFallback, nodes.NodeReply},
		{nodes.NodeDispatcher, nodes.NodeReply},
		{nodes.NodeReply, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	branches := []struct {
		from   string
		name   string
		branch *compose.GraphBranch
	}{
		{nodes.NodeSessionLoader, "active dialogue", compose.NewGraphBranch(
			nodes.NewActiveDialogueCondition(),
			map[string]bool{nodes.NodeSlotFiller: true, nodes.NodeClassifier: true},
		)},
		{nodes.NodeClassifier, "category", compose.NewGraphBranch(
			nodes.NewCategoryCondition(),
			map[string]bool{nodes.NodeSlotFiller: true, nodes.NodeFallback: true},
		)},
		{nodes.NodeSlotFiller, "completion", compose.NewGraphBranch(
			nodes.NewCompletionCondition(),
			map[string]bool{nodes.NodeRouter: true, nodes.NodeReply: true},
		)},
		{nodes.NodeRouter, "routing", compose.NewGraphBranch(
			nodes.NewRoutingCondition(),
			map[string]bool{nodes.NodeDispatcher: true, nodes.NodeFallback: true},
		)},
	}

	for _, br := range branches {
		if err := b.graph.AddBranch(br.from, br.branch); err != nil {
			logx.Error().Err(err).Str("branch", br.name).Msg("Error adding branch")
			return fmt.Errorf("error adding %s branch: %w", br.name, err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.Turn], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("appliance_turn"),
		compose.WithMaxRunSteps(maxRunSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

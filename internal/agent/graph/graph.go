package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	logx "github.com/seller-copilot/server/pkg/logger"

	"github.com/seller-copilot/server/internal/agent/graph/conversations"
	"github.com/seller-copilot/server/internal/agent/graph/nodes"
	"github.com/seller-copilot/server/internal/agent/graph/observers"
	"github.com/seller-copilot/server/internal/agent/model"
)

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Deps         *nodes.Deps
	Manager      *conversations.Manager
	Conversation model.ConversationConfig
}

// GraphBuilder handles the construction of the dialogue orchestration graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[*model.ConversationState, *model.ConversationState]
}

type graphRunner struct {
	runnable compose.Runnable[*model.ConversationState, *model.ConversationState]
	manager  *conversations.Manager
	deps     *nodes.Deps
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (string, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return "", fmt.Errorf("session id is empty")
	}

	if r.deps.Notifier != nil {
		r.deps.Notifier.NotifyNewMessage(ctx, in.SessionID, in.Query)
	}

	history, session := r.manager.BeginTurn(ctx, in.SessionID, in.Query)

	st := &model.ConversationState{
		SessionID:   in.SessionID,
		UserMessage: in.Query,
		History:     history,
		Slots:       session.Slots,
	}
	if st.Slots.ProductID == "" && session.LastProductID != "" {
		st.Slots.ProductID = session.LastProductID
	}

	out, err := r.runnable.Invoke(ctx, st, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("Graph invocation failed")
		return "", err
	}
	if out == nil {
		return "", fmt.Errorf("graph returned nil state")
	}

	session.Slots = out.Slots
	session.LastProductID = out.Slots.ProductID
	r.manager.FinishTurn(ctx, in.SessionID, out.Response, session)

	return out.Response, nil
}

// BuildResponseGraph builds the graph from prepared dependencies and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg GraphConfig) (Runner, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("conversation manager is nil")
	}

	runnable, err := BuildGraph(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return &graphRunner{runnable: runnable, manager: cfg.Manager, deps: cfg.Deps}, nil
}

// BuildGraph constructs and returns the compiled dialogue graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[*model.ConversationState, *model.ConversationState], error) {
	// Basic config validation
	if config == nil || config.Deps == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	d := config.Deps
	if d.Classifier == nil || d.Planner == nil || d.Router == nil || d.Generator == nil || d.Critic == nil {
		return nil, fmt.Errorf("llm components are not properly initialized")
	}
	if d.Retriever == nil || d.Products == nil || d.Slots == nil {
		return nil, fmt.Errorf("retrieval components are not properly initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.ConversationState, *model.ConversationState](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnStats {
				return &model.TurnStats{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// trackVisit records the node order within the turn for post-mortem logs.
func trackVisit(name string) func(context.Context, *model.ConversationState, *model.TurnStats) (*model.ConversationState, error) {
	return func(ctx context.Context, in *model.ConversationState, s *model.TurnStats) (*model.ConversationState, error) {
		if s.SessionID == "" && in != nil {
			s.SessionID = in.SessionID
		}
		s.NodesVisited = append(s.NodesVisited, name)
		if name == nodes.NodeRouter {
			s.RouterVisits++
		}
		return in, nil
	}
}

func logTurnPath() func(context.Context, *model.ConversationState, *model.TurnStats) (*model.ConversationState, error) {
	return func(ctx context.Context, out *model.ConversationState, s *model.TurnStats) (*model.ConversationState, error) {
		if out != nil && !out.NeedsRegeneration {
			logx.Debug().
				Str("session_id", s.SessionID).
				Int("router_visits", s.RouterVisits).
				Str("path", strings.Join(s.NodesVisited, " -> ")).
				Msg("Turn completed")
		}
		return out, nil
	}
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	d := b.config.Deps

	b.graph.AddLambdaNode(nodes.NodeClassifyIntent,
		nodes.NewClassifyIntentNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeClassifyIntent)),
	)
	b.graph.AddLambdaNode(nodes.NodeCheckSlots,
		nodes.NewCheckSlotsNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeCheckSlots)),
	)
	b.graph.AddLambdaNode(nodes.NodePlanning,
		nodes.NewPlanningNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodePlanning)),
	)
	b.graph.AddLambdaNode(nodes.NodeRouter,
		nodes.NewRouterNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeRouter)),
	)
	b.graph.AddLambdaNode(nodes.NodeRAGSearch,
		nodes.NewRAGSearchNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeRAGSearch)),
	)
	b.graph.AddLambdaNode(nodes.NodeStockCheck,
		nodes.NewStockCheckNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeStockCheck)),
	)
	b.graph.AddLambdaNode(nodes.NodeDeliveryCheck,
		nodes.NewDeliveryCheckNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeDeliveryCheck)),
	)
	b.graph.AddLambdaNode(nodes.NodeBargaining,
		nodes.NewBargainingNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeBargaining)),
	)
	b.graph.AddLambdaNode(nodes.NodeMeetingPlanning,
		nodes.NewMeetingPlanningNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeMeetingPlanning)),
	)
	b.graph.AddLambdaNode(nodes.NodeGenerateResponse,
		nodes.NewGenerateResponseNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeGenerateResponse)),
	)
	b.graph.AddLambdaNode(nodes.NodeReflection,
		nodes.NewReflectionNode(d),
		compose.WithStatePreHandler(trackVisit(nodes.NodeReflection)),
		compose.WithStatePostHandler(logTurnPath()),
	)
}

// addEdges creates the unconditional flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifyIntent},
		{nodes.NodeClassifyIntent, nodes.NodeCheckSlots},
		{nodes.NodePlanning, nodes.NodeRouter},
		{nodes.NodeGenerateResponse, nodes.NodeReflection},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	if err := b.graph.AddBranch(nodes.NodeCheckSlots, nodes.NewComplexityCondition()); err != nil {
		logx.Error().Err(err).Msg("Error adding complexity branch")
		return fmt.Errorf("error adding complexity branch: %w", err)
	}

	if err := b.graph.AddBranch(nodes.NodeRouter, nodes.NewRouterCondition()); err != nil {
		logx.Error().Err(err).Msg("Error adding router branch")
		return fmt.Errorf("error adding router branch: %w", err)
	}

	// Every capability node either returns to the router for the next plan
	// step or falls through to response generation.
	for _, node := range []string{
		nodes.NodeRAGSearch,
		nodes.NodeStockCheck,
		nodes.NodeDeliveryCheck,
		nodes.NodeBargaining,
		nodes.NodeMeetingPlanning,
	} {
		if err := b.graph.AddBranch(node, nodes.NewAfterActionCondition()); err != nil {
			logx.Error().Err(err).Str("node", node).Msg("Error adding after-action branch")
			return fmt.Errorf("error adding after-action branch for %s: %w", node, err)
		}
	}

	if err := b.graph.AddBranch(nodes.NodeReflection, nodes.NewAfterReflectionCondition()); err != nil {
		logx.Error().Err(err).Msg("Error adding reflection branch")
		return fmt.Errorf("error adding reflection branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.ConversationState, *model.ConversationState], error) {
	// Bound the router loop and regeneration cycle. The longest legal path is
	// classify -> slots -> planning -> (router -> action)*steps -> generate ->
	// (reflection -> generate)*retries -> reflection.
	budget := b.config.Conversation.MaxRegenerations
	if budget <= 0 {
		budget = nodes.MaxRegenerations
	}
	maxSteps := 12 + 2*budget
	if maxSteps < 30 {
		maxSteps = 30
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/maestrohq/maestro/pkg/agent"
	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/llm"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/pipeline"
	"github.com/maestrohq/maestro/pkg/review"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// core holds the execution stack shared by the inline commands and the
// daemon: LLM client, executor, pipeline engine, and review engine.
type core struct {
	cfg      *config.Config
	ws       workspace.Workspace
	tracker  *budget.Tracker
	client   llm.Client
	executor *agent.Executor
	factory  *pipeline.Factory
	engine   *pipeline.Engine
	reviews  *review.Engine
}

// buildCore wires the execution stack on top of an opened workspace and
// restored tracker.
func buildCore(cfg *config.Config, ws workspace.Workspace, tracker *budget.Tracker) (*core, error) {
	apiKey := os.Getenv(cfg.LLM.APIKeyEnv)
	client, err := llm.NewAnthropicClientFromAPIKey(apiKey)
	if err != nil {
		return nil, codedErr(exitConfig,
			fmt.Errorf("creating LLM client (is %s set?): %w", cfg.LLM.APIKeyEnv, err))
	}

	executor := agent.NewExecutor(agent.Deps{
		Skills:    cfg.SkillRegistry,
		Squads:    cfg.SquadRegistry,
		Tools:     cfg.ToolRegistry,
		LLM:       client,
		Workspace: ws,
		Budget:    tracker.StateFunc(),
		Tracker:   tracker,
		LLMConfig: cfg.LLM,
	})

	factory := pipeline.NewFactory(cfg.SkillRegistry, time.Now)
	engine := pipeline.NewEngine(executor, factory, ws,
		pipeline.WithMaxConcurrency(cfg.Queue.MaxConcurrentTasks))

	// Reviews run on the cheap tier regardless of budget level.
	reviews := review.NewEngine(cfg.Review, client,
		cfg.LLM.ModelID(models.ModelTierHaiku), cfg.LLM.MaxTokens)

	return &core{
		cfg:      cfg,
		ws:       ws,
		tracker:  tracker,
		client:   client,
		executor: executor,
		factory:  factory,
		engine:   engine,
		reviews:  reviews,
	}, nil
}

// director assembles a director on top of the core. Dispatcher and
// launcher are nil for inline commands, which makes goal starts persist
// tasks without queueing and pipeline starts execute synchronously.
func (c *core) director(dispatcher director.Dispatcher, launcher director.Launcher) *director.Director {
	return director.New(director.Deps{
		Config:     c.cfg.Director,
		Skills:     c.cfg.SkillRegistry,
		Pipelines:  c.cfg.PipelineRegistry,
		Workspace:  c.ws,
		Factory:    c.factory,
		Engine:     c.engine,
		Reviews:    c.reviews,
		Dispatcher: dispatcher,
		Launcher:   launcher,
	})
}

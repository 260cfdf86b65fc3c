// Package app assembles models, tools, agents, the engine and the runner
// from a loaded configuration.
package app

import (
	"errors"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/internal/config"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/model/anthropic"
	"github.com/hupe1980/agentflow/model/groq"
	"github.com/hupe1980/agentflow/model/openai"
	"github.com/hupe1980/agentflow/runner"
	"github.com/hupe1980/agentflow/tool"
	"github.com/hupe1980/agentflow/tool/calculator"
	"github.com/hupe1980/agentflow/tool/sqlquery"
	"github.com/hupe1980/agentflow/tool/weather"
	"github.com/hupe1980/agentflow/tool/webcrawl"
	"github.com/hupe1980/agentflow/tool/websearch"
)

// App is a fully wired workflow stack.
type App struct {
	Registry *agent.Registry
	Engine   *engine.Engine
	Runner   *runner.Runner

	closers []io.Closer
}

// Build wires an App from cfg. Close releases the resources it opened.
func Build(cfg *config.Config, logger logging.Logger) (_ *App, err error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	tools := &toolFactory{cfg: cfg.Tools, built: make(map[string]tool.Tool)}
	defer func() {
		if err != nil {
			err = errors.Join(err, tools.close())
		}
	}()
	models := make(map[config.ModelConfig]model.Model)

	defs := make([]*agent.Definition, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		mc := cfg.Model
		if ac.Model != nil {
			mc = *ac.Model
		}

		llm, ok := models[mc]
		if !ok {
			if llm, err = NewModel(mc); err != nil {
				return nil, fmt.Errorf("agent %s: %w", ac.Name, err)
			}
			models[mc] = llm
		}

		agentTools := make([]tool.Tool, 0, len(ac.Tools))
		for _, name := range ac.Tools {
			t, err := tools.get(name)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", ac.Name, err)
			}
			agentTools = append(agentTools, t)
		}

		optFns := []func(o *agent.Options){
			agent.WithDescription(ac.Description),
			agent.WithInstructions(ac.Instructions),
			agent.WithTools(agentTools...),
			agent.WithDelegates(ac.Delegates...),
			func(o *agent.Options) { o.MaxHistoryMessages = ac.MaxHistoryMessages },
		}
		if ac.Terminal {
			optFns = append(optFns, agent.WithTerminal())
		}

		def, err := agent.New(ac.Name, llm, optFns...)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	registry, err := agent.NewRegistry(defs...)
	if err != nil {
		return nil, err
	}

	callbacks := engine.NewCallbackManager()
	callbacks.RegisterCallback(engine.NewLoggingCallback(engine.CallbackAfterStep, logger))
	callbacks.RegisterCallback(engine.NewLoggingCallback(engine.CallbackOnError, logger))

	wf := cfg.Workflow

	executor := flow.NewExecutor(func(o *flow.Options) {
		o.MaxToolRounds = wf.MaxToolRounds
		o.ModelTimeout = wf.ModelTimeout
		o.ToolTimeout = wf.ToolTimeout
		o.Logger = logger
	})

	eng, err := engine.New(registry, func(o *engine.Options) {
		o.Mode = engine.Mode(wf.Mode)
		o.Entry = wf.Entry
		o.MaxSteps = wf.MaxSteps
		o.StepLimitPolicy = engine.StepLimitPolicy(wf.StepLimitPolicy)
		o.TraceTools = wf.TraceTools
		o.Variables = wf.Variables
		o.Executor = executor
		o.Callbacks = callbacks
		o.Logger = logger
	})
	if err != nil {
		return nil, err
	}

	a := &App{Registry: registry, Engine: eng}
	if tools.db != nil {
		a.closers = append(a.closers, tools.db)
	}
	a.Runner = runner.New(eng, func(o *runner.Options) {
		o.MaxConcurrentRuns = wf.MaxConcurrentRuns
		o.RunTimeout = wf.RunTimeout
		o.Logger = logger
	})

	logger.Info("app.built",
		"agents", registry.Names(),
		"mode", wf.Mode,
		"max_steps", wf.MaxSteps,
		"provider", cfg.Model.Provider,
	)

	return a, nil
}

// Close releases resources opened by Build.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewModel creates the model client for mc.
func NewModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case "groq":
		return groq.NewModel(func(o *groq.Options) {
			o.Model = mc.Name
			o.Temperature = mc.Temperature
			o.MaxTokens = int64(mc.MaxTokens)
			o.MaxRetries = mc.MaxRetries
			if mc.APIKey != "" {
				o.APIKey = mc.APIKey
			}
			if mc.BaseURL != "" {
				o.BaseURL = mc.BaseURL
			}
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			o.Model = mc.Name
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = int64(mc.MaxTokens)
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.MaxRetries = mc.MaxRetries
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(mc.Name)
			o.Temperature = mc.Temperature
			o.MaxTokens = int64(mc.MaxTokens)
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.MaxRetries = mc.MaxRetries
		}), nil
	case "mock":
		name := mc.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// toolFactory builds each configured tool once so agents share clients.
type toolFactory struct {
	cfg   config.ToolsConfig
	built map[string]tool.Tool
	db    *sqlquery.Database
}

func (f *toolFactory) get(name string) (tool.Tool, error) {
	if t, ok := f.built[name]; ok {
		return t, nil
	}

	var t tool.Tool
	switch name {
	case config.ToolWebSearch:
		t = websearch.New(func(o *websearch.Options) {
			if f.cfg.Search.APIKey != "" {
				o.APIKey = f.cfg.Search.APIKey
			}
			if f.cfg.Search.EngineID != "" {
				o.EngineID = f.cfg.Search.EngineID
			}
			if f.cfg.Search.Endpoint != "" {
				o.Endpoint = f.cfg.Search.Endpoint
			}
			if f.cfg.Search.MaxResults > 0 {
				o.MaxResults = f.cfg.Search.MaxResults
			}
		})
	case config.ToolWebCrawl:
		t = webcrawl.New(func(o *webcrawl.Options) {
			if f.cfg.Crawl.UserAgent != "" {
				o.UserAgent = f.cfg.Crawl.UserAgent
			}
			if f.cfg.Crawl.MaxBytes > 0 {
				o.MaxBytes = f.cfg.Crawl.MaxBytes
			}
			if f.cfg.Crawl.MaxChars > 0 {
				o.MaxChars = f.cfg.Crawl.MaxChars
			}
		})
	case config.ToolWeather:
		t = weather.New(func(o *weather.Options) {
			if f.cfg.Weather.GeocodingURL != "" {
				o.GeocodingURL = f.cfg.Weather.GeocodingURL
			}
			if f.cfg.Weather.ForecastURL != "" {
				o.ForecastURL = f.cfg.Weather.ForecastURL
			}
		})
	case config.ToolCalculator:
		t = calculator.New()
	case config.ToolSQLQuery, config.ToolSQLSchema:
		db, err := f.database()
		if err != nil {
			return nil, err
		}
		if name == config.ToolSQLQuery {
			t = db.QueryTool()
		} else {
			t = db.SchemaTool()
		}
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	f.built[name] = t

	return t, nil
}

func (f *toolFactory) database() (*sqlquery.Database, error) {
	if f.db != nil {
		return f.db, nil
	}
	if f.cfg.SQL.DSN == "" {
		return nil, errors.New("sql tools require tools.sql.dsn")
	}

	db, err := sqlquery.Open(f.cfg.SQL.DSN, func(o *sqlquery.Options) {
		if f.cfg.SQL.MaxRows > 0 {
			o.MaxRows = f.cfg.SQL.MaxRows
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sql database: %w", err)
	}
	f.db = db

	return db, nil
}

func (f *toolFactory) close() error {
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

// Package config loads the agentflow configuration from YAML files and
// AGENTFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/hupe1980/agentflow/logging"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      logging.Config `mapstructure:"log"`
	Model    ModelConfig    `mapstructure:"model"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Agents   []AgentConfig  `mapstructure:"agents"`
	Tools    ToolsConfig    `mapstructure:"tools"`
}

// ServerConfig configures the HTTP and MCP endpoints.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"` // Empty = allow all (development)
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableMCP       bool          `mapstructure:"enable_mcp"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig selects the language model client.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"` // groq, openai, anthropic, mock
	Name        string  `mapstructure:"name"`
	APIKey      string  `mapstructure:"api_key"` // empty = provider env var
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// WorkflowConfig tunes the orchestrator.
type WorkflowConfig struct {
	Mode              string         `mapstructure:"mode"` // router, pipeline
	Entry             string         `mapstructure:"entry"`
	MaxSteps          int            `mapstructure:"max_steps"`
	StepLimitPolicy   string         `mapstructure:"step_limit_policy"` // degrade, fail
	MaxToolRounds     int            `mapstructure:"max_tool_rounds"`
	ModelTimeout      time.Duration  `mapstructure:"model_timeout"`
	ToolTimeout       time.Duration  `mapstructure:"tool_timeout"`
	RunTimeout        time.Duration  `mapstructure:"run_timeout"`
	TraceTools        bool           `mapstructure:"trace_tools"`
	MaxConcurrentRuns int            `mapstructure:"max_concurrent_runs"`
	Variables         map[string]any `mapstructure:"variables"` // instruction template values
}

// AgentConfig declares one agent.
type AgentConfig struct {
	Name               string       `mapstructure:"name"`
	Description        string       `mapstructure:"description"`
	Instructions       string       `mapstructure:"instructions"`
	Tools              []string     `mapstructure:"tools"`
	Terminal           bool         `mapstructure:"terminal"`
	Delegates          []string     `mapstructure:"delegates"`
	MaxHistoryMessages int          `mapstructure:"max_history_messages"`
	Model              *ModelConfig `mapstructure:"model"` // overrides the shared model
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	Search  SearchConfig  `mapstructure:"search"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Weather WeatherConfig `mapstructure:"weather"`
	SQL     SQLConfig     `mapstructure:"sql"`
}

// SearchConfig configures web_search (Google Custom Search).
type SearchConfig struct {
	APIKey     string `mapstructure:"api_key"`   // empty = GOOGLE_API_KEY
	EngineID   string `mapstructure:"engine_id"` // empty = GOOGLE_CSE_ID
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

// CrawlConfig configures web_crawl.
type CrawlConfig struct {
	UserAgent string `mapstructure:"user_agent"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
	MaxChars  int    `mapstructure:"max_chars"`
}

// WeatherConfig configures weather (Open-Meteo).
type WeatherConfig struct {
	GeocodingURL string `mapstructure:"geocoding_url"`
	ForecastURL  string `mapstructure:"forecast_url"`
}

// SQLConfig configures sql_query and sql_schema. The tools are only
// available when DSN is set.
type SQLConfig struct {
	DSN     string `mapstructure:"dsn"`
	MaxRows int    `mapstructure:"max_rows"`
}

// Tool names accepted in AgentConfig.Tools.
const (
	ToolWebSearch  = "web_search"
	ToolWebCrawl   = "web_crawl"
	ToolWeather    = "weather"
	ToolSQLQuery   = "sql_query"
	ToolSQLSchema  = "sql_schema"
	ToolCalculator = "calculator"
)

// KnownTools lists the built-in tool names.
var KnownTools = []string{ToolWebSearch, ToolWebCrawl, ToolWeather, ToolSQLQuery, ToolSQLSchema, ToolCalculator}

// Load reads the configuration. An explicit configPath must exist; without
// it agentflow.yaml is searched in ., ./config and $HOME/.agentflow, and a
// missing file falls back to the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Decoding a list onto a populated slice merges element-wise, so the
	// default agent is only restored when the sources declare none.
	defaultAgents := cfg.Agents
	cfg.Agents = nil

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("agentflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.agentflow")
	}

	v.SetEnvPrefix("AGENTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Agents) == 0 {
		cfg.Agents = defaultAgents
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnv registers the scalar keys so AutomaticEnv overrides apply during
// Unmarshal even when no config file mentions them.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.host", "server.port", "server.allowed_origins", "server.enable_mcp",
		"log.level", "log.backend", "log.format", "log.file.path",
		"model.provider", "model.name", "model.api_key", "model.base_url", "model.temperature", "model.max_tokens",
		"workflow.mode", "workflow.entry", "workflow.max_steps", "workflow.step_limit_policy",
		"workflow.max_tool_rounds", "workflow.model_timeout", "workflow.tool_timeout", "workflow.run_timeout",
		"workflow.trace_tools", "workflow.max_concurrent_runs",
		"tools.search.api_key", "tools.search.engine_id", "tools.sql.dsn",
	} {
		_ = v.BindEnv(key)
	}
}

// Default returns the configuration of a single web-enabled assistant on Groq.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			EnableMCP:       true,
		},
		Log: logging.Config{
			Level:   "info",
			Backend: "zerolog",
			Format:  "json",
			File: logging.FileConfig{
				MaxSizeMB:  100,
				MaxBackups: 7,
				MaxAgeDays: 30,
				Compress:   true,
			},
		},
		Model: ModelConfig{
			Provider:    "groq",
			Name:        "llama-3.1-70b-versatile",
			Temperature: 0.2,
			MaxTokens:   1024,
			MaxRetries:  2,
		},
		Workflow: WorkflowConfig{
			Mode:              "router",
			MaxSteps:          10,
			StepLimitPolicy:   "degrade",
			MaxToolRounds:     8,
			ModelTimeout:      60 * time.Second,
			ToolTimeout:       20 * time.Second,
			RunTimeout:        5 * time.Minute,
			MaxConcurrentRuns: 10,
		},
		Agents: []AgentConfig{
			{
				Name:        "Assistant",
				Description: "Answers questions using web search and live weather data.",
				Instructions: "You are a helpful assistant. Use the web_search tool for current events " +
					"and facts you are unsure about, and the weather tool for weather questions. " +
					"Answer concisely and cite the sources you used.",
				Tools:    []string{ToolWebSearch, ToolWeather},
				Terminal: true,
			},
		},
		Tools: ToolsConfig{
			Search: SearchConfig{MaxResults: 5},
			Crawl:  CrawlConfig{UserAgent: "agentflow/1.0", MaxBytes: 2 << 20, MaxChars: 20000},
			SQL:    SQLConfig{MaxRows: 100},
		},
	}
}

// Validate checks enumerations, agent names and tool references.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	errs = append(errs, c.Model.validate("model"))

	switch c.Workflow.Mode {
	case "router", "pipeline":
	default:
		errs = append(errs, fmt.Errorf("workflow.mode %q must be router or pipeline", c.Workflow.Mode))
	}

	switch c.Workflow.StepLimitPolicy {
	case "degrade", "fail":
	default:
		errs = append(errs, fmt.Errorf("workflow.step_limit_policy %q must be degrade or fail", c.Workflow.StepLimitPolicy))
	}

	if c.Workflow.MaxSteps < 0 || c.Workflow.MaxToolRounds < 0 || c.Workflow.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("workflow limits must not be negative"))
	}

	if len(c.Agents) == 0 {
		errs = append(errs, errors.New("at least one agent is required"))
	}

	names := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: name is required", i))
			continue
		}
		if names[name] {
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate agent %q", i, name))
		}
		names[name] = true

		for _, t := range a.Tools {
			if !isKnownTool(t) {
				errs = append(errs, fmt.Errorf("agent %s: unknown tool %q", name, t))
			}
			if (t == ToolSQLQuery || t == ToolSQLSchema) && c.Tools.SQL.DSN == "" {
				errs = append(errs, fmt.Errorf("agent %s: tool %s requires tools.sql.dsn", name, t))
			}
		}

		if a.Model != nil {
			errs = append(errs, a.Model.validate("agent "+name+" model"))
		}
	}

	for _, a := range c.Agents {
		for _, d := range a.Delegates {
			if !names[d] {
				errs = append(errs, fmt.Errorf("agent %s: unknown delegate %q", a.Name, d))
			}
		}
	}

	if c.Workflow.Entry != "" && !names[c.Workflow.Entry] {
		errs = append(errs, fmt.Errorf("workflow.entry %q is not a configured agent", c.Workflow.Entry))
	}

	return errors.Join(errs...)
}

func (m ModelConfig) validate(field string) error {
	switch m.Provider {
	case "groq", "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("%s.provider %q must be groq, openai, anthropic or mock", field, m.Provider)
	}
	if m.Provider != "mock" && strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%s.name is required", field)
	}
	return nil
}

func isKnownTool(name string) bool {
	for _, t := range KnownTools {
		if t == name {
			return true
		}
	}
	return false
}

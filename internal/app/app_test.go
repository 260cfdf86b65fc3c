package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/config"
	"github.com/hupe1980/agentflow/model"
)

func mockConfig() config.Config {
	cfg := config.Default()
	cfg.Model = config.ModelConfig{Provider: "mock", Name: "mock"}
	return cfg
}

func TestBuild_Default(t *testing.T) {
	cfg := mockConfig()

	a, err := Build(&cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	assert.Equal(t, []string{"Assistant"}, a.Registry.Names())
	assert.True(t, a.Registry.Sealed())

	def, err := a.Registry.Resolve("Assistant")
	require.NoError(t, err)
	assert.True(t, def.Terminal())
	for _, name := range []string{config.ToolWebSearch, config.ToolWeather} {
		_, ok := def.Tool(name)
		assert.True(t, ok, name)
	}

	report, err := a.Runner.Ask(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: ping", report.Result.FinalAnswer)
}

func TestBuild_MultiAgentWithSQL(t *testing.T) {
	cfg := mockConfig()
	cfg.Tools.SQL.DSN = filepath.Join(t.TempDir(), "data.db")
	cfg.Agents = []config.AgentConfig{
		{Name: "Analyser", Delegates: []string{"Analyst"}},
		{Name: "Analyst", Tools: []string{config.ToolSQLQuery, config.ToolSQLSchema, config.ToolCalculator}, Terminal: true},
	}
	require.NoError(t, cfg.Validate())

	a, err := Build(&cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	analyst, err := a.Registry.Resolve("Analyst")
	require.NoError(t, err)
	assert.Len(t, analyst.Tools(), 3)

	analyser, err := a.Registry.Resolve("Analyser")
	require.NoError(t, err)
	assert.Equal(t, []string{"Analyst"}, analyser.Delegates())
}

func TestBuild_AgentModelOverride(t *testing.T) {
	cfg := mockConfig()
	cfg.Agents[0].Model = &config.ModelConfig{Provider: "mock", Name: "override"}

	a, err := Build(&cfg, nil)
	require.NoError(t, err)

	def, err := a.Registry.Resolve("Assistant")
	require.NoError(t, err)
	assert.Equal(t, "override", def.Model().Info().Name)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("unknown tool", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Agents[0].Tools = []string{"teleport"}

		_, err := Build(&cfg, nil)
		require.Error(t, err)
	})

	t.Run("sql without dsn", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Agents[0].Tools = []string{config.ToolSQLQuery}

		_, err := Build(&cfg, nil)
		require.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := mockConfig()
		cfg.Model.Provider = "llamafarm"

		_, err := Build(&cfg, nil)
		require.Error(t, err)
	})
}

func TestNewModel_Providers(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{provider: "groq", wantName: "llama-3.1-70b-versatile"},
		{provider: "openai", wantName: "gpt-4o-mini"},
		{provider: "anthropic", wantName: "claude-3-5-haiku-latest"},
		{provider: "mock", wantName: "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			llm, err := NewModel(config.ModelConfig{Provider: tt.provider, Name: tt.wantName, APIKey: "test"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, llm.Info().Name)
		})
	}
}

func TestNewModel_GroqHonoursMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Retry-After-Ms", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	llm, err := NewModel(config.ModelConfig{
		Provider:   "groq",
		Name:       "llama-3.1-70b-versatile",
		APIKey:     "gsk_test",
		BaseURL:    srv.URL + "/",
		MaxRetries: 3,
	})
	require.NoError(t, err)

	_, err = model.Collect(context.Background(), llm, model.Request{Contents: []core.Content{core.NewTextContent("user", "hi")}})
	require.Error(t, err)
	assert.Equal(t, int32(4), hits.Load())
}

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func newDef(t *testing.T, name string, optFns ...func(o *Options)) *Definition {
	t.Helper()
	d, err := New(name, model.NewMockModel("mock"), optFns...)
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	_, err := New("  ", model.NewMockModel("mock"))
	assert.Error(t, err)

	_, err = New("Solver", nil)
	assert.Error(t, err)

	echo := tool.NewFunctionTool("echo", "echo", nil, nil)
	_, err = New("Solver", model.NewMockModel("mock"), WithTools(echo, echo))
	assert.Error(t, err)

	reserved := tool.NewFunctionTool(tool.TransferToAgentName, "x", nil, nil)
	_, err = New("Solver", model.NewMockModel("mock"), WithTools(reserved))
	assert.Error(t, err)
}

func TestNew_Options(t *testing.T) {
	echo := tool.NewFunctionTool("echo", "echo", nil, nil)
	d := newDef(t, " Solver ",
		WithDescription("solves"),
		WithInstructions("solve it"),
		WithTools(echo),
		WithTerminal(),
		WithDelegates("Crawler"),
	)

	assert.Equal(t, "Solver", d.Name())
	assert.Equal(t, "solves", d.Description())
	assert.True(t, d.Terminal())
	assert.Equal(t, []string{"Crawler"}, d.Delegates())

	delegates := d.Delegates()
	delegates[0] = "Writer"
	assert.Equal(t, []string{"Crawler"}, d.Delegates())
	require.Len(t, d.Tools(), 1)
	_, ok := d.Tool("echo")
	assert.True(t, ok)
	assert.Equal(t, "mock", d.Model().Info().Name)
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg, err := NewRegistry(newDef(t, "Analyser"), newDef(t, "Crawler"))
	require.NoError(t, err)

	d, err := reg.Resolve("Crawler")
	require.NoError(t, err)
	assert.Equal(t, "Crawler", d.Name())

	_, err = reg.Resolve("Nobody")
	assert.ErrorIs(t, err, core.ErrUnknownAgent)

	first, ok := reg.First()
	require.True(t, ok)
	assert.Equal(t, "Analyser", first.Name())
	assert.Equal(t, []string{"Analyser", "Crawler"}, reg.Names())
	assert.Equal(t, 2, reg.Len())
	assert.True(t, reg.Has("Analyser"))
}

func TestRegistry_Duplicate(t *testing.T) {
	reg, err := NewRegistry(newDef(t, "Solver"))
	require.NoError(t, err)

	err = reg.Register(newDef(t, "Solver"))
	assert.ErrorIs(t, err, core.ErrDuplicateAgent)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Sealed(t *testing.T) {
	reg, err := NewRegistry(newDef(t, "Solver"))
	require.NoError(t, err)

	reg.Seal()
	assert.True(t, reg.Sealed())
	assert.ErrorIs(t, reg.Register(newDef(t, "Other")), core.ErrRegistrySealed)
}

func TestRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	_, ok := reg.First()
	assert.False(t, ok)
	assert.Empty(t, reg.Agents())
}

func TestRegistry_Targets(t *testing.T) {
	reg, err := NewRegistry(
		newDef(t, "Analyser", WithDelegates("Crawler", "Ghost", "Analyser")),
		newDef(t, "Crawler"),
		newDef(t, "Writer"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"Crawler"}, reg.Targets("Analyser"))
	assert.Equal(t, []string{"Analyser", "Writer"}, reg.Targets("Crawler"))
	assert.Nil(t, reg.Targets("Ghost"))
}

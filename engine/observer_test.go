package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
)

func TestObserver_OrderAndSingleClose(t *testing.T) {
	obs := NewObserver(0)

	go func() {
		for i := 1; i <= 3; i++ {
			_ = obs.Emit(context.Background(), core.NewUpdateEvent("Solver", i, "text"))
		}
		obs.Close()
		obs.Close()
	}()

	events, err := obs.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Metadata.StepIndex)
	}
}

func TestObserver_EmitAfterClose(t *testing.T) {
	obs := NewObserver(1)
	obs.Close()
	assert.ErrorIs(t, obs.Emit(context.Background(), core.NewUpdateEvent("A", 1, "x")), ErrObserverClosed)
}

func TestObserver_EmitRespectsContext(t *testing.T) {
	obs := NewObserver(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := obs.Emit(ctx, core.NewUpdateEvent("A", 1, "x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestObserver_CollectRespectsContext(t *testing.T) {
	obs := NewObserver(1)
	require.NoError(t, obs.Emit(context.Background(), core.NewUpdateEvent("A", 1, "x")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	events, err := obs.Collect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, events, 1)
}

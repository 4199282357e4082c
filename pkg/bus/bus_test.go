package bus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hacluster/pcsd/pkg/bus"
	"github.com/hacluster/pcsd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushInThenPopIn(t *testing.T) {
	b := bus.NewTaskBus(1, 1)
	env := types.DispatchEnvelope{TaskID: "t1"}

	require.NoError(t, b.PushIn(env))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := b.PopIn(ctx)
	require.True(t, ok)
	assert.Equal(t, env, got)
}

func TestPushIn_FullReturnsErrFull(t *testing.T) {
	b := bus.NewTaskBus(1, 1)
	require.NoError(t, b.PushIn(types.DispatchEnvelope{TaskID: "a"}))

	err := b.PushIn(types.DispatchEnvelope{TaskID: "b"})
	assert.True(t, errors.Is(err, bus.ErrFull))
}

func TestPopIn_ContextCancel(t *testing.T) {
	b := bus.NewTaskBus(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := b.PopIn(ctx)
	assert.False(t, ok)
}

func TestDrainOut_PreservesPerTaskOrder(t *testing.T) {
	b := bus.NewTaskBus(1, 10)

	require.NoError(t, b.PushOut(types.Message{TaskID: "t1", Kind: types.MessageReport}))
	require.NoError(t, b.PushOut(types.Message{TaskID: "t1", Kind: types.MessageTaskExecuted}))
	require.NoError(t, b.PushOut(types.Message{TaskID: "t1", Kind: types.MessageTaskFinished}))

	msgs := b.DrainOut()
	require.Len(t, msgs, 3)
	assert.Equal(t, types.MessageReport, msgs[0].Kind)
	assert.Equal(t, types.MessageTaskExecuted, msgs[1].Kind)
	assert.Equal(t, types.MessageTaskFinished, msgs[2].Kind)
}

func TestDrainOut_EmptyReturnsNil(t *testing.T) {
	b := bus.NewTaskBus(1, 10)
	assert.Empty(t, b.DrainOut())
}

func TestPushOut_FullReturnsErrFull(t *testing.T) {
	b := bus.NewTaskBus(1, 1)
	require.NoError(t, b.PushOut(types.Message{TaskID: "a"}))

	err := b.PushOut(types.Message{TaskID: "b"})
	assert.True(t, errors.Is(err, bus.ErrFull))
}

func TestClose_UnblocksPopIn(t *testing.T) {
	b := bus.NewTaskBus(1, 1)
	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, ok := b.PopIn(ctx)
	assert.False(t, ok)
}

func TestPushAfterClose_ErrClosed(t *testing.T) {
	b := bus.NewTaskBus(1, 1)
	b.Close()

	assert.True(t, errors.Is(b.PushIn(types.DispatchEnvelope{}), bus.ErrClosed))
	assert.True(t, errors.Is(b.PushOut(types.Message{}), bus.ErrClosed))
}

func TestInLenOutLen(t *testing.T) {
	b := bus.NewTaskBus(2, 2)
	assert.Equal(t, 0, b.InLen())
	require.NoError(t, b.PushIn(types.DispatchEnvelope{}))
	assert.Equal(t, 1, b.InLen())

	require.NoError(t, b.PushOut(types.Message{}))
	assert.Equal(t, 1, b.OutLen())
}

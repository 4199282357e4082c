package ipc_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/hacluster/pcsd/pkg/ipc"
	"github.com/hacluster/pcsd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceive_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	enc := ipc.NewEncoder(&buf)
	dec := ipc.NewDecoder(&buf)

	want := ipc.Envelope{Dispatch: &types.DispatchEnvelope{TaskID: "t1", Command: types.Command{Name: "noop"}}}
	require.NoError(t, enc.Send(want))

	got, err := dec.Receive()
	require.NoError(t, err)
	require.NotNil(t, got.Dispatch)
	assert.Equal(t, types.TaskID("t1"), got.Dispatch.TaskID)
	assert.Equal(t, "noop", got.Dispatch.Command.Name)
}

func TestSendReceive_Message(t *testing.T) {
	var buf bytes.Buffer
	enc := ipc.NewEncoder(&buf)
	dec := ipc.NewDecoder(&buf)

	want := ipc.Envelope{Message: &types.Message{TaskID: "t1", Kind: types.MessageTaskExecuted,
		Executed: types.TaskExecutedPayload{WorkerPID: 42}}}
	require.NoError(t, enc.Send(want))

	got, err := dec.Receive()
	require.NoError(t, err)
	require.NotNil(t, got.Message)
	assert.Equal(t, 42, got.Message.Executed.WorkerPID)
}

func TestSendReceive_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := ipc.NewEncoder(&buf)
	dec := ipc.NewDecoder(&buf)

	require.NoError(t, enc.Send(ipc.Envelope{Message: &types.Message{TaskID: "a"}}))
	require.NoError(t, enc.Send(ipc.Envelope{Message: &types.Message{TaskID: "b"}}))
	require.NoError(t, enc.Send(ipc.Envelope{Shutdown: true}))

	first, err := dec.Receive()
	require.NoError(t, err)
	assert.Equal(t, types.TaskID("a"), first.Message.TaskID)

	second, err := dec.Receive()
	require.NoError(t, err)
	assert.Equal(t, types.TaskID("b"), second.Message.TaskID)

	third, err := dec.Receive()
	require.NoError(t, err)
	assert.True(t, third.Shutdown)
}

func TestReceive_EOFOnClosedStream(t *testing.T) {
	r, w := io.Pipe()
	dec := ipc.NewDecoder(r)
	require.NoError(t, w.Close())

	_, err := dec.Receive()
	assert.ErrorIs(t, err, io.EOF)
}

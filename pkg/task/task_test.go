package task_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hacluster/pcsd/pkg/clock"
	"github.com/hacluster/pcsd/pkg/task"
	"github.com/hacluster/pcsd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	taskIdent    = types.TaskID("id0")
	workerPID    = 2222
	testTimeoutS = 10
)

var authUser = types.AuthUser{Username: "alice"}

func newTask(clk clock.Clock, signal task.Signaler) *task.Task {
	return task.New(taskIdent, types.Command{Name: "command"}, authUser, clk, task.Config{
		UnresponsiveTimeout: testTimeoutS * time.Second,
		AbandonedTimeout:    testTimeoutS * time.Second,
	}, signal)
}

type fakeSignaler struct {
	calls       []int
	alreadyGone bool
	err         error
}

func (f *fakeSignaler) Terminate(pid int) (bool, error) {
	f.calls = append(f.calls, pid)
	return f.alreadyGone, f.err
}

func TestReceiveMessage_Report(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	payload := types.ReportItem{Code: "x"}

	clk.Advance(time.Second)
	require.NoError(t, tk.ReceiveMessage(types.Message{TaskID: taskIdent, Kind: types.MessageReport, Report: payload}))

	dto := tk.ToDTO()
	assert.Equal(t, []types.ReportItem{payload}, dto.Reports)
}

func TestReceiveMessage_TaskExecuted(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	task.SetStateForTest(tk, types.TaskQueued)

	require.NoError(t, tk.ReceiveMessage(types.Message{
		TaskID: taskIdent, Kind: types.MessageTaskExecuted,
		Executed: types.TaskExecutedPayload{WorkerPID: workerPID},
	}))

	assert.Equal(t, types.TaskExecuted, tk.State())
	pid, ok := tk.WorkerPID()
	assert.True(t, ok)
	assert.Equal(t, workerPID, pid)
}

func TestReceiveMessage_TaskFinished(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	task.SetStateForTest(tk, types.TaskQueued)

	require.NoError(t, tk.ReceiveMessage(types.Message{
		TaskID: taskIdent, Kind: types.MessageTaskFinished,
		Finished: types.TaskFinishedPayload{FinishType: types.FinishSuccess, Result: "result"},
	}))

	dto := tk.ToDTO()
	assert.Equal(t, types.TaskFinished, dto.State)
	assert.Equal(t, types.FinishSuccess, dto.TaskFinishType)
	assert.Equal(t, "result", dto.Result)
}

func TestReceiveMessage_UnknownKind(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)

	err := tk.ReceiveMessage(types.Message{TaskID: taskIdent, Kind: types.MessageKind(99)})
	assert.True(t, errors.Is(err, task.ErrUnknownMessage))
}

func TestReceiveMessage_ProtocolViolation_DuplicateExecuted(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	task.SetStateForTest(tk, types.TaskExecuted)

	err := tk.ReceiveMessage(types.Message{TaskID: taskIdent, Kind: types.MessageTaskExecuted})
	assert.True(t, errors.Is(err, task.ErrProtocolViolation))
}

func TestRequestKill(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	assert.False(t, tk.IsKillRequested())

	tk.RequestKill(types.KillReasonUser)
	assert.True(t, tk.IsKillRequested())
	assert.Equal(t, types.KillReasonUser, tk.ToDTO().KillReason)

	// idempotent: a second call with a different reason doesn't overwrite
	tk.RequestKill(types.KillReasonCompletionTimeout)
	assert.Equal(t, types.KillReasonUser, tk.ToDTO().KillReason)
}

func TestKill_Created(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sig := &fakeSignaler{}
	tk := newTask(clk, sig)

	require.NoError(t, tk.Kill())
	dto := tk.ToDTO()
	assert.Equal(t, types.TaskFinished, dto.State)
	assert.Equal(t, types.FinishKill, dto.TaskFinishType)
	assert.Empty(t, sig.calls)
}

func TestKill_Queued_NoEffect(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sig := &fakeSignaler{}
	tk := newTask(clk, sig)
	task.SetStateForTest(tk, types.TaskQueued)

	require.NoError(t, tk.Kill())
	assert.Equal(t, types.TaskQueued, tk.State())
	assert.Empty(t, sig.calls)
}

func TestKill_Executed_WorkerAlive(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sig := &fakeSignaler{}
	tk := newTask(clk, sig)
	task.SetStateForTest(tk, types.TaskQueued)
	require.NoError(t, tk.ReceiveMessage(types.Message{
		Kind: types.MessageTaskExecuted, Executed: types.TaskExecutedPayload{WorkerPID: workerPID},
	}))

	require.NoError(t, tk.Kill())
	dto := tk.ToDTO()
	assert.Equal(t, types.TaskFinished, dto.State)
	assert.Equal(t, types.FinishKill, dto.TaskFinishType)
	assert.Equal(t, []int{workerPID}, sig.calls)
}

func TestKill_Executed_WorkerAlreadyGone(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sig := &fakeSignaler{alreadyGone: true}
	tk := newTask(clk, sig)
	task.SetStateForTest(tk, types.TaskQueued)
	require.NoError(t, tk.ReceiveMessage(types.Message{
		Kind: types.MessageTaskExecuted, Executed: types.TaskExecutedPayload{WorkerPID: workerPID},
	}))

	require.NoError(t, tk.Kill())
	dto := tk.ToDTO()
	assert.Equal(t, types.TaskFinished, dto.State)
	assert.Equal(t, types.FinishKill, dto.TaskFinishType)
}

func TestKill_Finished_NoEffect(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	tk.ForceFinish(types.FinishSuccess, nil)

	require.NoError(t, tk.Kill())
	assert.Equal(t, types.FinishSuccess, tk.ToDTO().TaskFinishType)
}

func TestKill_Idempotent(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	sig := &fakeSignaler{}
	tk := newTask(clk, sig)
	task.SetStateForTest(tk, types.TaskQueued)
	require.NoError(t, tk.ReceiveMessage(types.Message{
		Kind: types.MessageTaskExecuted, Executed: types.TaskExecutedPayload{WorkerPID: workerPID},
	}))

	require.NoError(t, tk.Kill())
	first := tk.ToDTO()
	require.NoError(t, tk.Kill())
	require.NoError(t, tk.Kill())
	second := tk.ToDTO()

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.TaskFinishType, second.TaskFinishType)
	assert.Len(t, sig.calls, 1, "kill() must only signal the worker once")
}

func TestIsDefunct(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)

	assert.False(t, tk.IsDefunct(), "created tasks are never defunct")

	task.SetStateForTest(tk, types.TaskQueued)
	require.NoError(t, tk.ReceiveMessage(types.Message{
		Kind: types.MessageTaskExecuted, Executed: types.TaskExecutedPayload{WorkerPID: workerPID},
	}))

	clk.Advance(testTimeoutS * time.Second)
	assert.False(t, tk.IsDefunct(), "exactly at the boundary is not yet defunct")

	clk.Advance(time.Nanosecond)
	assert.True(t, tk.IsDefunct(), "strictly past the boundary is defunct")
}

func TestIsAbandoned(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)
	tk.ForceFinish(types.FinishSuccess, "ok")

	assert.False(t, tk.IsAbandoned())

	clk.Advance(testTimeoutS * time.Second)
	assert.False(t, tk.IsAbandoned(), "exactly at the boundary is not yet abandoned")

	clk.Advance(time.Nanosecond)
	assert.True(t, tk.IsAbandoned())
}

func TestIsTimedOutOverall(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	timeout := 5 * time.Second
	tk := task.New(taskIdent, types.Command{
		Name:    "command",
		Options: types.CommandOptions{RequestTimeout: &timeout},
	}, authUser, clk, task.Config{}, nil)

	clk.Advance(5 * time.Second)
	assert.False(t, tk.IsTimedOutOverall())

	clk.Advance(time.Second)
	assert.True(t, tk.IsTimedOutOverall())
}

func TestCreateThenToDTO(t *testing.T) {
	clk := clock.NewVirtual(time.Unix(0, 0))
	tk := newTask(clk, nil)

	dto := tk.ToDTO()
	assert.Equal(t, types.TaskCreated, dto.State)
	assert.Empty(t, dto.Reports)
	assert.Equal(t, types.FinishUnfinished, dto.TaskFinishType)
}

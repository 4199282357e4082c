package worker

import (
	"fmt"
	"io"
	"os"

	"github.com/hacluster/pcsd/pkg/ipc"
	"github.com/hacluster/pcsd/pkg/types"
)

// CommandRunner executes one library command and returns its result,
// emitting progress via report. It is the seam between this package
// and pkg/library's actual command implementations, which stay out of
// the core per spec.md §1.
type CommandRunner interface {
	Run(cmd types.Command, authUser types.AuthUser, report func(types.ReportItem)) (result any, err error)
}

// RunEntrypoint is the body of the daemon's hidden "exec-worker"
// subcommand: it reads DispatchEnvelopes from stdin and writes
// TaskExecuted, Report, and TaskFinished messages to stdout until its
// parent closes the pipe. One dispatch at a time, matching spec.md
// §4.D's "a worker executes at most one task at a time" invariant.
func RunEntrypoint(runner CommandRunner) error {
	enc := ipc.NewEncoder(os.Stdout)
	dec := ipc.NewDecoder(os.Stdin)
	pid := os.Getpid()

	for {
		env, err := dec.Receive()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if env.Shutdown {
			return nil
		}
		if env.Dispatch == nil {
			continue
		}
		runDispatch(enc, pid, *env.Dispatch, runner)
	}
}

func runDispatch(enc *ipc.Encoder, pid int, d types.DispatchEnvelope, runner CommandRunner) {
	_ = enc.Send(ipc.Envelope{Message: &types.Message{
		TaskID: d.TaskID,
		Kind:   types.MessageTaskExecuted,
		Executed: types.TaskExecutedPayload{
			WorkerPID: pid,
		},
	}})

	report := func(item types.ReportItem) {
		_ = enc.Send(ipc.Envelope{Message: &types.Message{
			TaskID: d.TaskID,
			Kind:   types.MessageReport,
			Report: item,
		}})
	}

	finishType, result := runSafely(runner, d, report)

	_ = enc.Send(ipc.Envelope{Message: &types.Message{
		TaskID: d.TaskID,
		Kind:   types.MessageTaskFinished,
		Finished: types.TaskFinishedPayload{
			FinishType: finishType,
			Result:     result,
		},
	}})
}

// runSafely invokes the library command and recovers an unhandled
// panic into FinishInternalError, per spec.md §4.D's "on unhandled
// exception" row - a handled library error (a returned err) is
// FinishFail, a panic is the worker-side analogue of a crash the
// scheduler's defunct detection would otherwise have to catch.
func runSafely(runner CommandRunner, d types.DispatchEnvelope, report func(types.ReportItem)) (finishType types.TaskFinishType, result any) {
	defer func() {
		if r := recover(); r != nil {
			finishType = types.FinishInternalError
			result = fmt.Sprintf("panic: %v", r)
		}
	}()

	res, err := runner.Run(d.Command, d.AuthUser, report)
	if err != nil {
		return types.FinishFail, err.Error()
	}
	return types.FinishSuccess, res
}

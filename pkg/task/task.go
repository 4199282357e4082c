// Package task implements the per-task record and state machine
// described in spec.md §4.B. A Task is mutated only by the scheduler,
// in response to inbound Messages or timers; request_kill may be
// called from any goroutine and only sets a flag that the scheduler
// acts on during its next tick.
package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hacluster/pcsd/pkg/clock"
	"github.com/hacluster/pcsd/pkg/types"
)

// ErrProtocolViolation is raised when a Message arrives for a task
// whose current state does not permit it (e.g. a duplicate
// TaskExecuted, or TaskFinished for a Created task).
var ErrProtocolViolation = errors.New("task: protocol violation")

// ErrUnknownMessage is raised when receive_message is handed a Kind it
// does not recognize. With the Go type system this can only happen if
// a caller fabricates an out-of-range MessageKind, but the spec
// requires the check to exist as an explicit default arm.
var ErrUnknownMessage = errors.New("task: unknown message kind")

// Signaler delivers a cooperative-termination request to an OS
// process. It exists so tests can substitute a fake without spawning
// real subprocesses; production wires it to pkg/worker's pool.
type Signaler interface {
	// Terminate asks the process identified by pid to stop. A process
	// that no longer exists is reported with alreadyGone=true (an
	// implementation may also return an error describing it); Kill
	// treats that as a completed kill, so only an error with
	// alreadyGone=false counts as a real failure.
	Terminate(pid int) (alreadyGone bool, err error)
}

// Config bundles the timeouts a Task consults when asked whether it
// is defunct, abandoned, or overall-timed-out.
type Config struct {
	UnresponsiveTimeout time.Duration
	AbandonedTimeout    time.Duration
	DefaultRequestTimeout time.Duration
}

// Task is one asynchronous execution of a library command. All
// exported methods are safe for concurrent use; the scheduler is the
// only writer, request_kill/RequestKill may be called from HTTP
// handler goroutines concurrently with the scheduler tick.
type Task struct {
	mu sync.Mutex

	id        types.TaskID
	command   types.Command
	authUser  types.AuthUser
	createdAt time.Time

	state          types.TaskState
	finishType     types.TaskFinishType
	result         any
	reports        []types.ReportItem
	workerPID      int
	hasWorkerPID   bool
	lastMessageAt  time.Time
	hasLastMessage bool
	killRequested  bool
	killReason     types.TaskKillReason

	clock  clock.Clock
	cfg    Config
	signal Signaler
}

// New constructs a Task in state Created. createdAt is stamped from
// clk so tests can pin it.
func New(id types.TaskID, cmd types.Command, authUser types.AuthUser, clk clock.Clock, cfg Config, signal Signaler) *Task {
	return &Task{
		id:        id,
		command:   cmd,
		authUser:  authUser,
		createdAt: clk.Now(),
		state:     types.TaskCreated,
		clock:     clk,
		cfg:       cfg,
		signal:    signal,
	}
}

// ID returns the task's immutable identifier.
func (t *Task) ID() types.TaskID { return t.id }

// State returns the current lifecycle state.
func (t *Task) State() types.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// WorkerPID returns the pid bound at TaskExecuted time, if any.
func (t *Task) WorkerPID() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.workerPID, t.hasWorkerPID
}

// CreatedAt returns the task's creation timestamp.
func (t *Task) CreatedAt() time.Time {
	return t.createdAt
}

// ToDTO returns a deep-copied, read-only snapshot.
func (t *Task) ToDTO() types.TaskDTO {
	t.mu.Lock()
	defer t.mu.Unlock()

	reports := make([]types.ReportItem, len(t.reports))
	copy(reports, t.reports)

	return types.TaskDTO{
		TaskID:         t.id,
		Command:        t.command,
		State:          t.state,
		TaskFinishType: t.finishType,
		Result:         t.result,
		Reports:        reports,
		KillReason:     t.killReason,
	}
}

// ReceiveMessage dispatches on msg.Kind per spec.md §4.B. It never
// returns ErrUnknownMessage for one of the three known kinds -
// ErrProtocolViolation is returned when the kind is legal in general
// but illegal for the task's current state.
func (t *Task) ReceiveMessage(msg types.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch msg.Kind {
	case types.MessageReport:
		t.reports = append(t.reports, msg.Report)
		t.stampLastMessage()
		return nil

	case types.MessageTaskExecuted:
		if t.state != types.TaskQueued {
			return fmt.Errorf("%w: TaskExecuted while state=%s", ErrProtocolViolation, t.state)
		}
		t.state = types.TaskExecuted
		t.workerPID = msg.Executed.WorkerPID
		t.hasWorkerPID = true
		t.stampLastMessage()
		return nil

	case types.MessageTaskFinished:
		if t.state != types.TaskQueued && t.state != types.TaskExecuted {
			return fmt.Errorf("%w: TaskFinished while state=%s", ErrProtocolViolation, t.state)
		}
		t.state = types.TaskFinished
		t.finishType = msg.Finished.FinishType
		t.result = msg.Finished.Result
		t.stampLastMessage()
		return nil

	default:
		return fmt.Errorf("%w: kind=%d", ErrUnknownMessage, msg.Kind)
	}
}

// stampLastMessage must be called with mu held.
func (t *Task) stampLastMessage() {
	t.lastMessageAt = t.clock.Now()
	t.hasLastMessage = true
}

// ForceFinish transitions the task directly to Finished with the
// given finish type, used by the scheduler when it decides a task is
// unsalvageable (ProtocolViolation, UnknownMessage, WorkerCrash). It
// does not signal the worker; callers that need that call Kill first.
func (t *Task) ForceFinish(finishType types.TaskFinishType, result any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == types.TaskFinished {
		return
	}
	t.state = types.TaskFinished
	t.finishType = finishType
	t.result = result
	t.stampLastMessage()
}

// MarkQueued transitions a Created task to Queued once the scheduler
// has handed its dispatch envelope to the worker pool's in-queue. It
// is a no-op if the task is not currently Created, so a task whose
// kill raced the dispatch step does not get resurrected into Queued.
func (t *Task) MarkQueued() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TaskCreated {
		return
	}
	t.state = types.TaskQueued
}

// RequestKill sets the kill flag and reason if not already set. It is
// idempotent and does not itself signal the worker; the actual
// termination happens the next time the scheduler calls Kill.
func (t *Task) RequestKill(reason types.TaskKillReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.killRequested {
		return
	}
	t.killRequested = true
	t.killReason = reason
}

// IsKillRequested reports whether RequestKill has been called.
func (t *Task) IsKillRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.killRequested
}

// Kill performs the terminal kill action described in spec.md §4.B.
// It is idempotent: calling it N times yields the same final
// (state, finishType) as calling it once.
func (t *Task) Kill() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case types.TaskCreated:
		t.state = types.TaskFinished
		t.finishType = types.FinishKill
		t.stampLastMessage()
		return nil

	case types.TaskQueued:
		// The dispatch has not yet been claimed by a worker; we don't
		// know a pid to signal, and sending nothing here is correct -
		// the scheduler will re-evaluate next tick once (if ever) the
		// worker claims it and sends TaskExecuted.
		return nil

	case types.TaskExecuted:
		pid := t.workerPID
		if t.signal != nil {
			if alreadyGone, err := t.signal.Terminate(pid); err != nil && !alreadyGone {
				return fmt.Errorf("task: terminate worker pid %d: %w", pid, err)
			}
		}
		t.state = types.TaskFinished
		t.finishType = types.FinishKill
		t.stampLastMessage()
		return nil

	case types.TaskFinished:
		return nil

	default:
		return fmt.Errorf("task: kill from unknown state %d", t.state)
	}
}

// getLastUpdatedTimestamp returns the timestamp staleness checks
// compare against. It is nil only when the task has never received a
// message and has not been force-finished from Created - i.e. never
// for a task in Executed (TaskExecuted always stamps it) or Finished
// (ForceFinish/Kill always stamp it too).
func (t *Task) getLastUpdatedTimestamp() (time.Time, bool) {
	if t.hasLastMessage {
		return t.lastMessageAt, true
	}
	return time.Time{}, false
}

// LastActivityAt returns the timestamp of the most recent inbound
// message (report, TaskExecuted, TaskFinished) or finish (Kill,
// ForceFinish), for the audit sink's FinishedAt field. Moving to Queued
// does not stamp it, so the bool is false for a Created or Queued task
// that has had neither.
func (t *Task) LastActivityAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLastUpdatedTimestamp()
}

func (t *Task) isTimedOut(window time.Duration) bool {
	last, ok := t.getLastUpdatedTimestamp()
	if !ok {
		return false
	}
	return t.clock.Now().Sub(last) > window
}

// IsDefunct reports whether an Executed task has gone silent for
// longer than the configured unresponsive window. Strictly greater
// than the window triggers; exactly at the boundary does not.
func (t *Task) IsDefunct() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TaskExecuted {
		return false
	}
	return t.isTimedOut(t.cfg.UnresponsiveTimeout)
}

// IsAbandoned reports whether a Finished task's result has gone
// uncollected for longer than the abandonment window.
func (t *Task) IsAbandoned() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != types.TaskFinished {
		return false
	}
	return t.isTimedOut(t.cfg.AbandonedTimeout)
}

// IsTimedOutOverall reports whether the command's request_timeout (or
// the configured default) has elapsed since CreatedAt.
func (t *Task) IsTimedOutOverall() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timeout := t.cfg.DefaultRequestTimeout
	if t.command.Options.RequestTimeout != nil {
		timeout = *t.command.Options.RequestTimeout
	}
	if timeout <= 0 {
		return false
	}
	return t.clock.Now().Sub(t.createdAt) > timeout
}

// AuthUser returns the identity the task was created under.
func (t *Task) AuthUser() types.AuthUser { return t.authUser }

// Command returns the task's immutable command.
func (t *Task) Command() types.Command { return t.command }

// setStateForTest is used only by tests that need to force a starting
// state without going through the message protocol (mirrors the
// original test suite poking task.state directly).
func (t *Task) setStateForTest(s types.TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// SetStateForTest is the exported form of setStateForTest, confined to
// test helpers in this package and its _test.go files.
func SetStateForTest(t *Task, s types.TaskState) {
	t.setStateForTest(s)
}

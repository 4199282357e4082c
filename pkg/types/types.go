// Package types holds the wire-level and DTO types shared across the
// async task subsystem: the Command a caller submits, the AuthUser it
// runs as, and the enums that drive the Task state machine.
package types

import "time"

// TaskID is an opaque, unguessable identifier for a live task.
type TaskID string

// Command is the triple a caller submits for asynchronous execution.
// Params is validated by the library layer, not by the core.
type Command struct {
	Name    string
	Params  map[string]string
	Options CommandOptions
}

// CommandOptions carries the optional knobs a caller may attach to a
// Command.
type CommandOptions struct {
	// RequestTimeout is the overall wall-clock budget for the task,
	// measured from CreatedAt. Nil means "apply the configured
	// default"; an explicit zero means "no overall timeout".
	RequestTimeout *time.Duration
	// CorrelationID is opaque caller-supplied data threaded through
	// logs and the audit sink; it has no effect on scheduling.
	CorrelationID string
}

// AuthUser is the already-resolved identity attached to a task at
// create time. How it was obtained (password, token, or peer-credential
// lookup on a local socket) is the concern of the external auth
// collaborator (see pkg/auth).
type AuthUser struct {
	Username    string
	Groups      []string
	IsSuperuser bool
}

// TaskState is the task lifecycle. It only ever advances in this
// order; Created -> Finished is legal (a kill before dispatch).
type TaskState int

const (
	TaskCreated TaskState = iota
	TaskQueued
	TaskExecuted
	TaskFinished
)

// String renders the state for logs and DTOs.
func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskQueued:
		return "queued"
	case TaskExecuted:
		return "executed"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// TaskFinishType is meaningful only once a task's state is Finished.
type TaskFinishType int

const (
	FinishUnfinished TaskFinishType = iota
	FinishSuccess
	FinishFail
	FinishKill
	FinishInternalError
)

// String renders the finish type for logs and DTOs.
func (f TaskFinishType) String() string {
	switch f {
	case FinishUnfinished:
		return "unfinished"
	case FinishSuccess:
		return "success"
	case FinishFail:
		return "fail"
	case FinishKill:
		return "kill"
	case FinishInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// TaskKillReason records why a task's kill flag was raised.
type TaskKillReason int

const (
	KillReasonNone TaskKillReason = iota
	KillReasonUser
	KillReasonInternalMessaging
	KillReasonCompletionTimeout
)

// String renders the kill reason for logs and DTOs.
func (r TaskKillReason) String() string {
	switch r {
	case KillReasonNone:
		return "none"
	case KillReasonUser:
		return "user"
	case KillReasonInternalMessaging:
		return "internal_messaging"
	case KillReasonCompletionTimeout:
		return "completion_timeout"
	default:
		return "unknown"
	}
}

// ReportItem is one progress/diagnostic entry a worker emits while
// executing a command. The core treats the payload as opaque; the
// library layer defines its actual shape.
type ReportItem struct {
	Code    string
	Message string
	Payload map[string]string
}

// TaskDTO is the read-only snapshot returned to HTTP callers. It
// deliberately omits internal fields (worker pid, timestamps) that
// have no meaning outside the daemon process.
type TaskDTO struct {
	TaskID         TaskID
	Command        Command
	State          TaskState
	TaskFinishType TaskFinishType
	Result         any
	Reports        []ReportItem
	KillReason     TaskKillReason
}

// MessageKind tags the payload carried by a Message on the out-queue.
type MessageKind int

const (
	MessageReport MessageKind = iota
	MessageTaskExecuted
	MessageTaskFinished
)

// Message is an envelope on the out-queue (worker -> daemon). Kind
// determines which of the Report/Executed/Finished fields is
// populated; this is a tagged union rather than a dynamic type check,
// per the design note on avoiding runtime type dispatch.
type Message struct {
	TaskID TaskID
	Kind   MessageKind

	Report   ReportItem
	Executed TaskExecutedPayload
	Finished TaskFinishedPayload
}

// TaskExecutedPayload is carried by a MessageTaskExecuted envelope.
type TaskExecutedPayload struct {
	WorkerPID int
}

// TaskFinishedPayload is carried by a MessageTaskFinished envelope.
type TaskFinishedPayload struct {
	FinishType TaskFinishType
	Result     any
}

// DispatchEnvelope is placed on the in-queue to assign a task to a
// worker.
type DispatchEnvelope struct {
	TaskID   TaskID
	Command  Command
	AuthUser AuthUser
}

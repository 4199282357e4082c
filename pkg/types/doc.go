/*
Package types defines the data structures shared across the async
task subsystem: the Command a caller submits, the AuthUser it runs
under, the Task lifecycle enums, and the message/envelope shapes that
cross the worker IPC boundary.

# Architecture

This package is intentionally small and dependency-free: it holds
value types only, so pkg/task, pkg/registry, pkg/scheduler, pkg/worker
and pkg/bus can all import it without creating cycles.

# Core Types

Command Execution:
  - Command: {Name, Params, Options} triple submitted by a caller
  - CommandOptions: RequestTimeout and CorrelationID
  - AuthUser: resolved identity a task runs under

Task Lifecycle:
  - TaskState: Created -> Queued -> Executed -> Finished (monotone)
  - TaskFinishType: meaningful only once State == Finished
  - TaskKillReason: why the kill flag was raised

Worker IPC:
  - DispatchEnvelope: placed on the in-queue to assign a task
  - Message / MessageKind: tagged union carried on the out-queue
    (Report, TaskExecuted, TaskFinished) - deliberately not a bare
    interface{} payload, so the scheduler never needs a type switch
    with a silent default case

# State Machine

	Created -> Queued -> Executed -> Finished

Created -> Finished is also legal (a kill before the scheduler ever
dispatches the task). No other transition is permitted; pkg/task
enforces this and returns ErrProtocolViolation otherwise.

# Design Patterns

Enumeration Pattern:

	Enums are small integers with a String method for logging, rather
	than raw strings, so invalid values can't silently round-trip
	through a switch statement's default case.

Tagged Union Pattern:

	Message carries a Kind discriminator plus one populated payload
	field per kind, replacing the source implementation's runtime
	type check on the message payload (see design notes in
	SPEC_FULL.md).

# Integration Points

This package is imported by:

  - pkg/task: the per-task state machine
  - pkg/registry: task creation, lookup, garbage collection
  - pkg/scheduler: the tick loop that drives state transitions
  - pkg/worker: the pool and the worker-side dispatch loop
  - pkg/bus: the in-queue/out-queue message transport
  - pkg/httpapi: DTO rendering for the registry-facing API
*/
package types

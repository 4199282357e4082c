/*
Package task implements the Task record and state machine from
spec.md §4.B: the per-task lifecycle, its append-only report log, and
the staleness checks (defunct / abandoned / overall-timeout) the
scheduler consults on every tick.

# State Machine

	Created -> Queued -> Executed -> Finished

Created -> Finished is also legal (a kill before dispatch). Every
other transition - including a second TaskExecuted for an already
Executed task - is rejected with ErrProtocolViolation, which the
scheduler turns into a forced Finished/InternalError per spec.md §7.

# Kill Semantics

Kill's behavior depends entirely on the state it is called in:

	Created  -> Finished/Kill, no signal sent
	Queued   -> no-op (no pid is known yet)
	Executed -> SIGTERM-equivalent via Signaler, then Finished/Kill
	Finished -> no-op

Kill is idempotent: the Signaler is invoked at most once per task,
even across repeated calls, because the first call already moves the
task to Finished and every later call short-circuits there.

# Ambient Clock

All staleness checks go through the clock.Clock injected at
construction time, never time.Now directly, so scheduler and task
tests can use a clock.Virtual and assert the exact boundary behavior
spec.md §8 calls out (exactly-at-the-window is not yet timed out;
strictly past it is).
*/
package task

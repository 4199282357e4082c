/*
Package scheduler implements the tick loop from spec.md §4.C: the
single place where task state visibly advances.

# The Six Steps

Every tick runs, in this fixed order, over every currently live task:

 1. Drain messages - apply every out-queue message (Report,
    TaskExecuted, TaskFinished) to the task it names.
 2. Honor kill requests - call Kill on any task with a pending flag.
 3. Detect defunct workers - force-finish an Executed task that has
    gone silent past the unresponsive window.
 4. Detect overall timeouts - kill a task whose request_timeout has
    elapsed, before it gets a chance to dispatch this tick.
 5. Dispatch queued - push every Created task's DispatchEnvelope onto
    the in-queue, FIFO by creation order.
 6. Reap abandoned - delete a Finished task whose result has gone
    uncollected past the abandoned window.

The order matters: a task that both times out and would otherwise be
dispatched this tick is killed, not dispatched, because timeout
detection runs before dispatch. A task killed in step 2 is not also
reaped in step 6 within the same tick, because reaping only fires once
the abandoned window has actually elapsed after the kill.

# Single Writer

Tick runs on exactly one goroutine. Nothing outside this package ever
calls a task's state-mutating methods directly except via the flags
(RequestKill) that pkg/registry exposes - the scheduler is the only
caller of ReceiveMessage, Kill, ForceFinish, and MarkQueued. This is
what lets pkg/task keep its own locking minimal: it only needs to
protect against concurrent readers (HTTP handlers calling ToDTO), not
concurrent writers.
*/
package scheduler

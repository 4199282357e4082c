/*
Package bus implements the message bus from spec.md §4.E: a bounded
in-queue (dispatch envelopes, scheduler -> worker pool) and a bounded
out-queue (Report/TaskExecuted/TaskFinished messages, worker pool ->
scheduler).

# Ordering

The bus guarantees per-task message ordering, not global ordering.
That guarantee falls out of two facts rather than any bookkeeping in
this package: a worker process executes exactly one task at a time
(spec.md §4.D), and a single Go channel delivers sends in the order
they were made. So long as each worker pushes its own task's messages
serially - which pkg/worker does - the shared out-queue channel
preserves each task's Report*, TaskExecuted, TaskFinished sequence
even though unrelated tasks' messages interleave with it.

# Backpressure

Push operations never block; a full queue returns ErrFull
immediately. The scheduler's dispatch step (spec.md §4.C.5) treats a
full in-queue as "try again next tick", and a worker emitting Report
messages under a full out-queue is expected to drop the report rather
than stall the command it is running.
*/
package bus

/*
Package registry implements the Task registry from spec.md §4.A: the
single owner of every live task.Task record.

# Responsibilities

Create allocates a new record under the configured
max_concurrent_tasks ceiling and returns an unguessable id minted with
google/uuid, mirroring the original daemon's refusal to accept more
concurrent work than it was provisioned for (ErrCapacityExceeded).

Get and List return deep-copied DTOs; callers outside this package
never see a live *task.Task, so they cannot mutate state outside the
scheduler's control. Lookup is the internal escape hatch the scheduler
uses to reach the live record directly.

Kill only ever sets a flag on the target task (via task.RequestKill);
it does not signal anything itself. Delete removes a record entirely
and is called exclusively by the scheduler's garbage-collection step,
never by an HTTP handler.

# Concurrency

A single mutex guards the map. Every method is O(1) except IterLive
and List, which copy the current set of pointers/DTOs under the lock
and then sort or transform them outside it, so the lock is never held
across a task.Task method call.
*/
package registry

/*
Package worker implements the worker pool from spec.md §4.D.

# Process Model

Each worker is a real OS subprocess, not a goroutine: the daemon
re-execs its own binary with a hidden "exec-worker" subcommand
(RunEntrypoint) and talks to it over the subprocess's stdin/stdout
using pkg/ipc. This gives kill a literal pid to send SIGTERM to and
lets a crashed worker be detected the same way the original daemon
detects it - the pipe closes.

# Slots and Respawn

Pool keeps one slot per configured worker. A slot is occupied for the
duration of exactly one task: the dispatch loop only hands a slot a new
DispatchEnvelope once its previous TaskFinished message has been
observed. If a worker's read loop hits an unexpected error or EOF
mid-task, handleCrash synthesizes a TaskFinished/InternalError message
for the in-flight task (spec.md §7's WorkerCrash row) and immediately
respawns the slot so pool capacity never shrinks permanently because of
one bad worker.

# Testing Without Forking

process and launcher are package-private interfaces specifically so
tests can swap the real self-exec subprocess for an in-memory
io.Pipe-backed loopback, without ever invoking os/exec.
*/
package worker

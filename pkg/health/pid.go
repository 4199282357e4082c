package health

import (
	"context"
	"os"
	"syscall"
	"time"
)

// PIDChecker reports whether a worker subprocess's OS process still
// exists, by sending it signal 0 - the same no-op probe a shell's
// `kill -0` performs, which delivers no signal but still fails with
// ESRCH if the pid is gone.
type PIDChecker struct {
	PID int
}

// NewPIDChecker creates a checker bound to a worker's OS pid.
func NewPIDChecker(pid int) *PIDChecker {
	return &PIDChecker{PID: pid}
}

// Check probes the process once. ctx is accepted to satisfy Checker
// but a signal-0 probe is not itself cancelable; callers that need a
// hard deadline should race Check against ctx.Done() themselves.
func (c *PIDChecker) Check(ctx context.Context) Result {
	start := time.Now()

	proc, err := os.FindProcess(c.PID)
	if err != nil {
		return Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return Result{Healthy: true, Message: "process alive", CheckedAt: start, Duration: time.Since(start)}
	}

	return Result{Healthy: false, Message: err.Error(), CheckedAt: start, Duration: time.Since(start)}
}

// Type identifies this checker's kind.
func (c *PIDChecker) Type() CheckType { return CheckTypePID }

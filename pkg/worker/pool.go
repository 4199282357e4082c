// Package worker implements the worker pool from spec.md §4.D: a
// fixed-size set of OS subprocesses, each running one task at a time,
// consuming dispatch envelopes from the in-queue and emitting
// TaskExecuted, zero or more Report messages, then TaskFinished on the
// out-queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hacluster/pcsd/pkg/bus"
	"github.com/hacluster/pcsd/pkg/health"
	"github.com/hacluster/pcsd/pkg/ipc"
	"github.com/hacluster/pcsd/pkg/log"
	"github.com/hacluster/pcsd/pkg/metrics"
	"github.com/hacluster/pcsd/pkg/types"
)

// ErrProcessNotFound mirrors spec.md §7: a kill or dispatch addressed
// a worker slot whose OS process has already exited.
var ErrProcessNotFound = errors.New("worker: process not found")

// Config sizes the pool.
type Config struct {
	Count int
}

// slot owns one worker subprocess across its lifetime, including any
// respawns after a crash.
type slot struct {
	mu      sync.Mutex
	index   int
	proc    process
	taskID  types.TaskID
	hasTask bool
}

// Pool manages Config.Count worker subprocesses. It implements
// task.Signaler so pkg/task.Kill can terminate a specific worker by
// pid without depending on this package directly.
type Pool struct {
	cfg      Config
	launcher launcher
	bus      *bus.TaskBus

	mu    sync.Mutex
	cond  *sync.Cond
	slots []*slot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Pool. Start must be called before it does any work.
func New(cfg Config, l launcher, b *bus.TaskBus) *Pool {
	p := &Pool{cfg: cfg, launcher: l, bus: b}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start spawns Config.Count workers and begins the dispatch loop that
// pulls DispatchEnvelopes off the in-queue and hands them to free
// slots.
func (p *Pool) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.Count; i++ {
		s := &slot{index: i}
		if err := p.spawn(s); err != nil {
			p.Stop()
			return fmt.Errorf("worker: spawn slot %d: %w", i, err)
		}
		p.slots = append(p.slots, s)
	}

	p.wg.Add(1)
	go p.dispatchLoop()

	p.wg.Add(1)
	go p.watchShutdown()

	return nil
}

// Stop cancels the dispatch loop and waits for its goroutine to
// return. It does not itself kill subprocesses; that is the
// scheduler's job via Terminate, keeping process lifetime decisions
// centralized in one place. Read loops are not waited for: each
// returns when its worker process exits and closes its pipe.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// watchShutdown wakes any goroutine blocked in acquireFreeSlot once the
// pool is told to stop, so Stop never hangs waiting on a slot that will
// never free.
func (p *Pool) watchShutdown() {
	defer p.wg.Done()
	<-p.ctx.Done()
	p.cond.Broadcast()
}

func (p *Pool) spawn(s *slot) error {
	proc, err := p.launcher.Launch()
	if err != nil {
		return err
	}

	p.mu.Lock()
	s.mu.Lock()
	s.proc = proc
	s.hasTask = false
	s.mu.Unlock()
	p.mu.Unlock()
	p.cond.Broadcast()

	go p.readLoop(s)
	return nil
}

// readLoop decodes every Envelope a worker subprocess sends until it
// exits, forwarding Messages to the out-queue and respawning the
// process if it dies mid-task.
func (p *Pool) readLoop(s *slot) {
	for {
		s.mu.Lock()
		dec := s.proc.Decoder()
		s.mu.Unlock()

		env, err := dec.Receive()
		if err != nil {
			p.handleCrash(s, err)
			return
		}
		if env.Message != nil {
			if env.Message.Kind == types.MessageTaskFinished {
				p.releaseSlot(s)
			}
			_ = p.bus.PushOut(*env.Message)
		}
	}
}

// releaseSlot marks s free and wakes any dispatchLoop goroutine parked
// in acquireFreeSlot waiting for one. The flag flip happens under p.mu -
// the same lock acquireFreeSlot holds across its whole scan-then-wait -
// so a release can never land in the gap between the scan finding every
// slot busy and the call to cond.Wait, which would otherwise drop the
// wakeup and strand the next task in Queued.
func (p *Pool) releaseSlot(s *slot) {
	p.mu.Lock()
	s.mu.Lock()
	s.hasTask = false
	s.mu.Unlock()
	p.mu.Unlock()
	p.cond.Broadcast()
}

// handleCrash reports a WorkerCrash for any in-flight task and
// respawns the slot, per spec.md §4.D.2 and the WorkerCrash row of the
// §7 error table. A readLoop exits on its own crash path only, so no
// further respawn attempt races with this one.
func (p *Pool) handleCrash(s *slot, cause error) {
	p.mu.Lock()
	s.mu.Lock()
	taskID := s.taskID
	hadTask := s.hasTask
	s.hasTask = true // held out of rotation until spawn below replaces the process
	s.mu.Unlock()
	p.mu.Unlock()

	if !errors.Is(cause, io.EOF) {
		log.WithComponent("worker-pool").Error().Err(cause).Int("slot", s.index).Msg("worker read loop failed")
	} else {
		log.WithComponent("worker-pool").Warn().Int("slot", s.index).Msg("worker process exited")
	}
	metrics.WorkerCrashesTotal.Inc()

	// Reap the exited process so it doesn't linger as a zombie; the
	// pipe closing (our EOF above) means the process has already
	// exited or is about to, so Wait returns promptly.
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc != nil {
		_ = proc.Wait()
		proc.Close()
	}

	if hadTask {
		_ = p.bus.PushOut(types.Message{
			TaskID: taskID,
			Kind:   types.MessageTaskFinished,
			Finished: types.TaskFinishedPayload{
				FinishType: types.FinishInternalError,
			},
		})
	}

	select {
	case <-p.ctx.Done():
		return
	default:
	}

	// The slot stays marked busy (whatever hadTask was) until spawn
	// actually replaces s.proc and flips it free itself - handing a
	// dispatchLoop waiter the dead process in between would fail the
	// very next send.
	if err := p.spawn(s); err != nil {
		log.WithComponent("worker-pool").Error().Err(err).Int("slot", s.index).Msg("failed to respawn worker")
	}
}

// dispatchLoop assigns queued work to free slots. It never drops an
// envelope once popped: the scheduler already marked the task Queued
// before pushing it, and task.Kill is a no-op for a Queued task, so a
// dropped envelope would strand it forever. dispatchOne instead blocks
// until a slot is free, per spec.md §4.C.5's reserve-at-dispatch rule.
func (p *Pool) dispatchLoop() {
	defer p.wg.Done()
	for {
		env, ok := p.bus.PopIn(p.ctx)
		if !ok {
			return
		}
		p.dispatchOne(env)
	}
}

// dispatchOne reserves a slot and hands it env, retrying against
// another slot if the send itself fails (the process it just reserved
// died in the gap between being marked free and being handed work)
// rather than dropping the envelope.
func (p *Pool) dispatchOne(env types.DispatchEnvelope) {
	for {
		s := p.acquireFreeSlot(p.ctx)
		if s == nil {
			return // pool is shutting down
		}
		if p.send(s, env) {
			return
		}
	}
}

// acquireFreeSlot blocks until a slot is free or ctx is done, reserving
// it atomically with the scan so a concurrent release can never land
// in the gap between finding every slot busy and parking on cond.Wait.
func (p *Pool) acquireFreeSlot(ctx context.Context) *slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for _, s := range p.slots {
			s.mu.Lock()
			free := !s.hasTask
			if free {
				s.hasTask = true
			}
			s.mu.Unlock()
			if free {
				return s
			}
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		p.cond.Wait()
	}
}

// send reports whether env was handed to s's subprocess. On failure it
// releases s (waking any dispatchOne waiter) so the caller can retry
// against a different slot instead of dropping env.
func (p *Pool) send(s *slot, env types.DispatchEnvelope) bool {
	s.mu.Lock()
	s.taskID = env.TaskID
	enc := s.proc.Encoder()
	s.mu.Unlock()

	if err := enc.Send(ipc.Envelope{Dispatch: &env}); err != nil {
		log.WithComponent("worker-pool").Error().Err(err).Msg("failed to send dispatch to worker, retrying on another slot")
		p.releaseSlot(s)
		return false
	}
	return true
}

// Terminate implements task.Signaler by finding the slot whose
// process currently owns pid and asking it to stop. Workers expose
// their OS pid via the TaskExecuted message, so the scheduler already
// knows which pid to pass here without this package tracking
// task-to-pid mappings itself.
func (p *Pool) Terminate(pid int) (alreadyGone bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.slots {
		s.mu.Lock()
		proc := s.proc
		var procPID int
		if proc != nil {
			procPID = proc.PID()
		}
		s.mu.Unlock()

		if procPID == pid {
			return proc.Terminate()
		}
	}
	return true, ErrProcessNotFound
}

// Len returns the configured pool size, for metrics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// ProbeHealth runs a signal-0 liveness check (pkg/health) against every
// occupied slot's OS process. It is a supplemental diagnostic, not the
// pool's crash-detection path: a worker whose process exits is caught
// by readLoop's EOF handling when its pipe closes. The probe only
// checks that the pid still exists, so a worker that is alive but
// silent reports healthy. The metrics collector polls this to publish
// WorkerPoolUnhealthy.
func (p *Pool) ProbeHealth(ctx context.Context) []health.Result {
	p.mu.Lock()
	slots := make([]*slot, len(p.slots))
	copy(slots, p.slots)
	p.mu.Unlock()

	results := make([]health.Result, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		proc := s.proc
		occupied := s.hasTask
		s.mu.Unlock()
		if proc == nil || !occupied {
			continue
		}
		results = append(results, health.NewPIDChecker(proc.PID()).Check(ctx))
	}
	return results
}

// Occupied returns how many slots currently have a task assigned.
func (p *Pool) Occupied() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		s.mu.Lock()
		if s.hasTask {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// Package scheduler implements the scheduler loop from spec.md §4.C:
// a single goroutine that, once per tick, performs six steps in
// order - drain messages, honor kill requests, detect defunct
// workers, detect overall timeouts, dispatch queued tasks FIFO, and
// reap abandoned records - so that every externally-visible state
// transition happens on one thread and needs no locking of its own
// beyond what pkg/task and pkg/registry already provide.
package scheduler

import (
	"context"
	"time"

	"github.com/hacluster/pcsd/pkg/audit"
	"github.com/hacluster/pcsd/pkg/bus"
	"github.com/hacluster/pcsd/pkg/clock"
	"github.com/hacluster/pcsd/pkg/log"
	"github.com/hacluster/pcsd/pkg/metrics"
	"github.com/hacluster/pcsd/pkg/registry"
	"github.com/hacluster/pcsd/pkg/task"
	"github.com/hacluster/pcsd/pkg/types"
)

// Config carries the knobs spec.md §6 assigns to the scheduler loop.
type Config struct {
	TickInterval time.Duration
}

// Scheduler owns the tick loop. It is not safe for concurrent Start
// calls; exactly one instance runs per daemon.
type Scheduler struct {
	cfg      Config
	reg      *registry.Registry
	bus      *bus.TaskBus
	clk      clock.Clock
	stopCh   chan struct{}
	doneCh   chan struct{}
	tickHook func() // set by tests to observe each tick

	audit *audit.Store // optional; nil disables history recording
}

// SetAuditStore attaches an audit sink that every task transitioning
// to Finished is recorded into. It is optional: a nil store (the
// default) means no history is kept.
func (s *Scheduler) SetAuditStore(store *audit.Store) {
	s.audit = store
}

func (s *Scheduler) recordFinish(t *task.Task) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(audit.RecordFromTask(t)); err != nil {
		log.WithComponent("scheduler").Warn().Err(err).Str("task_id", string(t.ID())).Msg("failed to append audit record")
	}
}

// New constructs a Scheduler.
func New(cfg Config, reg *registry.Registry, b *bus.TaskBus, clk clock.Clock) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		reg:    reg,
		bus:    b,
		clk:    clk,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the tick loop in a new goroutine until Stop is called or
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop signals the tick loop to exit and blocks until it has.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	logger := log.WithComponent("scheduler")
	for {
		select {
		case <-ticker.C:
			s.Tick()
			if s.tickHook != nil {
				s.tickHook()
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			logger.Info().Msg("scheduler stopping: context done")
			return
		}
	}
}

// Tick runs one atomic pass over every live task, in the six-step
// order spec.md §4.C requires. It is exported so tests (and a
// one-shot CLI diagnostic) can drive the scheduler without waiting on
// TickInterval.
func (s *Scheduler) Tick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulerTickDuration)

	s.drainMessages()
	live := s.reg.IterLive()

	s.honorKillRequests(live)
	s.detectDefunct(live)
	s.detectOverallTimeouts(live)
	s.dispatchQueued(live)
	s.reapAbandoned(live)
}

// drainMessages is step 1: pull every pending out-queue message and
// route it to its task by id. A message for an id no longer in the
// registry (the task was already reaped) is silently dropped.
func (s *Scheduler) drainMessages() {
	logger := log.WithComponent("scheduler")
	for _, msg := range s.bus.DrainOut() {
		t, ok := s.reg.Lookup(msg.TaskID)
		if !ok {
			continue
		}
		if err := t.ReceiveMessage(msg); err != nil {
			logger.Warn().Err(err).Str("task_id", string(msg.TaskID)).Msg("message rejected, forcing task to internal error")
			t.ForceFinish(types.FinishInternalError, nil)
			metrics.TasksFinishedTotal.WithLabelValues(types.FinishInternalError.String()).Inc()
			s.recordFinish(t)
			continue
		}
		if msg.Kind == types.MessageTaskFinished {
			metrics.TasksFinishedTotal.WithLabelValues(msg.Finished.FinishType.String()).Inc()
			s.recordFinish(t)
		}
	}
}

// honorKillRequests is step 2: any unfinished task with the kill flag
// set gets Kill() invoked once per tick. The flag is never cleared, so
// a Queued task is re-tried every tick; Kill is idempotent, so that is
// harmless.
func (s *Scheduler) honorKillRequests(live []*task.Task) {
	logger := log.WithComponent("scheduler")
	for _, t := range live {
		if !t.IsKillRequested() {
			continue
		}
		if t.State() == types.TaskFinished {
			continue
		}
		if err := t.Kill(); err != nil {
			logger.Error().Err(err).Str("task_id", string(t.ID())).Msg("kill failed")
			continue
		}
		if t.State() == types.TaskFinished {
			metrics.TasksFinishedTotal.WithLabelValues(types.FinishKill.String()).Inc()
			s.recordFinish(t)
		}
	}
}

// detectDefunct is step 3: an Executed task that has gone silent past
// the unresponsive window is killed with reason InternalMessaging, per
// spec.md §4.C step 3 and scenario 4 (the task ends Finished/Kill, not
// Finished/InternalError - that finish type is reserved for protocol
// violations and worker crashes observed mid-read).
func (s *Scheduler) detectDefunct(live []*task.Task) {
	logger := log.WithComponent("scheduler")
	for _, t := range live {
		if !t.IsDefunct() {
			continue
		}
		logger.Warn().Str("task_id", string(t.ID())).Msg("task defunct, killing unresponsive worker")
		t.RequestKill(types.KillReasonInternalMessaging)
		metrics.DefunctTasksTotal.Inc()
		if err := t.Kill(); err != nil {
			logger.Error().Err(err).Str("task_id", string(t.ID())).Msg("defunct kill failed")
			continue
		}
		if t.State() == types.TaskFinished {
			metrics.TasksFinishedTotal.WithLabelValues(types.FinishKill.String()).Inc()
			s.recordFinish(t)
		}
	}
}

// detectOverallTimeouts is step 4: a task whose total wall-clock
// budget has elapsed is killed with KillReasonCompletionTimeout.
func (s *Scheduler) detectOverallTimeouts(live []*task.Task) {
	for _, t := range live {
		if t.State() == types.TaskFinished {
			continue
		}
		if t.IsTimedOutOverall() {
			t.RequestKill(types.KillReasonCompletionTimeout)
			if err := t.Kill(); err != nil {
				log.WithComponent("scheduler").Error().Err(err).Str("task_id", string(t.ID())).Msg("timeout kill failed")
				continue
			}
			if t.State() == types.TaskFinished {
				metrics.TasksFinishedTotal.WithLabelValues(types.FinishKill.String()).Inc()
				s.recordFinish(t)
			}
		}
	}
}

// dispatchQueued is step 5: every Created task is handed to the
// worker pool's in-queue in FIFO order (IterLive is already sorted by
// CreatedAt). A task stays Created - not Queued - if the in-queue is
// currently full; it is retried on the next tick.
func (s *Scheduler) dispatchQueued(live []*task.Task) {
	for _, t := range live {
		if t.State() != types.TaskCreated {
			continue
		}
		env := types.DispatchEnvelope{
			TaskID:   t.ID(),
			Command:  t.Command(),
			AuthUser: t.AuthUser(),
		}
		if err := s.bus.PushIn(env); err != nil {
			continue
		}
		t.MarkQueued()
		metrics.DispatchLatency.Observe(s.clk.Now().Sub(t.CreatedAt()).Seconds())
	}
}

// reapAbandoned is step 6: a Finished task whose result has gone
// uncollected past the abandoned window is deleted from the registry.
func (s *Scheduler) reapAbandoned(live []*task.Task) {
	for _, t := range live {
		if t.IsAbandoned() {
			log.WithComponent("scheduler").Info().Str("task_id", string(t.ID())).Msg("reaping abandoned task")
			s.reg.Delete(t.ID())
			metrics.AbandonedTasksTotal.Inc()
		}
	}
}

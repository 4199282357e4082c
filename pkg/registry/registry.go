// Package registry implements the Task registry from spec.md §4.A: it
// owns every live Task record, and is the only component other
// packages go through to create, look up, kill, or delete one.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hacluster/pcsd/pkg/clock"
	"github.com/hacluster/pcsd/pkg/log"
	"github.com/hacluster/pcsd/pkg/metrics"
	"github.com/hacluster/pcsd/pkg/task"
	"github.com/hacluster/pcsd/pkg/types"
)

// ErrCapacityExceeded is returned by Create when the registry already
// holds max_concurrent_tasks live records.
var ErrCapacityExceeded = errors.New("registry: capacity exceeded")

// ErrNotFound is returned by Get and Kill when the task id is not
// (or no longer) present.
var ErrNotFound = errors.New("registry: task not found")

// Config bundles the registry-level knobs from spec.md §6.
type Config struct {
	MaxConcurrentTasks int
	Task               task.Config
}

// Registry owns the map of live task records. Create, Get, and Kill
// are the operations HTTP handlers call, each O(1) and lock protected,
// matching the concurrency model in spec.md §5: the scheduler is the
// sole writer of task internals (and the only caller of Delete), HTTP
// handlers only ever call through this surface.
type Registry struct {
	mu     sync.Mutex
	tasks  map[types.TaskID]*task.Task
	cfg    Config
	clock  clock.Clock
	signal task.Signaler
}

// New creates an empty Registry.
func New(cfg Config, clk clock.Clock, signal task.Signaler) *Registry {
	return &Registry{
		tasks:  make(map[types.TaskID]*task.Task),
		cfg:    cfg,
		clock:  clk,
		signal: signal,
	}
}

func (r *Registry) newID() types.TaskID {
	return types.TaskID(uuid.New().String())
}

// Create allocates a new task in state Created and returns its id.
func (r *Registry) Create(cmd types.Command, authUser types.AuthUser) (types.TaskID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxConcurrentTasks > 0 && len(r.tasks) >= r.cfg.MaxConcurrentTasks {
		metrics.TasksRejectedTotal.Inc()
		return "", ErrCapacityExceeded
	}

	var id types.TaskID
	for {
		id = r.newID()
		if _, exists := r.tasks[id]; !exists {
			break
		}
	}

	r.tasks[id] = task.New(id, cmd, authUser, r.clock, r.cfg.Task, r.signal)
	metrics.TasksCreatedTotal.Inc()
	log.WithTaskID(string(id)).Info().Str("command", cmd.Name).Msg("task created")
	return id, nil
}

// Get returns a read-only snapshot of the task, or ErrNotFound.
func (r *Registry) Get(id types.TaskID) (types.TaskDTO, error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return types.TaskDTO{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.ToDTO(), nil
}

// Kill sets the kill_requested flag and reason on the target task if
// not already set. It is idempotent and does not itself signal the
// worker - the scheduler delivers the actual termination.
func (r *Registry) Kill(id types.TaskID, reason types.TaskKillReason) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.RequestKill(reason)
	metrics.KillsRequestedTotal.WithLabelValues(reason.String()).Inc()
	return nil
}

// Delete removes a record from the registry. Only the scheduler calls
// this, during garbage collection of abandoned tasks.
func (r *Registry) Delete(id types.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// IterLive returns every current task record for the scheduler tick.
// The slice is a snapshot; tasks may be deleted concurrently by a
// later Delete call, but *task.Task itself remains valid to use after
// being returned here (its own internal lock protects it).
func (r *Registry) IterLive() []*task.Task {
	r.mu.Lock()
	out := make([]*task.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	r.mu.Unlock()

	// Deterministic order (by creation time) keeps FIFO dispatch and
	// tests reproducible; map iteration order is not.
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// Lookup returns the live *task.Task for id, used internally by the
// scheduler to route inbound messages without going through the DTO
// copy that Get performs.
func (r *Registry) Lookup(id types.TaskID) (*task.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Len returns the number of live records, for metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// List returns DTOs for every live task, for the list_tasks operation
// in spec.md §6.
func (r *Registry) List() []types.TaskDTO {
	live := r.IterLive()
	out := make([]types.TaskDTO, 0, len(live))
	for _, t := range live {
		out = append(out, t.ToDTO())
	}
	return out
}

package bus

import "github.com/hacluster/pcsd/pkg/types"

// TaskBus is the concrete instantiation the scheduler and worker pool
// share: DispatchEnvelope in, Message out.
type TaskBus = Bus[types.DispatchEnvelope, types.Message]

// NewTaskBus constructs a TaskBus with the given queue capacities,
// corresponding to the in-queue and out-queue sizing knobs in
// spec.md §5.
func NewTaskBus(inCapacity, outCapacity int) *TaskBus {
	return New[types.DispatchEnvelope, types.Message](inCapacity, outCapacity)
}

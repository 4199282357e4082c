package metrics

import (
	"context"
	"time"

	"github.com/hacluster/pcsd/pkg/health"
	"github.com/hacluster/pcsd/pkg/types"
)

// taskLister is the narrow surface Collector needs from pkg/registry.
// pkg/registry imports this package for its counters, so the collector
// takes an interface instead of importing pkg/registry back.
type taskLister interface {
	List() []types.TaskDTO
}

// busGauges is the narrow surface Collector needs from pkg/bus; it
// avoids importing pkg/bus directly since the bus type is generic and
// the collector only cares about queue depth.
type busGauges interface {
	InLen() int
	OutLen() int
}

// poolGauges is the narrow surface Collector needs from pkg/worker.
type poolGauges interface {
	Len() int
	Occupied() int
	ProbeHealth(ctx context.Context) []health.Result
}

// Collector periodically samples the registry, bus, and worker pool
// and publishes the result as gauges, the same poll-and-set pattern
// the rest of the pack uses rather than updating gauges inline from
// every call site.
type Collector struct {
	reg    taskLister
	bus    busGauges
	pool   poolGauges
	stopCh chan struct{}
}

// NewCollector creates a Collector. bus and pool may be nil in tests
// that only want task-state gauges.
func NewCollector(reg taskLister, bus busGauges, pool poolGauges) *Collector {
	return &Collector{reg: reg, bus: bus, pool: pool, stopCh: make(chan struct{})}
}

// Start begins sampling on a 15 second interval, matching the
// pack's default collector cadence.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.Collect()
		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the sampling loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect runs one sampling pass. It is exported so tests and a
// one-shot CLI diagnostic can call it without waiting on the ticker.
func (c *Collector) Collect() {
	c.collectTaskStates()
	c.collectQueueDepth()
	c.collectPoolOccupancy()
}

func (c *Collector) collectTaskStates() {
	counts := map[types.TaskState]int{}
	for _, dto := range c.reg.List() {
		counts[dto.State]++
	}
	for _, state := range []types.TaskState{types.TaskCreated, types.TaskQueued, types.TaskExecuted, types.TaskFinished} {
		TasksByState.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
}

func (c *Collector) collectQueueDepth() {
	if c.bus == nil {
		return
	}
	InQueueDepth.Set(float64(c.bus.InLen()))
	OutQueueDepth.Set(float64(c.bus.OutLen()))
}

func (c *Collector) collectPoolOccupancy() {
	if c.pool == nil {
		return
	}
	WorkerPoolSize.Set(float64(c.pool.Len()))
	WorkerPoolOccupied.Set(float64(c.pool.Occupied()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	unhealthy := 0
	for _, r := range c.pool.ProbeHealth(ctx) {
		if !r.Healthy {
			unhealthy++
		}
	}
	WorkerPoolUnhealthy.Set(float64(unhealthy))
}

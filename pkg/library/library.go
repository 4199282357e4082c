// Package library provides a handful of illustrative "library command"
// handlers that exercise the worker dispatch contract described in
// spec.md §4.D. The real cluster-manipulation procedures (CIB edits,
// node configuration, fencing orchestration) are named out of scope in
// spec.md §1; these exist only to give pkg/worker's entrypoint and
// pkg/httpapi something concrete to dispatch end to end, the same role
// a "hello world" handler plays in the teacher's own worker package
// tests.
package library

import (
	"fmt"
	"time"

	"github.com/hacluster/pcsd/pkg/types"
	"github.com/hacluster/pcsd/pkg/values"
)

// ErrUnknownCommand is returned when a dispatched command name has no
// registered handler.
type ErrUnknownCommand struct {
	Name string
}

func (e *ErrUnknownCommand) Error() string {
	return fmt.Sprintf("library: unknown command %q", e.Name)
}

// Handler executes one command. report is called zero or more times
// for progress; the return value becomes the task's result on success.
type Handler func(cmd types.Command, authUser types.AuthUser, report func(types.ReportItem)) (any, error)

// Registry maps a command name to its Handler, and itself implements
// pkg/worker's CommandRunner interface so it can be handed straight to
// worker.RunEntrypoint.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a Registry with the default demo commands
// registered: noop, cluster.status, and node.standby.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register("noop", noop)
	r.Register("cluster.status", clusterStatus)
	r.Register("node.standby", nodeStandby)
	return r
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Run implements worker.CommandRunner.
func (r *Registry) Run(cmd types.Command, authUser types.AuthUser, report func(types.ReportItem)) (any, error) {
	h, ok := r.handlers[cmd.Name]
	if !ok {
		return nil, &ErrUnknownCommand{Name: cmd.Name}
	}
	return h(cmd, authUser, report)
}

// noop succeeds immediately with no reports, used by spec.md §8
// scenario 1's happy-path walkthrough.
func noop(_ types.Command, _ types.AuthUser, _ func(types.ReportItem)) (any, error) {
	return "ok", nil
}

// clusterStatus emits a couple of progress reports and returns a
// placeholder status string, standing in for the real pcs library's
// "cluster status" query (out of scope per spec.md §1).
func clusterStatus(_ types.Command, authUser types.AuthUser, report func(types.ReportItem)) (any, error) {
	report(types.ReportItem{Code: "CLUSTER-STATUS-STARTED", Message: "querying cluster status"})
	time.Sleep(0) // yield, matching the original's cooperative-scheduling shape
	report(types.ReportItem{Code: "CLUSTER-STATUS-RUNNING", Message: fmt.Sprintf("running as %s", authUser.Username)})
	return "cluster online, 2 nodes", nil
}

// nodeStandby validates the "node" param with pkg/values the way the
// real library validates CIB ids before acting on them, and fails the
// task (FinishFail) rather than the process (FinishInternalError) on a
// bad id - a handled library error per spec.md §7.
func nodeStandby(cmd types.Command, _ types.AuthUser, report func(types.ReportItem)) (any, error) {
	node, ok := cmd.Params["node"]
	if !ok || node == "" {
		return nil, fmt.Errorf("node.standby: missing required param %q", "node")
	}
	if ok, bad := values.ValidateID(node); !ok {
		return nil, fmt.Errorf("node.standby: invalid node id %q (bad char %q)", node, bad)
	}
	if scoreStr, hasScore := cmd.Params["score"]; hasScore && !values.IsScore(scoreStr) {
		return nil, fmt.Errorf("node.standby: invalid score %q", scoreStr)
	}
	report(types.ReportItem{Code: "NODE-STANDBY-SET", Message: fmt.Sprintf("node %s set to standby", node)})
	return fmt.Sprintf("%s is now standby", node), nil
}

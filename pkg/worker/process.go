package worker

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/hacluster/pcsd/pkg/ipc"
)

// process is the narrow surface the pool needs from a worker. realProcess
// implements it over an actual OS subprocess; tests substitute a
// pipe-backed fake so the dispatch and respawn logic can run without
// spawning anything.
type process interface {
	PID() int
	Encoder() *ipc.Encoder
	Decoder() *ipc.Decoder
	Wait() error
	Terminate() (alreadyGone bool, err error)
	Close()
}

// launcher starts a new worker process.
type launcher interface {
	Launch() (process, error)
}

// selfExecLauncher spawns the daemon's own binary with a hidden
// subcommand that makes it behave as a worker, per spec.md's design
// note on giving workers real OS pids: self re-exec is how the
// original daemon gets a literal process to send SIGTERM to, rather
// than a simulated in-process goroutine.
type selfExecLauncher struct {
	// Path to re-exec; normally os.Executable() resolved once at
	// startup.
	Path string
	// Args are appended after the hidden subcommand name, e.g. config
	// flags the worker entrypoint needs to reach.
	Args []string
}

// NewSelfExecLauncher builds a launcher that re-execs the current
// binary with "exec-worker" as its first argument.
func NewSelfExecLauncher(path string, args ...string) launcher {
	return &selfExecLauncher{Path: path, Args: args}
}

func (l *selfExecLauncher) Launch() (process, error) {
	args := append([]string{"exec-worker"}, l.Args...)
	cmd := exec.Command(l.Path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("worker: start subprocess: %w", err)
	}

	return &realProcess{
		cmd: cmd,
		enc: ipc.NewEncoder(stdin),
		dec: ipc.NewDecoder(stdout),
	}, nil
}

type realProcess struct {
	cmd *exec.Cmd
	enc *ipc.Encoder
	dec *ipc.Decoder
}

func (p *realProcess) PID() int              { return p.cmd.Process.Pid }
func (p *realProcess) Encoder() *ipc.Encoder { return p.enc }
func (p *realProcess) Decoder() *ipc.Decoder { return p.dec }
func (p *realProcess) Wait() error           { return p.cmd.Wait() }
func (p *realProcess) Close()                {}

// Terminate sends SIGTERM to the worker process. It swallows "process
// already gone" per spec.md §7's WorkerCrash/ProcessNotFound handling
// so a race between a kill request and the worker's own exit does not
// surface as an error to the caller.
func (p *realProcess) Terminate() (alreadyGone bool, err error) {
	proc := p.cmd.Process
	if proc == nil {
		return true, nil
	}
	err = proc.Signal(syscall.SIGTERM)
	if err == nil {
		return false, nil
	}
	if err == os.ErrProcessDone || err == syscall.ESRCH {
		return true, nil
	}
	return false, err
}

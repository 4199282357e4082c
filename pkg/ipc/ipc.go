// Package ipc defines the wire envelope and pipe transport used
// between the daemon process and its worker subprocesses.
//
// The teacher's own worker transport is grpc over a TCP/TLS
// connection to a remote node, which does not fit here: workers are
// local subprocesses of the same daemon, spawned by self re-exec over
// inherited pipes, not separately-deployed peers reached over a
// network. Generating and hand-maintaining protobuf stubs without
// running protoc would risk silently-wrong wire code, so this package
// uses encoding/gob instead - the same approach net/rpc has used for
// this exact local-process-pair shape since early Go, and a case
// where no ecosystem serialization library fits better than the
// standard library's own.
package ipc

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/hacluster/pcsd/pkg/types"
)

// Envelope is one frame exchanged between the daemon and a worker
// subprocess in either direction.
type Envelope struct {
	// Dispatch is populated when the daemon assigns a task to the
	// worker.
	Dispatch *types.DispatchEnvelope
	// Message is populated when the worker reports progress or a
	// lifecycle transition back to the daemon.
	Message *types.Message
	// Shutdown, when true, tells the worker to exit after finishing
	// (or abandoning) any in-flight task.
	Shutdown bool
}

// Encoder writes Envelopes to an underlying stream, one gob value per
// frame. Send is safe for concurrent use: a mutex serializes each
// encode-and-flush, so frames from different goroutines never
// interleave.
type Encoder struct {
	mu  sync.Mutex
	enc *gob.Encoder
	w   *bufio.Writer
}

// NewEncoder wraps w in a buffered gob encoder.
func NewEncoder(w io.Writer) *Encoder {
	bw := bufio.NewWriter(w)
	return &Encoder{enc: gob.NewEncoder(bw), w: bw}
}

// Send encodes and flushes one Envelope.
func (e *Encoder) Send(env Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(env); err != nil {
		return fmt.Errorf("ipc: encode envelope: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("ipc: flush envelope: %w", err)
	}
	return nil
}

// Decoder reads Envelopes from an underlying stream.
type Decoder struct {
	dec *gob.Decoder
}

// NewDecoder wraps r in a gob decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: gob.NewDecoder(bufio.NewReader(r))}
}

// Receive blocks until one Envelope has been read, or returns the
// underlying error (io.EOF when the peer has closed its write end,
// typically because the worker process exited).
func (d *Decoder) Receive() (Envelope, error) {
	var env Envelope
	if err := d.dec.Decode(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Package compressstream models the cAVS compressed-stream endpoint: a
// fragment/period-oriented streaming device used for firmware log capture
// and probe extraction/injection. Two implementations are provided: a
// no-I/O StubStream for unit tests and orchestration logic, and a
// PulseStream that backs the same contract with a real PulseAudio record
// or playback stream for local dev/test rigs that stand in for the real
// DSP compress node.
package compressstream

import (
	"time"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
)

// Mode selects blocking behavior for wait().
type Mode int

const (
	ModeBlocking Mode = iota
	ModeNonBlocking
)

// Role selects the data direction.
type Role int

const (
	RoleCapture Role = iota
	RolePlayback
)

// Config carries the fragment/period geometry negotiated at open time.
type Config struct {
	FragmentSize int
	Fragments    int
}

// InfiniteTimeout tells Wait to block until Stop() or a device error.
const InfiniteTimeout = -1 * time.Millisecond

// CompressedStream is the C8 contract: open/start/stop/close lifecycle
// plus wait/read/write, safe to call concurrently with its own lifecycle
// transitions from another goroutine.
type CompressedStream interface {
	// Open prepares the device for a session in the given mode/role/config.
	Open(mode Mode, role Role, cfg Config) error
	// Start begins data flow.
	Start() error
	// Stop ends data flow and wakes any concurrent Wait with an Io error.
	Stop() error
	// Close releases the device. Open must be called again before reuse.
	Close() error

	// Wait blocks until data space is ready (true) or timeout elapses
	// (false). timeout == InfiniteTimeout waits until Stop() or an error.
	Wait(timeout time.Duration) (bool, error)
	// Read consumes available capture data into out, returning the count read.
	Read(out []byte) (int, error)
	// Write pushes playback data, returning the count written.
	Write(in []byte) (int, error)

	// GetAvailable reports currently available bytes (space to write for
	// playback, data to read for capture).
	GetAvailable() int
	// GetBufferSize reports the total configured buffer size in bytes.
	GetBufferSize() int

	IsOpen() bool
	IsRunning() bool
}

// ErrClosed is returned by Wait once Stop has been called (and by
// PulseStream's Write). Read does not return it.
var ErrClosed = agenterr.New(agenterr.Io, "compressed stream closed")

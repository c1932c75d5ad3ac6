package compressstream

import (
	"sync"
	"time"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/syncwait"
)

// StubStream performs every CompressedStream state transition without any
// real I/O backing. Callers script its data by pushing to an internal
// buffer (Feed, for capture roles) or draining what was written (Written,
// for playback roles); it exists so Logger/Prober/Extractor/Injector can
// be exercised deterministically with no hardware or PulseAudio server.
type StubStream struct {
	mu      sync.Mutex
	open    bool
	running bool
	mode    Mode
	role    Role
	cfg     Config

	capture []byte // capture-role: bytes waiting to be Read
	written []byte // playback-role: bytes accumulated via Write

	wake *syncwait.SyncWait
}

// NewStubStream returns a closed, stopped stub.
func NewStubStream() *StubStream {
	return &StubStream{wake: syncwait.New()}
}

func (s *StubStream) Open(mode Mode, role Role, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.role = role
	s.cfg = cfg
	s.open = true
	return nil
}

func (s *StubStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return agenterr.New(agenterr.StateInvalid, "start on unopened stream")
	}
	s.running = true
	return nil
}

// Stop ends data flow and wakes any concurrent Wait with ErrClosed.
func (s *StubStream) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.wake.UnblockWait()
	return nil
}

func (s *StubStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// Feed appends capture-role data that becomes readable and wakes a
// blocked Wait.
func (s *StubStream) Feed(data []byte) {
	s.mu.Lock()
	s.capture = append(s.capture, data...)
	s.mu.Unlock()
	s.wake.UnblockWait()
}

// Written returns a snapshot of everything written via Write so far
// (playback role).
func (s *StubStream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Wake unblocks a pending Wait without feeding any capture data, simulating
// a playback device signalling that its buffer has drained and can accept
// another write.
func (s *StubStream) Wake() {
	s.wake.UnblockWait()
}

func (s *StubStream) Wait(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return false, ErrClosed
	}

	if timeout == InfiniteTimeout {
		s.wake.WaitUntilUnblock()
	} else {
		done := make(chan struct{})
		go func() {
			s.wake.WaitUntilUnblock()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			return false, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false, ErrClosed
	}
	return true, nil
}

func (s *StubStream) Read(out []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(out, s.capture)
	s.capture = s.capture[n:]
	return n, nil
}

func (s *StubStream) Write(in []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, in...)
	return len(in), nil
}

func (s *StubStream) GetAvailable() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.role == RoleCapture {
		return len(s.capture)
	}
	return s.cfg.FragmentSize * s.cfg.Fragments
}

func (s *StubStream) GetBufferSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.FragmentSize * s.cfg.Fragments
}

func (s *StubStream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *StubStream) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

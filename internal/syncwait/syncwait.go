// Package syncwait provides a latched one-shot rendezvous: an unblock that
// arrives before anyone is waiting still causes the next wait to return
// immediately, so a fast producer can never strand a slightly slower
// consumer.
package syncwait

import "sync"

// SyncWait is safe for concurrent use by multiple waiters, though it is
// designed for a single waiter at a time (the compressed-stream device
// wait/notify contract it backs has exactly one waiting reader).
type SyncWait struct {
	mu        sync.Mutex
	cond      *sync.Cond
	waiting   bool
	unblocked bool
}

// New returns a ready-to-use SyncWait.
func New() *SyncWait {
	sw := &SyncWait{}
	sw.cond = sync.NewCond(&sw.mu)
	return sw
}

// WaitUntilUnblock blocks until UnblockWait is called, unless a prior
// UnblockWait call already latched an unblock, in which case it returns
// immediately and consumes the latch.
func (s *SyncWait) WaitUntilUnblock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waiting && !s.unblocked {
		s.waiting = true
		for s.waiting {
			s.cond.Wait()
		}
	}
	s.unblocked = false
}

// UnblockWait releases a blocked WaitUntilUnblock call, or latches the
// release for the next call if no one is currently waiting.
func (s *SyncWait) UnblockWait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting {
		s.waiting = false
		s.unblocked = true
		s.cond.Signal()
	} else {
		s.unblocked = true
	}
}

package syncwait

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnblockBeforeWaitStillLatches(t *testing.T) {
	sw := New()
	sw.UnblockWait()

	done := make(chan struct{})
	go func() {
		sw.WaitUntilUnblock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("latched unblock did not release the next wait")
	}
}

func TestUnblockWakesBlockedWaiter(t *testing.T) {
	sw := New()
	done := make(chan struct{})
	go func() {
		sw.WaitUntilUnblock()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	sw.UnblockWait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unblock did not wake the waiter")
	}
}

func TestSecondWaitBlocksAgainAfterLatchConsumed(t *testing.T) {
	sw := New()
	sw.UnblockWait()
	sw.WaitUntilUnblock() // consumes the latch

	done := make(chan struct{})
	go func() {
		sw.WaitUntilUnblock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second wait should block until a new unblock")
	case <-time.After(50 * time.Millisecond):
	}

	sw.UnblockWait()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second wait did not unblock after fresh signal")
	}
}

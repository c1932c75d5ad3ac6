package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func byteSize(b []byte) int { return len(b) }

func TestAddRejectedWhenClosed(t *testing.T) {
	q := New(64, byteSize)
	require.False(t, q.Add([]byte("x")))
}

func TestAddRejectedOverBudget(t *testing.T) {
	q := New(4, byteSize)
	q.Open()
	require.True(t, q.Add([]byte("ab")))
	require.False(t, q.Add([]byte("abc"))) // 2+3 > 4
	require.True(t, q.Add([]byte("cd")))   // 2+2 == 4 fits
}

func TestRemoveBlocksThenReturnsElement(t *testing.T) {
	q := New(1024, byteSize)
	q.Open()

	done := make(chan []byte, 1)
	go func() {
		item, ok := q.Remove()
		require.True(t, ok)
		done <- item
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, q.Add([]byte("hello")))

	select {
	case item := <-done:
		require.Equal(t, []byte("hello"), item)
	case <-time.After(time.Second):
		t.Fatal("remove did not unblock")
	}
}

func TestRemoveReturnsFalseOnCloseWhenEmpty(t *testing.T) {
	q := New(1024, byteSize)
	q.Open()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Remove()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("remove did not unblock on close")
	}
}

func TestRemoveDrainsRemainingAfterClose(t *testing.T) {
	q := New(1024, byteSize)
	q.Open()
	require.True(t, q.Add([]byte("a")))
	require.True(t, q.Add([]byte("b")))
	q.Close()

	item, ok := q.Remove()
	require.True(t, ok)
	require.Equal(t, []byte("a"), item)

	item, ok = q.Remove()
	require.True(t, ok)
	require.Equal(t, []byte("b"), item)

	_, ok = q.Remove()
	require.False(t, ok)
}

func TestClearDiscardsElements(t *testing.T) {
	q := New(1024, byteSize)
	q.Open()
	require.True(t, q.Add([]byte("a")))
	q.Clear()
	require.Equal(t, 0, q.ElementCount())
	require.Equal(t, 0, q.MemorySize())
}

func TestAutoOpenClose(t *testing.T) {
	q := New(1024, byteSize)
	require.False(t, q.IsOpen())
	func() {
		handle := NewAutoOpenClose(q)
		defer handle.Close()
		require.True(t, q.IsOpen())
	}()
	require.False(t, q.IsOpen())
}

package ringbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteNonBlockingFillsThenSaturates(t *testing.T) {
	rb := New(4)
	rb.Open()
	require.Equal(t, 4, rb.WriteNonBlocking([]byte{1, 2, 3, 4}))
	require.Equal(t, 0, rb.WriteNonBlocking([]byte{5}))
	require.Equal(t, 4, rb.UsedSize())
	require.Equal(t, 0, rb.AvailableSize())
}

func TestReadNonBlockingEmptyReturnsZero(t *testing.T) {
	rb := New(4)
	rb.Open()
	buf := make([]byte, 2)
	require.Equal(t, 0, rb.ReadNonBlocking(buf))
}

func TestWrapAroundPreservesOrdering(t *testing.T) {
	rb := New(4)
	rb.Open()

	require.Equal(t, 3, rb.WriteNonBlocking([]byte{1, 2, 3}))
	out := make([]byte, 2)
	require.Equal(t, 2, rb.ReadNonBlocking(out))
	require.Equal(t, []byte{1, 2}, out)

	// producer at 3, consumer at 2; free = 4-(3-2) = 3, write 3 bytes wraps around
	require.Equal(t, 3, rb.WriteNonBlocking([]byte{4, 5, 6}))

	rest := make([]byte, 4)
	require.Equal(t, 4, rb.ReadNonBlocking(rest))
	require.Equal(t, []byte{3, 4, 5, 6}, rest)
}

func TestReadBlockingUnblocksOnWrite(t *testing.T) {
	rb := New(8)
	rb.Open()

	result := make(chan bool, 1)
	target := make([]byte, 3)
	go func() {
		result <- rb.ReadBlocking(target)
	}()

	time.Sleep(10 * time.Millisecond)
	rb.WriteNonBlocking([]byte{9, 8, 7})

	select {
	case ok := <-result:
		require.True(t, ok)
		require.Equal(t, []byte{9, 8, 7}, target)
	case <-time.After(time.Second):
		t.Fatal("read blocking did not unblock")
	}
}

func TestReadBlockingDrainsAfterCloseThenFails(t *testing.T) {
	rb := New(8)
	rb.Open()
	rb.WriteNonBlocking([]byte{1, 2})
	rb.Close()

	target := make([]byte, 2)
	require.True(t, rb.ReadBlocking(target))
	require.Equal(t, []byte{1, 2}, target)

	target2 := make([]byte, 1)
	require.False(t, rb.ReadBlocking(target2))
}

func TestWriteBlockingFailsAfterClose(t *testing.T) {
	rb := New(4)
	rb.Close() // never opened
	require.False(t, rb.WriteBlocking([]byte{1}))
}

func TestClearResetsPositionsNotOpenState(t *testing.T) {
	rb := New(4)
	rb.Open()
	rb.WriteNonBlocking([]byte{1, 2})
	rb.Clear()
	require.Equal(t, 0, rb.UsedSize())
	require.True(t, rb.IsOpen())
}

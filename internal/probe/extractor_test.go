package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
	"github.com/intel/fdk-debug-agent-sub000/internal/queue"
)

func mustPoint(t *testing.T, m uint16, i uint8, typ dspfw.ProbeType, x uint8) dspfw.ProbePointId {
	t.Helper()
	p, err := dspfw.NewProbePointId(m, i, typ, x)
	require.NoError(t, err)
	return p
}

func encodePacket(t *testing.T, pkt dspfw.Packet) []byte {
	t.Helper()
	out := bytestream.NewMemoryOutputStream()
	require.NoError(t, pkt.ToStream(bytestream.NewWriter(out)))
	return append([]byte(nil), out.Bytes()...)
}

func newByteQueue() *queue.BlockingQueue[[]byte] {
	return queue.New[[]byte](1<<20, func(b []byte) int { return len(b) })
}

// scenario 4: the extractor demuxes three packets across two indices in
// the order they arrive, leaving every other queue untouched.
func TestExtractorDemuxesByProbePointId(t *testing.T) {
	pointA := mustPoint(t, 1, 2, dspfw.ProbeTypeOutput, 0)
	pointB := mustPoint(t, 4, 3, dspfw.ProbeTypeInternal, 1)

	p1 := dspfw.Packet{ProbePointID: pointA.Pack(), Data: []byte{}}
	p2 := dspfw.Packet{ProbePointID: pointB.Pack(), Data: make([]byte, 5)}
	p3 := dspfw.Packet{ProbePointID: pointA.Pack(), Data: make([]byte, 20)}

	var feed []byte
	feed = append(feed, encodePacket(t, p1)...)
	feed = append(feed, encodePacket(t, p2)...)
	feed = append(feed, encodePacket(t, p3)...)

	stream := compressstream.NewStubStream()
	require.NoError(t, stream.Open(compressstream.ModeBlocking, compressstream.RoleCapture, compressstream.Config{FragmentSize: 4096, Fragments: 4}))
	require.NoError(t, stream.Start())
	stream.Feed(feed)

	queues := make([]*queue.BlockingQueue[[]byte], dspfw.ProbeCount)
	queues[1] = newByteQueue()
	queues[5] = newByteQueue()

	indexOf := map[uint32]int{
		pointA.Pack(): 1,
		pointB.Pack(): 5,
	}

	e := NewExtractor(stream, indexOf, queues, nil)
	e.Start()
	defer e.Stop()

	got1a, ok := e.DequeueBlock(1)
	require.True(t, ok)
	require.Equal(t, encodePacket(t, p1), got1a)

	got5, ok := e.DequeueBlock(5)
	require.True(t, ok)
	require.Equal(t, encodePacket(t, p2), got5)

	got1b, ok := e.DequeueBlock(1)
	require.True(t, ok)
	require.Equal(t, encodePacket(t, p3), got1b)

	require.Equal(t, 0, queues[1].ElementCount())
	require.Equal(t, 0, queues[5].ElementCount())
	for i, q := range queues {
		if i == 1 || i == 5 {
			continue
		}
		require.Nil(t, q)
	}
}

func TestExtractorFailsOnUnknownProbePoint(t *testing.T) {
	unknown := mustPoint(t, 9, 9, dspfw.ProbeTypeInput, 0)
	pkt := dspfw.Packet{ProbePointID: unknown.Pack()}

	stream := compressstream.NewStubStream()
	require.NoError(t, stream.Open(compressstream.ModeBlocking, compressstream.RoleCapture, compressstream.Config{FragmentSize: 256, Fragments: 4}))
	require.NoError(t, stream.Start())
	stream.Feed(encodePacket(t, pkt))

	queues := make([]*queue.BlockingQueue[[]byte], dspfw.ProbeCount)
	e := NewExtractor(stream, map[uint32]int{}, queues, nil)
	e.Start()

	require.Eventually(t, func() bool {
		return e.Stop() != nil
	}, time.Second, time.Millisecond)
}

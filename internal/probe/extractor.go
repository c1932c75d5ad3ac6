// Package probe implements the probe pipeline's three runtime pieces: the
// extractor that demultiplexes one capture stream into per-probe queues,
// the injector that feeds one playback stream from a per-probe input ring,
// and the Prober state machine that drives both through the firmware probe
// service's Idle/Owned/Allocated/Active lifecycle.
//
// Grounded 1:1 on cAVS/ProbeExtractor.hpp, ProbeInjector.hpp, Prober.hpp and
// Windows/ProberStateMachine.hpp (state shape only; the transport backend
// here is this module's device/compressstream pair, not an IOCTL driver).
package probe

import (
	"io"
	"log/slog"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
	"github.com/intel/fdk-debug-agent-sub000/internal/queue"
)

// Extractor reads one multiplexed capture stream of dspfw.Packets and
// demultiplexes them into per-probe-index queues, re-encoding each packet
// with a uint32-truncated checksum trailer for wire compatibility.
type Extractor struct {
	stream  compressstream.CompressedStream
	reader  *bytestream.Reader
	indexOf map[uint32]int
	queues  []*queue.BlockingQueue[[]byte]
	log     *slog.Logger

	done   chan struct{}
	runErr error
}

// NewExtractor builds an extractor over an already-open capture stream.
// indexOf maps a packet's packed ProbePointId to the queue index it should
// land in; queues must have room for every index indexOf maps to.
func NewExtractor(stream compressstream.CompressedStream, indexOf map[uint32]int, queues []*queue.BlockingQueue[[]byte], log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		stream:  stream,
		reader:  bytestream.NewReader(&streamReader{stream: stream}),
		indexOf: indexOf,
		queues:  queues,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start clears every queue, opens them for production, and spawns the
// demuxing loop.
func (e *Extractor) Start() {
	for _, q := range e.queues {
		if q == nil {
			continue
		}
		q.Clear()
		q.Open()
	}
	go e.run()
}

// Stop unblocks the demuxing loop (via the stream closing), waits for it to
// exit, closes every queue, and returns any error the loop exited with
// other than a clean end of stream.
func (e *Extractor) Stop() error {
	e.stream.Stop()
	<-e.done
	e.stream.Close()
	for _, q := range e.queues {
		if q != nil {
			q.Close()
		}
	}
	return e.runErr
}

// DequeueBlock removes the next demultiplexed packet for the given probe
// index, blocking until one is available or the extractor has stopped.
func (e *Extractor) DequeueBlock(index int) ([]byte, bool) {
	if index < 0 || index >= len(e.queues) || e.queues[index] == nil {
		return nil, false
	}
	return e.queues[index].Remove()
}

func (e *Extractor) run() {
	defer close(e.done)
	for {
		var pkt dspfw.Packet
		if err := e.reader.ReadInto(&pkt); err != nil {
			if agenterr.Is(err, agenterr.DecodeEOS) {
				return
			}
			e.log.Warn("probe extraction stream decode error", "error", err)
			e.runErr = err
			return
		}

		index, ok := e.indexOf[pkt.ProbePointID]
		if !ok {
			e.runErr = agenterr.New(agenterr.ProbeUnknownPoint, "unknown probe point in extraction stream")
			return
		}
		if index < 0 || index >= len(e.queues) || e.queues[index] == nil {
			e.runErr = agenterr.New(agenterr.ProbeWrongID, "probe index out of range")
			return
		}

		out := bytestream.NewMemoryOutputStream()
		w := bytestream.NewWriter(out)
		if err := pkt.ToStreamTruncatedChecksum(w); err != nil {
			e.log.Warn("probe packet re-encode failed", "error", err)
			continue
		}

		if !e.queues[index].Add(out.Bytes()) {
			e.log.Warn("extraction packet dropped", "probe_index", index)
		}
	}
}

// streamReader adapts a CompressedStream's wait/read pair to an
// io.Reader+io.Closer, so the TLV-style scalar decoder in bytestream can
// pull packet fields directly off the device.
type streamReader struct {
	stream compressstream.CompressedStream
}

func (r *streamReader) Read(p []byte) (int, error) {
	for {
		n, err := r.stream.Read(p)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
		ok, err := r.stream.Wait(compressstream.InfiniteTimeout)
		if err != nil {
			if err == compressstream.ErrClosed {
				return 0, io.EOF
			}
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
	}
}

func (r *streamReader) Close() error { return r.stream.Close() }

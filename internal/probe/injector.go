package probe

import (
	"log/slog"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/ringbuffer"
)

// Injector copies sample-aligned bytes from an input ring buffer (filled by
// an HTTP PUT elsewhere) into a compressed-stream playback device, padding
// with silence whenever the ring can't supply a full sample's worth.
type Injector struct {
	stream     compressstream.CompressedStream
	ring       *ringbuffer.RingBuffer
	sampleSize int
	log        *slog.Logger

	started bool
	done    chan struct{}
	runErr  error
}

// NewInjector opens stream for playback, pre-fills it with
// floor(capacity/sampleSize)*sampleSize octets of silence (sample-aligned,
// so the device never underruns or desyncs at startup), and spawns the
// copy loop.
func NewInjector(stream compressstream.CompressedStream, cfg compressstream.Config, ring *ringbuffer.RingBuffer, sampleSize int, log *slog.Logger) (*Injector, error) {
	if log == nil {
		log = slog.Default()
	}
	if sampleSize <= 0 {
		return nil, agenterr.New(agenterr.DecodeInvalid, "probe injector sample size must be positive")
	}

	if err := stream.Open(compressstream.ModeBlocking, compressstream.RolePlayback, cfg); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "open probe injection device", err)
	}

	inj := &Injector{
		stream:     stream,
		ring:       ring,
		sampleSize: sampleSize,
		log:        log,
		done:       make(chan struct{}),
	}

	capacity := stream.GetBufferSize()
	prefill := make([]byte, (capacity/sampleSize)*sampleSize)
	if err := inj.write(prefill); err != nil {
		stream.Close()
		return nil, err
	}

	go inj.run()
	return inj, nil
}

// Stop ends data flow, waits for the copy loop to exit, closes the device,
// and clears the input ring so a caller can safely reprovision it.
func (i *Injector) Stop() error {
	i.stream.Stop()
	<-i.done
	i.stream.Close()
	i.ring.Clear()
	return i.runErr
}

func (i *Injector) run() {
	defer close(i.done)
	for {
		ok, err := i.stream.Wait(compressstream.InfiniteTimeout)
		if err != nil {
			if err != compressstream.ErrClosed {
				i.runErr = err
			}
			return
		}
		if !ok {
			continue
		}

		availSamples := i.stream.GetAvailable() / i.sampleSize
		if availSamples == 0 {
			continue
		}

		inSamples := i.ring.UsedSize() / i.sampleSize
		copySamples := min(inSamples, availSamples)
		copyBytes := copySamples * i.sampleSize

		buf := make([]byte, availSamples*i.sampleSize)
		if copyBytes > 0 {
			i.ring.ReadNonBlocking(buf[:copyBytes])
		}

		if err := i.write(buf); err != nil {
			i.runErr = err
			return
		}
	}
}

// write pushes buf to the output device; the first write after Open()
// additionally starts the device, per the driver's "writes-starts-stream"
// contract.
func (i *Injector) write(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if _, err := i.stream.Write(buf); err != nil {
		return agenterr.Wrap(agenterr.Io, "write probe injection device", err)
	}
	if !i.started {
		if err := i.stream.Start(); err != nil {
			return agenterr.Wrap(agenterr.Io, "start probe injection device", err)
		}
		i.started = true
	}
	return nil
}

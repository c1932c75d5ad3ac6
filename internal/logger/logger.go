// Package logger implements the firmware log production pipeline: one
// goroutine per active DSP core draining that core's compressed log stream
// into a shared bounded queue, with start/stop lifecycle gated by a
// ParameterLocked refusal while a session is already running.
//
// Fragment geometry and queue sizing match the firmware's expected
// producer loop shape.
package logger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
	"github.com/intel/fdk-debug-agent-sub000/internal/queue"
)

const (
	fragmentSize = 2048
	numFragments = 16

	// queueMaxBytes mirrors Logger.hpp's
	// nbFragments * fragmentSize * 320 (~10MB): enough to absorb bursty
	// trace output from every core without unbounded growth.
	queueMaxBytes = numFragments * fragmentSize * 320
)

// Output is the log destination; the firmware currently exposes only Sram,
// and this field is informational (kept for wire/API parity).
type Output int

const OutputSram Output = 0

// Parameters is the logger's externally visible start/stop state.
type Parameters struct {
	Started bool
	Level   dspfw.LogPriority
	Output  Output
}

// CorePowerController keeps a DSP core awake while its log stream is
// running. Expressed as an interface (rather than a direct dependency on
// *module.Handler) so Logger can be exercised against a fake without
// importing the module package.
type CorePowerController interface {
	SetCorePower(ctx context.Context, coreID dspfw.CoreId, allowedToSleep bool) error
}

// StreamFactory enumerates the DSP cores currently available for log
// capture and opens one CompressedStream per core.
type StreamFactory interface {
	// ActiveCores returns the cores to construct log producers for.
	ActiveCores(ctx context.Context) ([]dspfw.CoreId, error)
	// OpenLogStream returns an unopened CompressedStream for the given core.
	OpenLogStream(ctx context.Context, coreID dspfw.CoreId) (compressstream.CompressedStream, error)
}

// Logger owns the shared log block queue and the set of per-core producers
// feeding it. SetParameters/GetParameters/ReadLogBlock are safe for
// concurrent use.
type Logger struct {
	control   controlEndpoint
	power     CorePowerController
	factory   StreamFactory
	log       *slog.Logger
	mu        sync.Mutex
	producers []*logProducer
	queue     *queue.BlockingQueue[dspfw.LogBlock]
}

// controlEndpoint is the narrow slice of device.ControlEndpoint the logger
// needs to read and publish the firmware log level scalar.
type controlEndpoint interface {
	CtlRead(name string, out []byte) error
	CtlWrite(name string, in []byte) error
}

// New builds a stopped Logger.
func New(control controlEndpoint, power CorePowerController, factory StreamFactory, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		control: control,
		power:   power,
		factory: factory,
		log:     log,
		queue:   queue.New[dspfw.LogBlock](queueMaxBytes, dspfw.LogBlock.MemorySize),
	}
}

// GetParameters reports whether production is running, the log level read
// fresh from the control endpoint, and the (currently informational)
// output. Only start/stop is locally cached; level always comes from the
// device.
func (l *Logger) GetParameters() (Parameters, error) {
	level, err := l.readLevel()
	if err != nil {
		return Parameters{}, err
	}

	l.mu.Lock()
	started := len(l.producers) > 0
	l.mu.Unlock()

	return Parameters{Started: started, Level: level, Output: OutputSram}, nil
}

// SetParameters applies a new start/level/output state. Starting while
// already started is refused with ParameterLocked; stopping is always
// allowed. The log level is always published to the control endpoint on a
// successful call, independent of whether start/stop state changed.
func (l *Logger) SetParameters(ctx context.Context, p Parameters) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	started := len(l.producers) > 0
	if p.Started && started {
		return agenterr.New(agenterr.ParameterLocked, "logger already started")
	}

	if err := l.writeLevel(p.Level); err != nil {
		return err
	}

	switch {
	case p.Started && !started:
		return l.startLocked(ctx)
	case !p.Started && started:
		l.stopLocked(ctx)
	}
	return nil
}

func (l *Logger) readLevel() (dspfw.LogPriority, error) {
	buf := make([]byte, 4)
	if err := l.control.CtlRead(dspfw.LogLevelControlName, buf); err != nil {
		return 0, agenterr.Wrap(agenterr.Io, "read "+dspfw.LogLevelControlName, err)
	}
	return dspfw.LogPriority(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24), nil
}

func (l *Logger) writeLevel(level dspfw.LogPriority) error {
	buf := make([]byte, 4)
	putUint32LE(buf, uint32(level))
	if err := l.control.CtlWrite(dspfw.LogLevelControlName, buf); err != nil {
		return agenterr.Wrap(agenterr.Io, "write "+dspfw.LogLevelControlName, err)
	}
	return nil
}

func (l *Logger) startLocked(ctx context.Context) error {
	cores, err := l.factory.ActiveCores(ctx)
	if err != nil {
		return agenterr.Wrap(agenterr.Io, "enumerate active cores", err)
	}
	if len(cores) == 0 {
		return agenterr.New(agenterr.Io, "no active cores to log from")
	}

	l.queue.Clear()
	l.queue.Open()

	producers := make([]*logProducer, 0, len(cores))
	for _, core := range cores {
		p, err := newLogProducer(ctx, core, l.factory, l.power, l.queue, l.log)
		if err != nil {
			for _, started := range producers {
				started.stop(ctx)
			}
			l.queue.Close()
			return err
		}
		producers = append(producers, p)
	}

	l.producers = producers
	return nil
}

func (l *Logger) stopLocked(ctx context.Context) {
	for _, p := range l.producers {
		p.stop(ctx)
	}
	l.producers = nil
	l.queue.Close()
}

// ReadLogBlock returns the next log block, blocking until one is available
// or the queue is closed (stopped), in which case ok is false.
func (l *Logger) ReadLogBlock() (dspfw.LogBlock, bool) {
	return l.queue.Remove()
}

func putUint32LE(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

// logProducer drains one core's compressed log stream into the shared
// queue on its own goroutine, holding the core awake for the duration.
// Mirrors LogProducer::startLogDevice/produceEntries/stopLogDevice.
type logProducer struct {
	coreID dspfw.CoreId
	power  CorePowerController
	device compressstream.CompressedStream
	log    *slog.Logger

	done chan struct{}
}

func newLogProducer(ctx context.Context, coreID dspfw.CoreId, factory StreamFactory, power CorePowerController, q *queue.BlockingQueue[dspfw.LogBlock], log *slog.Logger) (*logProducer, error) {
	if err := power.SetCorePower(ctx, coreID, false); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "prevent core from sleeping", err)
	}

	stream, err := factory.OpenLogStream(ctx, coreID)
	if err != nil {
		power.SetCorePower(ctx, coreID, true)
		return nil, agenterr.Wrap(agenterr.Io, "open log stream", err)
	}

	cfg := compressstream.Config{FragmentSize: fragmentSize, Fragments: numFragments}
	if err := stream.Open(compressstream.ModeBlocking, compressstream.RoleCapture, cfg); err != nil {
		power.SetCorePower(ctx, coreID, true)
		return nil, agenterr.Wrap(agenterr.Io, "open log device", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		power.SetCorePower(ctx, coreID, true)
		return nil, agenterr.Wrap(agenterr.Io, "start log device", err)
	}

	p := &logProducer{
		coreID: coreID,
		power:  power,
		device: stream,
		log:    log,
		done:   make(chan struct{}),
	}
	go p.produceEntries(q)
	return p, nil
}

func (p *logProducer) produceEntries(q *queue.BlockingQueue[dspfw.LogBlock]) {
	defer close(p.done)
	for {
		ok, err := p.device.Wait(compressstream.InfiniteTimeout)
		if err != nil || !ok {
			return
		}

		buf := make([]byte, fragmentSize)
		n, err := p.device.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		block := dspfw.LogBlock{CoreID: p.coreID, Data: buf[:n]}
		if !q.Add(block) {
			p.log.Warn("dropping log entry: the queue is full or closed",
				"core", p.coreID, "bytes", n)
		}
	}
}

// stop ends data flow, waits for the production goroutine to observe the
// stop, closes the device, and releases the core, mirroring stopLogDevice.
func (p *logProducer) stop(ctx context.Context) {
	p.device.Stop()
	<-p.done
	p.device.Close()
	if err := p.power.SetCorePower(ctx, p.coreID, true); err != nil {
		p.log.Warn("failed to release core power", "core", p.coreID, "error", err)
	}
}

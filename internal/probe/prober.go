package probe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
	"github.com/intel/fdk-debug-agent-sub000/internal/queue"
	"github.com/intel/fdk-debug-agent-sub000/internal/ringbuffer"
)

// State is where a Prober sits in its own Idle/Owned/Allocated/Active
// lifecycle; SetProbeConfig/GetProbeConfig are only legal in Idle or Owned.
type State int

const (
	StateIdle State = iota
	StateOwned
	StateAllocated
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOwned:
		return "owned"
	case StateAllocated:
		return "allocated"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

const probeQueueMaxBytes = 4 << 20
const probeRingCapacity = 64 << 10

// ModulePropsReader looks up a module instance's sample geometry, needed to
// size an injection probe's ring-to-device copy.
type ModulePropsReader interface {
	GetModuleInstanceProps(ctx context.Context, moduleID dspfw.ModuleId) (dspfw.ModuleInstanceProps, error)
}

// DeviceFactory opens the compressed streams a Prober drives: one shared
// capture stream multiplexing every extraction probe, and one playback
// stream per injection probe slot.
type DeviceFactory interface {
	OpenExtractionStream(ctx context.Context) (compressstream.CompressedStream, error)
	OpenInjectionStream(ctx context.Context, probeIndex int) (compressstream.CompressedStream, error)
}

type controlWriter interface {
	CtlWrite(name string, in []byte) error
}

// Prober drives the firmware probe service through Idle -> Owned ->
// Allocated -> Active, fanning extraction data out to per-slot queues and
// injection data in from per-slot rings.
type Prober struct {
	control controlWriter
	props   ModulePropsReader
	devices DeviceFactory
	log     *slog.Logger

	mu    sync.Mutex
	state State
	slots [dspfw.ProbeCount]dspfw.ProbeConfig

	extractor *Extractor
	queues    [dspfw.ProbeCount]*queue.BlockingQueue[[]byte]
	injectors [dspfw.ProbeCount]*Injector
	rings     [dspfw.ProbeCount]*ringbuffer.RingBuffer
}

// New builds an idle Prober with every slot disabled.
func New(control controlWriter, props ModulePropsReader, devices DeviceFactory, log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	return &Prober{control: control, props: props, devices: devices, log: log}
}

// State reports the current lifecycle state.
func (p *Prober) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetProbeConfig assigns slot id's configuration. Legal only while Idle or
// Owned; any later state refuses with StateInvalid since the slots have
// already been pushed to the firmware and streams opened against them.
func (p *Prober) SetProbeConfig(id int, cfg dspfw.ProbeConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || id >= dspfw.ProbeCount {
		return agenterr.New(agenterr.DecodeInvalid, "probe slot id out of range")
	}
	if p.state != StateIdle && p.state != StateOwned {
		return agenterr.New(agenterr.StateInvalid, "probe config can't change outside idle/owned")
	}
	p.slots[id] = cfg
	return nil
}

// GetProbeConfig returns slot id's current configuration.
func (p *Prober) GetProbeConfig(id int) (dspfw.ProbeConfig, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || id >= dspfw.ProbeCount {
		return dspfw.ProbeConfig{}, agenterr.New(agenterr.DecodeInvalid, "probe slot id out of range")
	}
	if p.state != StateIdle && p.state != StateOwned {
		return dspfw.ProbeConfig{}, agenterr.New(agenterr.StateInvalid, "probe config can't be read outside idle/owned")
	}
	return p.slots[id], nil
}

// SetState drives the Prober forward to Active (true) or back to Idle
// (false). Any failure on the way up rolls every already-completed step
// back, best-effort, so the Prober always lands on a consistent state.
func (p *Prober) SetState(ctx context.Context, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if active {
		if p.state == StateActive {
			return nil
		}
		if p.state != StateIdle {
			return agenterr.New(agenterr.StateInvalid, "probe already owned or allocated")
		}
		if err := p.ownLocked(); err != nil {
			return err
		}
		if err := p.allocateLocked(ctx); err != nil {
			p.teardownLocked(ctx)
			return err
		}
		p.activateLocked()
		return nil
	}

	p.teardownLocked(ctx)
	return nil
}

// ownLocked pushes every slot's configuration to the control endpoint, one
// write per slot, routed to the extractor or injector control name
// according to the slot's purpose.
func (p *Prober) ownLocked() error {
	for i, cfg := range p.slots {
		state := dspfw.ProbeControlDisconnect
		if cfg.Enabled {
			state = dspfw.ProbeControlConnect
		}
		record := dspfw.ProbeControl{State: state, Purpose: cfg.Purpose, PointID: cfg.PointID}

		out := bytestream.NewMemoryOutputStream()
		if err := record.ToStream(bytestream.NewWriter(out)); err != nil {
			return agenterr.Wrap(agenterr.Io, "encode probe config", err)
		}

		name := dspfw.ExtractorControlName(i)
		if cfg.Purpose == dspfw.ProbePurposeInject {
			name = dspfw.InjectorControlName(i)
		}
		if err := p.control.CtlWrite(name, out.Bytes()); err != nil {
			return agenterr.Wrap(agenterr.Io, "write "+name, err)
		}
	}
	p.state = StateOwned
	return nil
}

// allocateLocked opens the shared extraction stream and one playback
// stream/ring per enabled injection slot, and resolves each injection
// slot's sample size from the target module's instance properties.
func (p *Prober) allocateLocked(ctx context.Context) error {
	indexOf := map[uint32]int{}
	var queues [dspfw.ProbeCount]*queue.BlockingQueue[[]byte]
	anyExtraction := false

	for i, cfg := range p.slots {
		if !cfg.Enabled {
			continue
		}
		switch cfg.Purpose {
		case dspfw.ProbePurposeExtract, dspfw.ProbePurposeInjectReextract:
			indexOf[cfg.PointID.Pack()] = i
			queues[i] = queue.New[[]byte](probeQueueMaxBytes, func(b []byte) int { return len(b) })
			anyExtraction = true
		}
	}

	if anyExtraction {
		stream, err := p.devices.OpenExtractionStream(ctx)
		if err != nil {
			return agenterr.Wrap(agenterr.Io, "open probe extraction stream", err)
		}
		if err := stream.Open(compressstream.ModeBlocking, compressstream.RoleCapture, compressstream.Config{FragmentSize: 2048, Fragments: 8}); err != nil {
			return agenterr.Wrap(agenterr.Io, "open probe extraction device", err)
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return agenterr.Wrap(agenterr.Io, "start probe extraction device", err)
		}
		p.extractor = NewExtractor(stream, indexOf, queues[:], p.log)
		p.queues = queues
	}

	for i, cfg := range p.slots {
		if !cfg.Enabled || cfg.Purpose != dspfw.ProbePurposeInject {
			continue
		}

		moduleID := dspfw.ModuleId{TypeID: cfg.PointID.ModuleID, InstanceID: uint16(cfg.PointID.InstanceID)}
		instProps, err := p.props.GetModuleInstanceProps(ctx, moduleID)
		if err != nil {
			return agenterr.Wrap(agenterr.Io, "resolve injection probe sample size", err)
		}
		sampleSize := instProps.SampleByteSize()

		stream, err := p.devices.OpenInjectionStream(ctx, i)
		if err != nil {
			return agenterr.Wrap(agenterr.Io, "open probe injection stream", err)
		}

		ring := ringbuffer.New(probeRingCapacity)
		ring.Open()
		injector, err := NewInjector(stream, compressstream.Config{FragmentSize: 2048, Fragments: 8}, ring, sampleSize, p.log)
		if err != nil {
			ring.Close()
			return err
		}
		p.injectors[i] = injector
		p.rings[i] = ring
	}

	p.state = StateAllocated
	return nil
}

func (p *Prober) activateLocked() {
	if p.extractor != nil {
		p.extractor.Start()
	}
	p.state = StateActive
}

// teardownLocked stops and releases every allocated stream/queue/ring and
// returns to Idle, tolerating partial allocation.
func (p *Prober) teardownLocked(ctx context.Context) {
	if p.extractor != nil {
		if p.state == StateActive {
			if err := p.extractor.Stop(); err != nil {
				p.log.Warn("probe extractor stopped with error", "error", err)
			}
		} else {
			// Built during allocation but never started: no loop to wait for.
			p.extractor.stream.Stop()
			p.extractor.stream.Close()
		}
		p.extractor = nil
	}
	for i := range p.injectors {
		if p.injectors[i] != nil {
			if err := p.injectors[i].Stop(); err != nil {
				p.log.Warn("probe injector stopped with error", "index", i, "error", err)
			}
			p.injectors[i] = nil
		}
		if p.rings[i] != nil {
			p.rings[i].Close()
			p.rings[i] = nil
		}
		p.queues[i] = nil
	}
	p.state = StateIdle
}

// DequeueExtractionBlock removes the next demultiplexed extraction packet
// for slot id, blocking until one arrives or the Prober stops.
func (p *Prober) DequeueExtractionBlock(id int) ([]byte, bool) {
	p.mu.Lock()
	extractor := p.extractor
	p.mu.Unlock()
	if extractor == nil {
		return nil, false
	}
	return extractor.DequeueBlock(id)
}

// EnqueueInjectionBlock appends buf to slot id's input ring, blocking until
// room is available or the ring closes (ok is false in that case).
func (p *Prober) EnqueueInjectionBlock(id int, buf []byte) bool {
	if id < 0 || id >= dspfw.ProbeCount {
		return false
	}
	p.mu.Lock()
	ring := p.rings[id]
	p.mu.Unlock()
	if ring == nil {
		return false
	}
	return ring.WriteBlocking(buf)
}

package compressstream

import (
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
)

// PulseStream backs CompressedStream with a real PulseAudio record or
// playback stream, standing in for the DSP compress node on a dev/test
// rig with no real cAVS hardware attached: capture-role streams back log
// or probe-extraction devices, playback-role streams back probe-injection
// devices. The fragment-callback accumulation pattern mirrors the
// dictation capture path this module's teacher used for microphone input.
type PulseStream struct {
	role     Role
	sourceID string // capture: pulse source name
	sinkID   string // playback: pulse sink name

	client *pulse.Client

	mu      sync.Mutex
	open    bool
	running bool
	cfg     Config

	recordStream   *pulse.RecordStream
	playbackStream *pulse.PlaybackStream

	fragments chan []byte
	pending   []byte

	stopCh chan struct{}
	closed bool
}

// NewPulseCaptureStream targets a named Pulse source for a capture role
// (log producer, probe extraction).
func NewPulseCaptureStream(sourceID string) *PulseStream {
	return &PulseStream{role: RoleCapture, sourceID: sourceID}
}

// NewPulsePlaybackStream targets a named Pulse sink for a playback role
// (probe injection).
func NewPulsePlaybackStream(sinkID string) *PulseStream {
	return &PulseStream{role: RolePlayback, sinkID: sinkID}
}

func (p *PulseStream) Open(mode Mode, role Role, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("cavsdbg"),
		pulse.ClientApplicationIconName("audio-card"),
	)
	if err != nil {
		return agenterr.Wrap(agenterr.Io, "connect pulse server", err)
	}

	p.client = client
	p.cfg = cfg
	p.fragments = make(chan []byte, cfg.Fragments*2)
	p.stopCh = make(chan struct{})
	p.closed = false

	switch role {
	case RoleCapture:
		source, err := client.SourceByID(p.sourceID)
		if err != nil {
			client.Close()
			return agenterr.Wrap(agenterr.Io, "resolve pulse source: "+p.sourceID, err)
		}
		writer := pulse.NewWriter(writerFunc(p.onCapture), pulseproto.FormatInt16LE)
		stream, err := client.NewRecord(
			writer,
			pulse.RecordSource(source),
			pulse.RecordBufferFragmentSize(uint32(cfg.FragmentSize)),
			pulse.RecordMediaName("cavsdbg compressed stream"),
		)
		if err != nil {
			client.Close()
			return agenterr.Wrap(agenterr.Io, "open pulse record stream", err)
		}
		p.recordStream = stream
	case RolePlayback:
		sink, err := client.SinkByID(p.sinkID)
		if err != nil {
			client.Close()
			return agenterr.Wrap(agenterr.Io, "resolve pulse sink: "+p.sinkID, err)
		}
		reader := pulse.NewReader(readerFunc(p.onPlaybackPull), pulseproto.FormatInt16LE)
		stream, err := client.NewPlayback(
			reader,
			pulse.PlaybackSink(sink),
			pulse.PlaybackBufferSize(uint32(cfg.FragmentSize*cfg.Fragments)),
			pulse.PlaybackMediaName("cavsdbg compressed stream"),
		)
		if err != nil {
			client.Close()
			return agenterr.Wrap(agenterr.Io, "open pulse playback stream", err)
		}
		p.playbackStream = stream
	}

	p.open = true
	return nil
}

func (p *PulseStream) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return agenterr.New(agenterr.StateInvalid, "start on unopened pulse stream")
	}
	switch p.role {
	case RoleCapture:
		p.recordStream.Start()
	case RolePlayback:
		p.playbackStream.Start()
	}
	p.running = true
	return nil
}

func (p *PulseStream) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	switch p.role {
	case RoleCapture:
		if p.recordStream != nil {
			p.recordStream.Stop()
		}
	case RolePlayback:
		if p.playbackStream != nil {
			p.playbackStream.Stop()
		}
	}
	return nil
}

func (p *PulseStream) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.role {
	case RoleCapture:
		if p.recordStream != nil {
			p.recordStream.Close()
		}
	case RolePlayback:
		if p.playbackStream != nil {
			p.playbackStream.Close()
		}
	}
	if p.client != nil {
		p.client.Close()
	}
	p.open = false
	return nil
}

// Wait blocks until a capture fragment is available (capture role) or a
// playback pull is outstanding (playback role), honoring InfiniteTimeout
// and returning ErrClosed once Stop has fired.
func (p *PulseStream) Wait(timeout time.Duration) (bool, error) {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()

	if timeout == InfiniteTimeout {
		select {
		case <-stopCh:
			return false, ErrClosed
		case frag, ok := <-p.fragments:
			if !ok {
				return false, ErrClosed
			}
			p.mu.Lock()
			p.pending = append(p.pending, frag...)
			p.mu.Unlock()
			return true, nil
		}
	}

	select {
	case <-stopCh:
		return false, ErrClosed
	case frag, ok := <-p.fragments:
		if !ok {
			return false, ErrClosed
		}
		p.mu.Lock()
		p.pending = append(p.pending, frag...)
		p.mu.Unlock()
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (p *PulseStream) Read(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(out, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *PulseStream) Write(in []byte) (int, error) {
	select {
	case p.fragments <- append([]byte(nil), in...):
		return len(in), nil
	case <-p.stopCh:
		return 0, ErrClosed
	}
}

func (p *PulseStream) GetAvailable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *PulseStream) GetBufferSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.FragmentSize * p.cfg.Fragments
}

func (p *PulseStream) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *PulseStream) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// onCapture receives raw Pulse record frames and forwards them as
// fragments for Wait/Read to pick up.
func (p *PulseStream) onCapture(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}
	select {
	case <-p.stopCh:
		return 0, io.EOF
	case p.fragments <- append([]byte(nil), buffer...):
		return len(buffer), nil
	}
}

// onPlaybackPull services the Pulse playback stream's pull for more
// sample data by draining whatever this stream's Write calls queued.
func (p *PulseStream) onPlaybackPull(buffer []byte) (int, error) {
	select {
	case <-p.stopCh:
		return 0, io.EOF
	case frag := <-p.fragments:
		n := copy(buffer, frag)
		return n, nil
	default:
		return 0, nil
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(b []byte) (int, error) { return f(b) }

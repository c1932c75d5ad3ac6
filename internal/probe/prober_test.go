package probe

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
)

type recordedWrite struct {
	name string
	data []byte
}

type fakeProbeControl struct {
	mu     sync.Mutex
	writes []recordedWrite
}

func (f *fakeProbeControl) CtlWrite(name string, in []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, recordedWrite{name, append([]byte(nil), in...)})
	return nil
}

func (f *fakeProbeControl) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	for i, w := range f.writes {
		out[i] = w.name
	}
	return out
}

type fakeModuleProps struct {
	bitDepth uint32
	channels uint32
}

func (f *fakeModuleProps) GetModuleInstanceProps(context.Context, dspfw.ModuleId) (dspfw.ModuleInstanceProps, error) {
	return dspfw.ModuleInstanceProps{InputBitDepth: f.bitDepth, InputChannels: f.channels}, nil
}

type fakeDeviceFactory struct {
	extraction *compressstream.StubStream
	injection  map[int]*compressstream.StubStream
}

func newFakeDeviceFactory() *fakeDeviceFactory {
	return &fakeDeviceFactory{
		extraction: compressstream.NewStubStream(),
		injection:  map[int]*compressstream.StubStream{},
	}
}

func (f *fakeDeviceFactory) OpenExtractionStream(context.Context) (compressstream.CompressedStream, error) {
	return f.extraction, nil
}

func (f *fakeDeviceFactory) OpenInjectionStream(_ context.Context, probeIndex int) (compressstream.CompressedStream, error) {
	s := compressstream.NewStubStream()
	f.injection[probeIndex] = s
	return s, nil
}

func extractConfig(t *testing.T, m uint16, i uint8) dspfw.ProbeConfig {
	t.Helper()
	point, err := dspfw.NewProbePointId(m, i, dspfw.ProbeTypeOutput, 0)
	require.NoError(t, err)
	return dspfw.ProbeConfig{PointID: point, Purpose: dspfw.ProbePurposeExtract, Enabled: true}
}

func injectConfig(t *testing.T, m uint16, i uint8) dspfw.ProbeConfig {
	t.Helper()
	point, err := dspfw.NewProbePointId(m, i, dspfw.ProbeTypeInput, 0)
	require.NoError(t, err)
	return dspfw.ProbeConfig{PointID: point, Purpose: dspfw.ProbePurposeInject, Enabled: true}
}

func TestProberConfigOnlyLegalInIdleOrOwned(t *testing.T) {
	ctl := &fakeProbeControl{}
	props := &fakeModuleProps{bitDepth: 32, channels: 2}
	devices := newFakeDeviceFactory()
	p := New(ctl, props, devices, nil)

	require.NoError(t, p.SetProbeConfig(0, extractConfig(t, 1, 2)))
	require.NoError(t, p.SetState(context.Background(), true))
	require.Equal(t, StateActive, p.State())

	err := p.SetProbeConfig(0, extractConfig(t, 1, 2))
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.StateInvalid))

	_, err = p.GetProbeConfig(0)
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.StateInvalid))

	require.NoError(t, p.SetState(context.Background(), false))
	require.Equal(t, StateIdle, p.State())

	cfg, err := p.GetProbeConfig(0)
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
}

func TestProberRoutesControlWritesByPurpose(t *testing.T) {
	ctl := &fakeProbeControl{}
	props := &fakeModuleProps{bitDepth: 16, channels: 2}
	devices := newFakeDeviceFactory()
	p := New(ctl, props, devices, nil)

	require.NoError(t, p.SetProbeConfig(0, extractConfig(t, 1, 2)))
	require.NoError(t, p.SetProbeConfig(3, injectConfig(t, 4, 5)))

	require.NoError(t, p.SetState(context.Background(), true))
	defer p.SetState(context.Background(), false)

	names := ctl.names()
	require.Contains(t, names, dspfw.ExtractorControlName(0))
	require.Contains(t, names, dspfw.InjectorControlName(3))
	require.NotContains(t, names, dspfw.InjectorControlName(0))
	require.NotContains(t, names, dspfw.ExtractorControlName(3))

	require.True(t, devices.extraction.IsOpen())
	require.Contains(t, devices.injection, 3)
}

func TestProberRejectsOutOfRangeSlot(t *testing.T) {
	ctl := &fakeProbeControl{}
	props := &fakeModuleProps{}
	devices := newFakeDeviceFactory()
	p := New(ctl, props, devices, nil)

	err := p.SetProbeConfig(dspfw.ProbeCount, dspfw.ProbeConfig{})
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.DecodeInvalid))
}

func TestProberEnqueueInjectionBlockRejectsUnknownSlot(t *testing.T) {
	ctl := &fakeProbeControl{}
	props := &fakeModuleProps{}
	devices := newFakeDeviceFactory()
	p := New(ctl, props, devices, nil)

	require.False(t, p.EnqueueInjectionBlock(0, []byte{1, 2}))
	require.False(t, p.EnqueueInjectionBlock(dspfw.ProbeCount, []byte{1, 2}))
}

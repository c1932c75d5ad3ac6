package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/compressstream"
	"github.com/intel/fdk-debug-agent-sub000/internal/device"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
)

type corePowerCall struct {
	coreID         dspfw.CoreId
	allowedToSleep bool
}

type fakeCorePower struct {
	mu    sync.Mutex
	calls []corePowerCall
}

func (f *fakeCorePower) SetCorePower(_ context.Context, coreID dspfw.CoreId, allowedToSleep bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, corePowerCall{coreID, allowedToSleep})
	return nil
}

func (f *fakeCorePower) snapshot() []corePowerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]corePowerCall(nil), f.calls...)
}

type fakeStreamFactory struct {
	cores   []dspfw.CoreId
	streams map[dspfw.CoreId]*compressstream.StubStream
}

func newFakeStreamFactory(cores ...dspfw.CoreId) *fakeStreamFactory {
	f := &fakeStreamFactory{cores: cores, streams: map[dspfw.CoreId]*compressstream.StubStream{}}
	for _, c := range cores {
		f.streams[c] = compressstream.NewStubStream()
	}
	return f
}

func (f *fakeStreamFactory) ActiveCores(context.Context) ([]dspfw.CoreId, error) {
	return f.cores, nil
}

func (f *fakeStreamFactory) OpenLogStream(_ context.Context, coreID dspfw.CoreId) (compressstream.CompressedStream, error) {
	return f.streams[coreID], nil
}

func levelBytes(level dspfw.LogPriority) []byte {
	return []byte{byte(level), 0, 0, 0}
}

// scenario 1: set_parameters(start) writes the control, wakes core 0,
// opens+starts the stream; a second start is refused; set_parameters(stop)
// tears everything down and read_log_block then reports closed.
func TestSetParametersStartStopLifecycle(t *testing.T) {
	ctl := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandCtlRead, Name: dspfw.LogLevelControlName, Output: levelBytes(dspfw.LogPriorityCritical)},
		{Command: device.CommandCtlWrite, Name: dspfw.LogLevelControlName, WantInput: levelBytes(dspfw.LogPriorityVerbose)},
		{Command: device.CommandCtlRead, Name: dspfw.LogLevelControlName, Output: levelBytes(dspfw.LogPriorityVerbose)},
		{Command: device.CommandCtlWrite, Name: dspfw.LogLevelControlName, WantInput: levelBytes(dspfw.LogPriorityVerbose)},
	})
	power := &fakeCorePower{}
	factory := newFakeStreamFactory(0)

	l := New(ctl, power, factory, nil)

	got, err := l.GetParameters()
	require.NoError(t, err)
	require.Equal(t, Parameters{Started: false, Level: dspfw.LogPriorityCritical, Output: OutputSram}, got)

	require.NoError(t, l.SetParameters(context.Background(), Parameters{Started: true, Level: dspfw.LogPriorityVerbose, Output: OutputSram}))

	stream := factory.streams[0]
	require.True(t, stream.IsOpen())
	require.True(t, stream.IsRunning())
	require.Equal(t, []corePowerCall{{0, false}}, power.snapshot())

	err = l.SetParameters(context.Background(), Parameters{Started: true, Level: dspfw.LogPriorityVerbose, Output: OutputSram})
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.ParameterLocked))

	got, err = l.GetParameters()
	require.NoError(t, err)
	require.True(t, got.Started)
	require.Equal(t, dspfw.LogPriorityVerbose, got.Level)

	require.NoError(t, l.SetParameters(context.Background(), Parameters{Started: false, Level: dspfw.LogPriorityVerbose, Output: OutputSram}))

	require.False(t, stream.IsRunning())
	require.False(t, stream.IsOpen())
	require.Equal(t, []corePowerCall{{0, false}, {0, true}}, power.snapshot())

	_, ok := l.ReadLogBlock()
	require.False(t, ok)

	require.Equal(t, 0, ctl.Remaining())
}

func TestReadLogBlockDeliversProducedBlocks(t *testing.T) {
	ctl := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandCtlWrite, Name: dspfw.LogLevelControlName, WantInput: levelBytes(dspfw.LogPriorityHigh)},
		{Command: device.CommandCtlWrite, Name: dspfw.LogLevelControlName, WantInput: levelBytes(dspfw.LogPriorityHigh)},
	})
	power := &fakeCorePower{}
	factory := newFakeStreamFactory(1)

	l := New(ctl, power, factory, nil)
	require.NoError(t, l.SetParameters(context.Background(), Parameters{Started: true, Level: dspfw.LogPriorityHigh, Output: OutputSram}))
	defer l.SetParameters(context.Background(), Parameters{Started: false, Level: dspfw.LogPriorityHigh, Output: OutputSram})

	stream := factory.streams[1]
	stream.Feed([]byte{1, 2, 3, 4})

	done := make(chan dspfw.LogBlock, 1)
	go func() {
		block, ok := l.ReadLogBlock()
		require.True(t, ok)
		done <- block
	}()

	select {
	case block := <-done:
		require.Equal(t, dspfw.CoreId(1), block.CoreID)
		require.Equal(t, []byte{1, 2, 3, 4}, block.Data)
	case <-time.After(time.Second):
		t.Fatal("read_log_block did not deliver the fed block")
	}
}

func TestSetParametersFailsWhenNoActiveCores(t *testing.T) {
	ctl := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandCtlWrite, Name: dspfw.LogLevelControlName},
	})
	power := &fakeCorePower{}
	factory := newFakeStreamFactory()

	l := New(ctl, power, factory, nil)
	err := l.SetParameters(context.Background(), Parameters{Started: true, Level: dspfw.LogPriorityHigh})
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.Io))
}

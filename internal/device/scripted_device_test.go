package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptedDeviceSendMatchesInOrder(t *testing.T) {
	d := NewScriptedDevice([]Expectation{
		{Command: CommandSend, WantInput: []byte{1, 2}, Output: []byte{9, 9}},
		{Command: CommandCtlWrite, Name: "DSP Log Level", WantInput: []byte{5, 0, 0, 0}},
	})

	reply, err := d.Send(context.Background(), []byte{1, 2}, 16)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9}, reply)

	require.NoError(t, d.CtlWrite("DSP Log Level", []byte{5, 0, 0, 0}))
	require.Equal(t, 0, d.Remaining())
}

func TestScriptedDeviceRejectsWrongCommand(t *testing.T) {
	d := NewScriptedDevice([]Expectation{
		{Command: CommandCtlRead, Name: "DSP Log Level", Output: []byte{1, 0, 0, 0}},
	})
	_, err := d.Send(context.Background(), []byte{1}, 16)
	require.Error(t, err)
}

func TestScriptedDeviceRejectsMismatchedInput(t *testing.T) {
	d := NewScriptedDevice([]Expectation{
		{Command: CommandSend, WantInput: []byte{1, 2, 3}, Output: nil},
	})
	_, err := d.Send(context.Background(), []byte{9, 9, 9}, 16)
	require.Error(t, err)
}

func TestScriptedDeviceExhaustedScriptFails(t *testing.T) {
	d := NewScriptedDevice(nil)
	_, err := d.Send(context.Background(), []byte{1}, 16)
	require.Error(t, err)
}

func TestScriptedDeviceCtlReadPopulatesOutput(t *testing.T) {
	d := NewScriptedDevice([]Expectation{
		{Command: CommandCtlRead, Name: "DSP Log Level", Output: []byte{2, 0, 0, 0}},
	})
	out := make([]byte, 4)
	require.NoError(t, d.CtlRead("DSP Log Level", out))
	require.Equal(t, []byte{2, 0, 0, 0}, out)
}

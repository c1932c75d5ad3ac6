package module

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
	"github.com/intel/fdk-debug-agent-sub000/internal/device"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
)

func encodeRequestForTest(t *testing.T, cmd cmdType, moduleID dspfw.ModuleId, paramID dspfw.ParameterId, size uint32, payload []byte) []byte {
	t.Helper()
	out := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(out)
	require.NoError(t, w.WriteUint32(uint32(cmd)))
	require.NoError(t, w.WriteUint16(moduleID.TypeID))
	require.NoError(t, w.WriteUint16(moduleID.InstanceID))
	require.NoError(t, w.WriteUint32(paramID.Wire()))
	require.NoError(t, w.WriteUint32(size))
	if len(payload) > 0 {
		require.NoError(t, w.WriteBytes(payload))
	}
	return out.Bytes()
}

func replyOK(t *testing.T, payload []byte) []byte {
	t.Helper()
	out := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(out)
	require.NoError(t, w.WriteUint32(0)) // driver_status
	require.NoError(t, w.WriteUint32(0)) // fw_status
	if len(payload) > 0 {
		require.NoError(t, w.WriteBytes(payload))
	}
	return out.Bytes()
}

// scenario 2: get_module_parameter returns a large payload unchanged.
func TestGetModuleParameterReturnsPayloadUnchanged(t *testing.T) {
	moduleID := dspfw.ModuleId{TypeID: 1, InstanceID: 1}
	paramID := dspfw.ParameterId{Base: 0}

	payload := make([]byte, 642)
	for i := range payload {
		payload[i] = byte(i)
	}

	wantReq := encodeRequestForTest(t, cmdGet, moduleID, paramID, 1000, nil)
	d := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandSend, WantInput: wantReq, Output: replyOK(t, payload)},
	})

	h := NewHandler(d)
	got, err := h.GetModuleParameter(context.Background(), moduleID, paramID, 1000)
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.Equal(t, 0, d.Remaining())
}

// scenario 3: set_module_parameter on a tunneled (moduleId, paramId) pair
// frames the request with a (param_id, size) header before the payload.
func TestSetModuleParameterTunnelsWhenRequired(t *testing.T) {
	moduleID := dspfw.ModuleId{TypeID: 0x1024, InstanceID: 2}
	paramID := dspfw.ParameterId{Base: 2}
	payload := []byte{4, 5, 6}

	tunnelHeader := bytestream.NewMemoryOutputStream()
	tw := bytestream.NewWriter(tunnelHeader)
	require.NoError(t, tw.WriteUint32(paramID.Wire()))
	require.NoError(t, tw.WriteUint32(uint32(len(payload))))
	require.NoError(t, tw.WriteBytes(payload))
	body := tunnelHeader.Bytes()

	wantReq := encodeRequestForTest(t, cmdSet, moduleID, paramID, uint32(len(body)), body)
	d := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandSend, WantInput: wantReq, Output: replyOK(t, nil)},
	})

	h := NewHandler(d)
	err := h.SetModuleParameter(context.Background(), moduleID, paramID, payload)
	require.NoError(t, err)
	require.Equal(t, 0, d.Remaining())
}

func TestGetFwConfigDecodesReply(t *testing.T) {
	fwConfigBytes := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(fwConfigBytes)
	appendTLVField(t, w, 0, func(vw *bytestream.Writer) {
		require.NoError(t, vw.WriteUint32(1))
		require.NoError(t, vw.WriteUint32(2))
		require.NoError(t, vw.WriteUint32(3))
	})
	appendTLVField(t, w, 1, func(vw *bytestream.Writer) {
		require.NoError(t, vw.WriteUint32(4096))
	})

	d := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandSend, Output: replyOK(t, fwConfigBytes.Bytes())},
	})

	h := NewHandler(d)
	cfg, err := h.GetFwConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, [3]uint32{1, 2, 3}, cfg.FwVersion)
	require.Equal(t, uint32(4096), cfg.MemoryReclaimed)
}

func TestGetConfigSurfacesDriverStatusError(t *testing.T) {
	out := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(out)
	require.NoError(t, w.WriteUint32(7)) // non-zero driver_status
	require.NoError(t, w.WriteUint32(0))

	d := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandSend, Output: out.Bytes()},
	})

	h := NewHandler(d)
	_, err := h.GetHwConfig(context.Background())
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.DriverStatus))
}

func TestGetConfigSurfacesFirmwareStatusError(t *testing.T) {
	out := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(out)
	require.NoError(t, w.WriteUint32(0))
	require.NoError(t, w.WriteUint32(3)) // non-zero fw_status

	d := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandSend, Output: out.Bytes()},
	})

	h := NewHandler(d)
	_, err := h.GetHwConfig(context.Background())
	require.Error(t, err)
	require.True(t, agenterr.Is(err, agenterr.FirmwareStatus))
}

func TestSetCorePowerEncodesCoreAndFlag(t *testing.T) {
	moduleID := baseFwModule
	paramID := dspfw.ParameterId{Base: paramCorePowerState}

	wantBody := bytestream.NewMemoryOutputStream()
	bw := bytestream.NewWriter(wantBody)
	require.NoError(t, bw.WriteUint32(0))
	require.NoError(t, bw.WriteUint32(0)) // allowed_to_sleep = false

	wantReq := encodeRequestForTest(t, cmdSet, moduleID, paramID, uint32(len(wantBody.Bytes())), wantBody.Bytes())
	d := device.NewScriptedDevice([]device.Expectation{
		{Command: device.CommandSend, WantInput: wantReq, Output: replyOK(t, nil)},
	})

	h := NewHandler(d)
	err := h.SetCorePower(context.Background(), dspfw.CoreId(0), false)
	require.NoError(t, err)
}

func appendTLVField(t *testing.T, w *bytestream.Writer, tag uint32, writeValue func(*bytestream.Writer)) {
	t.Helper()
	scratch := bytestream.NewMemoryOutputStream()
	writeValue(bytestream.NewWriter(scratch))

	require.NoError(t, w.WriteUint32(tag))
	require.NoError(t, w.WriteUint32(uint32(len(scratch.Bytes()))))
	require.NoError(t, w.WriteBytes(scratch.Bytes()))
}

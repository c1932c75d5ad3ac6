// Package module implements the ModuleHandler contract: firmware
// introspection and parameter access over a single message endpoint, using
// the LargeConfigAccess/ModuleConfigAccess envelope and the TLV codec for
// aggregate replies.
package module

import (
	"context"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
	"github.com/intel/fdk-debug-agent-sub000/internal/device"
	"github.com/intel/fdk-debug-agent-sub000/internal/dspfw"
)

// cmdType selects the LargeConfigAccess request direction.
type cmdType uint32

const (
	cmdGet cmdType = 0
	cmdSet cmdType = 1
)

// replyHeaderSize is the driver_status+fw_status prefix every reply carries.
const replyHeaderSize = 8

// baseFwModule addresses the firmware's base-firmware module instance, the
// target of every operation below that is not scoped to a caller-supplied
// module/instance pair.
var baseFwModule = dspfw.ModuleId{TypeID: 0, InstanceID: 0}

// Base firmware parameter ids. These are placeholder values numbered
// consecutively in the order of the operations below, not values taken
// from the firmware's parameter enumeration.
const (
	paramFwConfig            uint8 = 7
	paramHwConfig            uint8 = 8
	paramModulesInfo         uint8 = 9
	paramPipelineList        uint8 = 10
	paramPipelineProps       uint8 = 11
	paramSchedulersInfo      uint8 = 12
	paramGatewaysInfo        uint8 = 13
	paramModuleInstanceProps uint8 = 14
	paramPerfData            uint8 = 15
	paramMemoryState         uint8 = 16
	paramPerfMeasState       uint8 = 17
	paramCorePowerState      uint8 = 18
	paramLogInfoState        uint8 = 19
)

// Fixed-record sizes for array-of-struct replies, used to size the Get
// envelope's requested max payload.
const (
	moduleEntryRecordSize = 16 + 8 + 4 // uuid + name + compound module id
	gatewayRecordSize     = 4 + 4
	perfDataRecordSize    = 4 + 4 + 4
	modulePropsSize       = 4 + 4 + 4 + 4
)

// tunneledParams is the static (moduleId type, paramId base) predicate from
// spec 4.7/9: pairs present here frame their payload with a (paramId, size)
// tunnel header in both directions. The firmware's actual tunneled set is
// larger; this table carries the pairs this module's callers exercise.
var tunneledParams = map[uint16]map[uint8]bool{
	0x1024: {2: true},
}

func isTunneled(moduleID dspfw.ModuleId, paramID dspfw.ParameterId) bool {
	byBase, ok := tunneledParams[moduleID.TypeID]
	return ok && byBase[paramID.Base]
}

// Handler wraps one message endpoint and issues every ModuleHandler
// operation over it. The endpoint is expected to serialize concurrent
// calls internally (spec 5, "Concurrent clients of C6/C7 are serialized by
// an internal mutex inside the device implementation").
type Handler struct {
	msg device.MessageEndpoint
}

// NewHandler wraps msg.
func NewHandler(msg device.MessageEndpoint) *Handler {
	return &Handler{msg: msg}
}

// encodeRequest builds a LargeConfigAccess envelope. size is the wire
// size field: for Get it is the caller's max reply payload, for Set it is
// len(payload); the two diverge, so the caller passes it explicitly rather
// than have it inferred from payload.
func (h *Handler) encodeRequest(cmd cmdType, moduleID dspfw.ModuleId, paramID dspfw.ParameterId, size uint32, payload []byte) ([]byte, error) {
	out := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(out)
	if err := w.WriteUint32(uint32(cmd)); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "encode request cmd_type", err)
	}
	if err := w.WriteUint16(moduleID.TypeID); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "encode request module_id", err)
	}
	if err := w.WriteUint16(moduleID.InstanceID); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "encode request instance_id", err)
	}
	if err := w.WriteUint32(paramID.Wire()); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "encode request large_param_id", err)
	}
	if err := w.WriteUint32(size); err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "encode request size", err)
	}
	if len(payload) > 0 {
		if err := w.WriteBytes(payload); err != nil {
			return nil, agenterr.Wrap(agenterr.Io, "encode request payload", err)
		}
	}
	return out.Bytes(), nil
}

func (h *Handler) parseReply(reply []byte, moduleID dspfw.ModuleId, paramID dspfw.ParameterId) ([]byte, error) {
	if len(reply) < replyHeaderSize {
		return nil, agenterr.New(agenterr.DecodeInvalid, "reply shorter than status header")
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(reply))
	driverStatus, err := r.ReadUint32()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode driver_status", err)
	}
	fwStatus, err := r.ReadUint32()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode fw_status", err)
	}
	if driverStatus != 0 {
		return nil, agenterr.WithCode(agenterr.DriverStatus, int(driverStatus), "module config access rejected by driver")
	}
	if fwStatus != 0 {
		return nil, agenterr.WithCode(agenterr.FirmwareStatus, int(fwStatus), "module config access rejected by firmware")
	}

	payload := reply[replyHeaderSize:]
	if len(payload) == 0 || !isTunneled(moduleID, paramID) {
		return payload, nil
	}
	return stripTunnelHeader(payload)
}

// stripTunnelHeader removes the (param_id, size) header a tunneled reply
// prepends to its payload.
func stripTunnelHeader(payload []byte) ([]byte, error) {
	if len(payload) < 8 {
		return nil, agenterr.New(agenterr.DecodeInvalid, "tunneled reply shorter than header")
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload[:8]))
	if _, err := r.ReadUint32(); err != nil {
		return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode tunnel param_id", err)
	}
	size, err := r.ReadUint32()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode tunnel size", err)
	}
	body := payload[8:]
	if uint32(len(body)) < size {
		return nil, agenterr.New(agenterr.DecodeInvalid, "tunneled payload shorter than declared size")
	}
	return body[:size], nil
}

// getConfig issues a Get LargeConfigAccess for moduleID/paramID, requesting
// up to maxPayload reply octets, and returns the (tunnel-stripped) payload.
func (h *Handler) getConfig(ctx context.Context, moduleID dspfw.ModuleId, paramID dspfw.ParameterId, maxPayload int) ([]byte, error) {
	req, err := h.encodeRequest(cmdGet, moduleID, paramID, uint32(maxPayload), nil)
	if err != nil {
		return nil, err
	}
	reply, err := h.msg.Send(ctx, req, replyHeaderSize+maxPayload)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.Io, "module config get", err)
	}
	return h.parseReply(reply, moduleID, paramID)
}

// setConfig issues a Set LargeConfigAccess carrying payload, tunneling it
// first if (moduleID, paramID) requires it.
func (h *Handler) setConfig(ctx context.Context, moduleID dspfw.ModuleId, paramID dspfw.ParameterId, payload []byte) error {
	body := payload
	if isTunneled(moduleID, paramID) {
		wrapped := bytestream.NewMemoryOutputStream()
		ww := bytestream.NewWriter(wrapped)
		if err := ww.WriteUint32(paramID.Wire()); err != nil {
			return agenterr.Wrap(agenterr.Io, "encode tunnel header param_id", err)
		}
		if err := ww.WriteUint32(uint32(len(payload))); err != nil {
			return agenterr.Wrap(agenterr.Io, "encode tunnel header size", err)
		}
		if err := ww.WriteBytes(payload); err != nil {
			return agenterr.Wrap(agenterr.Io, "encode tunnel payload", err)
		}
		body = wrapped.Bytes()
	}

	req, err := h.encodeRequest(cmdSet, moduleID, paramID, uint32(len(body)), body)
	if err != nil {
		return err
	}
	reply, err := h.msg.Send(ctx, req, replyHeaderSize)
	if err != nil {
		return agenterr.Wrap(agenterr.Io, "module config set", err)
	}
	_, err = h.parseReply(reply, moduleID, paramID)
	return err
}

// GetFwConfig returns the firmware's reported version/capability set.
func (h *Handler) GetFwConfig(ctx context.Context) (dspfw.FwConfig, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramFwConfig}, 256)
	if err != nil {
		return dspfw.FwConfig{}, err
	}
	cfg, err := dspfw.DecodeFwConfig(payload)
	if err != nil {
		return dspfw.FwConfig{}, agenterr.Wrap(agenterr.DecodeInvalid, "decode fw config", err)
	}
	return cfg, nil
}

// GetHwConfig returns the platform's core count/clock configuration.
func (h *Handler) GetHwConfig(ctx context.Context) (dspfw.HwConfig, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramHwConfig}, 64)
	if err != nil {
		return dspfw.HwConfig{}, err
	}
	cfg, err := dspfw.DecodeHwConfig(payload)
	if err != nil {
		return dspfw.HwConfig{}, agenterr.Wrap(agenterr.DecodeInvalid, "decode hw config", err)
	}
	return cfg, nil
}

// GetModuleEntries returns expectedCount module-type entries.
func (h *Handler) GetModuleEntries(ctx context.Context, expectedCount int) ([]dspfw.ModuleEntry, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramModulesInfo}, expectedCount*moduleEntryRecordSize)
	if err != nil {
		return nil, err
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	entries := make([]dspfw.ModuleEntry, expectedCount)
	for i := range entries {
		if err := r.ReadInto(&entries[i]); err != nil {
			return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode module entry", err)
		}
	}
	return entries, nil
}

// GetPipelineIds returns up to maxCount active pipeline ids.
func (h *Handler) GetPipelineIds(ctx context.Context, maxCount int) ([]dspfw.PipelineId, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramPipelineList}, 4+maxCount*4)
	if err != nil {
		return nil, err
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	raw, err := r.ReadUint32Vector()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode pipeline id vector", err)
	}
	ids := make([]dspfw.PipelineId, len(raw))
	for i, v := range raw {
		ids[i] = dspfw.PipelineId(v)
	}
	return ids, nil
}

// GetPipelineProps returns pipeline properties for id, passed as an
// extended parameter selector.
func (h *Handler) GetPipelineProps(ctx context.Context, id dspfw.PipelineId) (dspfw.PplProps, error) {
	paramID := dspfw.ParameterId{Base: paramPipelineProps, Selector: uint32(id), Extended: true}
	payload, err := h.getConfig(ctx, baseFwModule, paramID, 4096)
	if err != nil {
		return dspfw.PplProps{}, err
	}
	var props dspfw.PplProps
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	if err := r.ReadInto(&props); err != nil {
		return dspfw.PplProps{}, agenterr.Wrap(agenterr.DecodeInvalid, "decode pipeline props", err)
	}
	return props, nil
}

// GetSchedulersInfo returns the scheduler/task layout for coreID, passed as
// an extended parameter selector.
func (h *Handler) GetSchedulersInfo(ctx context.Context, coreID dspfw.CoreId) (dspfw.SchedulersInfo, error) {
	paramID := dspfw.ParameterId{Base: paramSchedulersInfo, Selector: uint32(coreID), Extended: true}
	payload, err := h.getConfig(ctx, baseFwModule, paramID, 8192)
	if err != nil {
		return dspfw.SchedulersInfo{}, err
	}
	var info dspfw.SchedulersInfo
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	if err := r.ReadInto(&info); err != nil {
		return dspfw.SchedulersInfo{}, agenterr.Wrap(agenterr.DecodeInvalid, "decode schedulers info", err)
	}
	return info, nil
}

// GetGateways returns expectedCount gateway entries.
func (h *Handler) GetGateways(ctx context.Context, expectedCount int) ([]dspfw.GatewayProps, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramGatewaysInfo}, expectedCount*gatewayRecordSize)
	if err != nil {
		return nil, err
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	gateways := make([]dspfw.GatewayProps, expectedCount)
	for i := range gateways {
		if err := r.ReadInto(&gateways[i]); err != nil {
			return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode gateway props", err)
		}
	}
	return gateways, nil
}

// GetModuleInstanceProps returns the input pin format of one module
// instance, the basis for a probe injector's sample size.
func (h *Handler) GetModuleInstanceProps(ctx context.Context, moduleID dspfw.ModuleId) (dspfw.ModuleInstanceProps, error) {
	paramID := dspfw.ParameterId{Base: paramModuleInstanceProps}
	payload, err := h.getConfig(ctx, moduleID, paramID, modulePropsSize)
	if err != nil {
		return dspfw.ModuleInstanceProps{}, err
	}
	var props dspfw.ModuleInstanceProps
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	if err := r.ReadInto(&props); err != nil {
		return dspfw.ModuleInstanceProps{}, agenterr.Wrap(agenterr.DecodeInvalid, "decode module instance props", err)
	}
	return props, nil
}

// GetModuleParameter returns the raw parameter payload for moduleID/paramID,
// unchanged, up to maxSize octets.
func (h *Handler) GetModuleParameter(ctx context.Context, moduleID dspfw.ModuleId, paramID dspfw.ParameterId, maxSize int) ([]byte, error) {
	return h.getConfig(ctx, moduleID, paramID, maxSize)
}

// SetModuleParameter writes payload to moduleID/paramID, tunneling it if
// the static predicate requires it.
func (h *Handler) SetModuleParameter(ctx context.Context, moduleID dspfw.ModuleId, paramID dspfw.ParameterId, payload []byte) error {
	return h.setConfig(ctx, moduleID, paramID, payload)
}

// GetGlobalPerfData returns up to maxItems per-module performance entries.
func (h *Handler) GetGlobalPerfData(ctx context.Context, maxItems int) ([]dspfw.PerfDataItem, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramPerfData}, 4+maxItems*perfDataRecordSize)
	if err != nil {
		return nil, err
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	count, err := r.ReadUint32()
	if err != nil {
		return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode perf data count", err)
	}
	items := make([]dspfw.PerfDataItem, count)
	for i := range items {
		if err := r.ReadInto(&items[i]); err != nil {
			return nil, agenterr.Wrap(agenterr.DecodeInvalid, "decode perf data item", err)
		}
	}
	return items, nil
}

// GetGlobalMemoryState returns the TLV-parsed SRAM/EBB memory state.
func (h *Handler) GetGlobalMemoryState(ctx context.Context) (dspfw.MemoryState, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramMemoryState}, 4096)
	if err != nil {
		return dspfw.MemoryState{}, err
	}
	state, err := dspfw.DecodeMemoryState(payload)
	if err != nil {
		return dspfw.MemoryState{}, agenterr.Wrap(agenterr.DecodeInvalid, "decode memory state", err)
	}
	return state, nil
}

// SetPerfState enables or disables global performance measurement.
func (h *Handler) SetPerfState(ctx context.Context, state uint32) error {
	payload := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(payload)
	if err := w.WriteUint32(state); err != nil {
		return agenterr.Wrap(agenterr.Io, "encode perf state", err)
	}
	return h.setConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramPerfMeasState}, payload.Bytes())
}

// GetPerfState returns the current global performance measurement state.
func (h *Handler) GetPerfState(ctx context.Context) (uint32, error) {
	payload, err := h.getConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramPerfMeasState}, 4)
	if err != nil {
		return 0, err
	}
	r := bytestream.NewReader(bytestream.NewMemoryInputStream(payload))
	v, err := r.ReadUint32()
	if err != nil {
		return 0, agenterr.Wrap(agenterr.DecodeInvalid, "decode perf state", err)
	}
	return v, nil
}

// SetCorePower requests the driver wake or allow-to-sleep a DSP core. The
// Logger issues this once per log producer core when the producer starts
// (allowedToSleep=false) and once when it stops (allowedToSleep=true).
func (h *Handler) SetCorePower(ctx context.Context, coreID dspfw.CoreId, allowedToSleep bool) error {
	payload := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(payload)
	if err := w.WriteUint32(uint32(coreID)); err != nil {
		return agenterr.Wrap(agenterr.Io, "encode core power core_id", err)
	}
	if err := w.WriteUint32(boolToU32(allowedToSleep)); err != nil {
		return agenterr.Wrap(agenterr.Io, "encode core power flag", err)
	}
	return h.setConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramCorePowerState}, payload.Bytes())
}

// SetLogInfoState arms firmware logging for the cores in coreMask at level,
// enabled/disabled as requested.
func (h *Handler) SetLogInfoState(ctx context.Context, coreMask uint32, enabled bool, level dspfw.LogPriority) error {
	payload := bytestream.NewMemoryOutputStream()
	w := bytestream.NewWriter(payload)
	if err := w.WriteUint32(coreMask); err != nil {
		return agenterr.Wrap(agenterr.Io, "encode log info core_mask", err)
	}
	if err := w.WriteUint32(boolToU32(enabled)); err != nil {
		return agenterr.Wrap(agenterr.Io, "encode log info enabled", err)
	}
	if err := w.WriteUint32(uint32(level)); err != nil {
		return agenterr.Wrap(agenterr.Io, "encode log info level", err)
	}
	return h.setConfig(ctx, baseFwModule, dspfw.ParameterId{Base: paramLogInfoState}, payload.Bytes())
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

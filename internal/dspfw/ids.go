// Package dspfw defines the wire-level value types exchanged with the DSP
// firmware: module/parameter/probe identifiers, the probe extraction
// packet, the log block header, and the TLV-decoded aggregate types
// (FwConfig, HwConfig, MemoryState, and the module/pipeline/gateway
// introspection records).
package dspfw

import "github.com/intel/fdk-debug-agent-sub000/internal/agenterr"

// ModuleId packs a 16-bit module type id and a 16-bit instance id, wired
// as one 32-bit compound id (type in the low half, instance in the high
// half) wherever the firmware protocol calls for a single module
// reference.
type ModuleId struct {
	TypeID     uint16
	InstanceID uint16
}

// Compound returns the packed 32-bit wire form.
func (m ModuleId) Compound() uint32 {
	return uint32(m.TypeID) | uint32(m.InstanceID)<<16
}

// ModuleIdFromCompound unpacks a 32-bit compound id.
func ModuleIdFromCompound(v uint32) ModuleId {
	return ModuleId{TypeID: uint16(v), InstanceID: uint16(v >> 16)}
}

// ParameterId is a 32-bit firmware parameter selector. An "extended"
// parameter id carries a secondary selector (pipeline id, core id) in its
// high 24 bits and the base parameter id in its low 8 bits.
type ParameterId struct {
	Base     uint8
	Selector uint32 // only meaningful when Extended is true
	Extended bool
}

// Wire returns the 32-bit selector as transmitted in large_param_id.
func (p ParameterId) Wire() uint32 {
	if !p.Extended {
		return uint32(p.Base)
	}
	return (p.Selector << 8) | uint32(p.Base)
}

// ParameterIdFromWire unpacks a wire-form parameter selector. Since the
// wire form alone cannot distinguish a plain from an extended id, callers
// that need the distinction track it out of band (the operation they are
// issuing determines which form applies).
func ParameterIdFromWire(v uint32, extended bool) ParameterId {
	if !extended {
		return ParameterId{Base: uint8(v)}
	}
	return ParameterId{Base: uint8(v), Selector: v >> 8, Extended: true}
}

// CoreId is a 0..15 core index as encoded on the wire (log blocks, set_core_power).
type CoreId uint8

// MaxCoreId is the largest representable CoreId (4-bit field).
const MaxCoreId CoreId = 15

// PipelineId, GatewayId and TaskId are opaque 32-bit firmware identifiers.
type (
	PipelineId uint32
	GatewayId  uint32
	TaskId     uint32
)

// ProbeType is the pin direction a probe point taps.
type ProbeType uint8

const (
	ProbeTypeInput ProbeType = iota
	ProbeTypeOutput
	ProbeTypeInternal
)

// ProbePurpose is what a probe slot is configured to do.
type ProbePurpose uint32

const (
	ProbePurposeInject ProbePurpose = iota
	ProbePurposeExtract
	ProbePurposeInjectReextract
)

// ProbeCount is the fixed number of probe slots the firmware exposes.
const ProbeCount = 8

// ProbePointId is the 4-octet bit-packed probe point reference:
// moduleId:16 | instanceId:8 | type:2 | index:6 (little-endian on the wire).
type ProbePointId struct {
	ModuleID   uint16
	InstanceID uint8
	Type       ProbeType
	Index      uint8
}

// NewProbePointId validates field widths and the Type enum before packing.
func NewProbePointId(moduleID uint16, instanceID uint8, typ ProbeType, index uint8) (ProbePointId, error) {
	if typ > ProbeTypeInternal {
		return ProbePointId{}, agenterr.New(agenterr.DecodeInvalid, "probe point type out of range")
	}
	if index > 0x3F {
		return ProbePointId{}, agenterr.New(agenterr.DecodeInvalid, "probe point index exceeds 6 bits")
	}
	return ProbePointId{ModuleID: moduleID, InstanceID: instanceID, Type: typ, Index: index}, nil
}

// Pack returns the 32-bit little-endian-on-the-wire packed form.
func (p ProbePointId) Pack() uint32 {
	return uint32(p.ModuleID) | uint32(p.InstanceID)<<16 | uint32(p.Type)<<24 | uint32(p.Index)<<26
}

// UnpackProbePointId reconstructs a ProbePointId from its packed form. The
// packed form is trusted (it came off the wire or out of our own Pack), so
// field widths are masked rather than re-validated.
func UnpackProbePointId(v uint32) ProbePointId {
	return ProbePointId{
		ModuleID:   uint16(v),
		InstanceID: uint8(v >> 16),
		Type:       ProbeType((v >> 24) & 0x3),
		Index:      uint8((v >> 26) & 0x3F),
	}
}

// ProbeConfig describes one of the ProbeCount probe slots.
type ProbeConfig struct {
	PointID ProbePointId
	Purpose ProbePurpose
	Enabled bool
}

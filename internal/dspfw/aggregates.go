package dspfw

import (
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
	"github.com/intel/fdk-debug-agent-sub000/internal/tlv"
)

// Tags used by the FwConfig TLV language. Values mirror the firmware's
// FW_CFG_* enumeration order; only the fields this module's operations
// expose are bound, the rest fall through the unpacker's skip path.
const (
	tagFwVersion       uint32 = 0
	tagMemoryReclaimed uint32 = 1
	tagLegacyFlags     uint32 = 15
)

// FwConfig is the result of get_fw_config: a handful of scalar
// capabilities decoded out of a FW_CONFIG TLV blob.
type FwConfig struct {
	FwVersion        [3]uint32 // major, minor, patch
	MemoryReclaimed  uint32
	LegacyFlagsValid bool
	LegacyFlags      uint32
}

type fwVersionField struct{ cfg *FwConfig }

func (f fwVersionField) Decode(r *bytestream.Reader, length uint32) error {
	for i := range f.cfg.FwVersion {
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		f.cfg.FwVersion[i] = v
	}
	return nil
}

type u32Field struct {
	dst *uint32
	set *bool
}

func (f u32Field) Decode(r *bytestream.Reader, length uint32) error {
	v, err := r.ReadUint32()
	if err != nil {
		return err
	}
	*f.dst = v
	if f.set != nil {
		*f.set = true
	}
	return nil
}

// DecodeFwConfig parses a FW_CONFIG TLV blob.
func DecodeFwConfig(data []byte) (FwConfig, error) {
	var cfg FwConfig
	lang := tlv.Language{
		tagFwVersion:       fwVersionField{&cfg},
		tagMemoryReclaimed: u32Field{&cfg.MemoryReclaimed, nil},
		tagLegacyFlags:     u32Field{&cfg.LegacyFlags, &cfg.LegacyFlagsValid},
	}
	if err := decodeAll(data, lang); err != nil {
		return FwConfig{}, err
	}
	return cfg, nil
}

// HwConfig is the result of get_hw_config.
const (
	tagHwCfgCoreCount  uint32 = 0
	tagHwCfgDspCoreMHz uint32 = 1
)

type HwConfig struct {
	CoreCount uint32
	DspCoreMHz uint32
}

// DecodeHwConfig parses a HW_CONFIG TLV blob.
func DecodeHwConfig(data []byte) (HwConfig, error) {
	var cfg HwConfig
	lang := tlv.Language{
		tagHwCfgCoreCount:  u32Field{&cfg.CoreCount, nil},
		tagHwCfgDspCoreMHz: u32Field{&cfg.DspCoreMHz, nil},
	}
	if err := decodeAll(data, lang); err != nil {
		return HwConfig{}, err
	}
	return cfg, nil
}

// MemoryState is the result of get_global_memory_state: per-SRAM-bank
// free page counts, an EBB (enabled bank bitmap) state field, and a page
// allocation vector, each decoded as its own TLV tag.
const (
	tagMemFreePhysPages uint32 = 0
	tagMemEbbState      uint32 = 1
	tagMemPageAlloc     uint32 = 2
)

type MemoryState struct {
	FreePhysPagesPerBank []uint32
	EbbState             []uint32
	PageAllocation       []uint32
}

type u32VectorField struct{ dst *[]uint32 }

func (f u32VectorField) Decode(r *bytestream.Reader, length uint32) error {
	n := int(length / 4)
	out := make([]uint32, n)
	for i := range out {
		v, err := r.ReadUint32()
		if err != nil {
			return err
		}
		out[i] = v
	}
	*f.dst = out
	return nil
}

// DecodeMemoryState parses a MEMORY_STATE_INFO TLV blob.
func DecodeMemoryState(data []byte) (MemoryState, error) {
	var st MemoryState
	lang := tlv.Language{
		tagMemFreePhysPages: u32VectorField{&st.FreePhysPagesPerBank},
		tagMemEbbState:      u32VectorField{&st.EbbState},
		tagMemPageAlloc:     u32VectorField{&st.PageAllocation},
	}
	if err := decodeAll(data, lang); err != nil {
		return MemoryState{}, err
	}
	return st, nil
}

func decodeAll(data []byte, lang tlv.Language) error {
	u := tlv.NewUnpacker(bytestream.NewMemoryInputStream(data), lang)
	for {
		more, err := u.ReadNext()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// ModuleEntry describes one module type known to the firmware: its uuid,
// a fixed-size display name, and its type/instance identifiers.
type ModuleEntry struct {
	UUID [16]byte
	Name [8]byte // firmware fixed-width ascii name field
	ID   ModuleId
}

// FromStream decodes one fixed-layout ModuleEntry record (not TLV: the
// module entries table is a flat array of fixed-size records).
func (m *ModuleEntry) FromStream(r *bytestream.Reader) error {
	uuid, err := r.ReadBytes(16)
	if err != nil {
		return err
	}
	name, err := r.ReadBytes(8)
	if err != nil {
		return err
	}
	compound, err := r.ReadUint32()
	if err != nil {
		return err
	}
	copy(m.UUID[:], uuid)
	copy(m.Name[:], name)
	m.ID = ModuleIdFromCompound(compound)
	return nil
}

// ToStream encodes one ModuleEntry record.
func (m ModuleEntry) ToStream(w *bytestream.Writer) error {
	if err := w.WriteBytes(m.UUID[:]); err != nil {
		return err
	}
	if err := w.WriteBytes(m.Name[:]); err != nil {
		return err
	}
	return w.WriteUint32(m.ID.Compound())
}

// PplProps is the result of get_pipeline_props for one pipeline.
type PplProps struct {
	ID            PipelineId
	PriorityCount uint32
	State         uint32
	TaskIDs       []TaskId
}

// FromStream decodes a PplProps envelope: a fixed header followed by a
// count-prefixed vector of task ids.
func (p *PplProps) FromStream(r *bytestream.Reader) error {
	id, err := r.ReadUint32()
	if err != nil {
		return err
	}
	priority, err := r.ReadUint32()
	if err != nil {
		return err
	}
	state, err := r.ReadUint32()
	if err != nil {
		return err
	}
	tasks, err := r.ReadUint32Vector()
	if err != nil {
		return err
	}
	p.ID = PipelineId(id)
	p.PriorityCount = priority
	p.State = state
	p.TaskIDs = make([]TaskId, len(tasks))
	for i, t := range tasks {
		p.TaskIDs[i] = TaskId(t)
	}
	return nil
}

// SchedulerTask is one task entry under a scheduler in SchedulersInfo.
type SchedulerTask struct {
	TaskID      TaskId
	ModuleID    ModuleId
	IsLowLatency bool
}

// Scheduler groups a core id with its tasks.
type Scheduler struct {
	CoreID CoreId
	Tasks  []SchedulerTask
}

// SchedulersInfo is the result of get_schedulers_info for one core.
type SchedulersInfo struct {
	Schedulers []Scheduler
}

// FromStream decodes a count-prefixed vector of schedulers, each with its
// own count-prefixed vector of tasks.
func (s *SchedulersInfo) FromStream(r *bytestream.Reader) error {
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	s.Schedulers = make([]Scheduler, count)
	for i := range s.Schedulers {
		coreID, err := r.ReadUint32()
		if err != nil {
			return err
		}
		taskCount, err := r.ReadUint32()
		if err != nil {
			return err
		}
		tasks := make([]SchedulerTask, taskCount)
		for j := range tasks {
			taskID, err := r.ReadUint32()
			if err != nil {
				return err
			}
			moduleCompound, err := r.ReadUint32()
			if err != nil {
				return err
			}
			lowLatency, err := r.ReadUint8()
			if err != nil {
				return err
			}
			tasks[j] = SchedulerTask{
				TaskID:       TaskId(taskID),
				ModuleID:     ModuleIdFromCompound(moduleCompound),
				IsLowLatency: lowLatency != 0,
			}
		}
		s.Schedulers[i] = Scheduler{CoreID: CoreId(coreID), Tasks: tasks}
	}
	return nil
}

// GatewayProps is one entry of get_gateways.
type GatewayProps struct {
	ID         GatewayId
	Attributes uint32
}

// FromStream decodes one GatewayProps record.
func (g *GatewayProps) FromStream(r *bytestream.Reader) error {
	id, err := r.ReadUint32()
	if err != nil {
		return err
	}
	attrs, err := r.ReadUint32()
	if err != nil {
		return err
	}
	g.ID = GatewayId(id)
	g.Attributes = attrs
	return nil
}

// ModuleInstanceProps is the result of get_module_instance_props: enough
// to compute an injection/extraction probe's sample size from its input
// pin format.
type ModuleInstanceProps struct {
	ID              ModuleId
	InputBitDepth   uint32
	InputChannels   uint32
	InputSampleRate uint32
}

// SampleByteSize returns the per-sample octet size derived from the input
// pin format, per §4.12's "bit_depth × channel_count" derivation.
func (m ModuleInstanceProps) SampleByteSize() int {
	return int(m.InputBitDepth/8) * int(m.InputChannels)
}

// FromStream decodes one ModuleInstanceProps record.
func (m *ModuleInstanceProps) FromStream(r *bytestream.Reader) error {
	compound, err := r.ReadUint32()
	if err != nil {
		return err
	}
	bitDepth, err := r.ReadUint32()
	if err != nil {
		return err
	}
	channels, err := r.ReadUint32()
	if err != nil {
		return err
	}
	sampleRate, err := r.ReadUint32()
	if err != nil {
		return err
	}
	m.ID = ModuleIdFromCompound(compound)
	m.InputBitDepth = bitDepth
	m.InputChannels = channels
	m.InputSampleRate = sampleRate
	return nil
}

// PerfDataItem is one entry of get_global_perf_data.
type PerfDataItem struct {
	ID            ModuleId
	InstanceID    uint16
	PeakUsage     uint32
	AverageUsage  uint32
}

// FromStream decodes one PerfDataItem record.
func (p *PerfDataItem) FromStream(r *bytestream.Reader) error {
	compound, err := r.ReadUint32()
	if err != nil {
		return err
	}
	peak, err := r.ReadUint32()
	if err != nil {
		return err
	}
	avg, err := r.ReadUint32()
	if err != nil {
		return err
	}
	p.ID = ModuleIdFromCompound(compound)
	p.PeakUsage = peak
	p.AverageUsage = avg
	return nil
}

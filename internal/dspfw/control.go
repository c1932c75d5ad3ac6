package dspfw

import (
	"fmt"

	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
)

// LogLevelControlName is the control endpoint's named scalar for the
// firmware log priority.
const LogLevelControlName = "DSP Log Level"

// LogPriority mirrors the firmware's log priority enum, encoded as a u32
// scalar on the control endpoint.
type LogPriority uint32

const (
	LogPriorityQuiet LogPriority = iota
	LogPriorityCritical
	LogPriorityHigh
	LogPriorityMedium
	LogPriorityLow
	LogPriorityVerbose
)

// ExtractorControlName returns the named control for extraction probe N
// (N in 0..ProbeCount-1): "Probe probe 0 Extractor N params".
func ExtractorControlName(index int) string {
	return fmt.Sprintf("Probe probe 0 Extractor %d params", index)
}

// InjectorControlName returns the named control for injection probe N:
// "Probe probe 0 Injector N params".
func InjectorControlName(index int) string {
	return fmt.Sprintf("Probe probe 0 Injector %d params", index)
}

// ProbeControlState is the on/off half of a ProbeControl wire struct.
type ProbeControlState uint8

const (
	ProbeControlDisconnect ProbeControlState = iota
	ProbeControlConnect
)

// ProbeControl is the packed struct written to/read from one of the
// per-probe control endpoint names: `{state:u8, purpose:u32, point_id:u32}`.
type ProbeControl struct {
	State   ProbeControlState
	Purpose ProbePurpose
	PointID ProbePointId
}

// FromStream decodes one ProbeControl record.
func (c *ProbeControl) FromStream(r *bytestream.Reader) error {
	state, err := r.ReadUint8()
	if err != nil {
		return err
	}
	purpose, err := r.ReadUint32()
	if err != nil {
		return err
	}
	pointID, err := r.ReadUint32()
	if err != nil {
		return err
	}
	c.State = ProbeControlState(state)
	c.Purpose = ProbePurpose(purpose)
	c.PointID = UnpackProbePointId(pointID)
	return nil
}

// ToStream encodes one ProbeControl record.
func (c ProbeControl) ToStream(w *bytestream.Writer) error {
	if err := w.WriteUint8(uint8(c.State)); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(c.Purpose)); err != nil {
		return err
	}
	return w.WriteUint32(c.PointID.Pack())
}

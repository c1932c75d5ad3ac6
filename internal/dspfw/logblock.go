package dspfw

import (
	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
)

// MaxLogBlockDataSize is the exclusive bound on a LogBlock's data payload:
// the 28-bit size field expresses at most MaxLogBlockDataSize-1 octets.
const MaxLogBlockDataSize = 1 << 28

// LogBlock is a coreId-tagged chunk of firmware trace bytes, as produced
// by one Logger producer and merged into the shared log queue.
type LogBlock struct {
	CoreID CoreId
	Data   []byte
}

// MemorySize reports the queue-accounting cost of one LogBlock: its
// payload length, matching §4.9's "element size is the payload length".
func (b LogBlock) MemorySize() int { return len(b.Data) }

// FromStream decodes the 32-bit `data_size:28 | coreId:4` header followed
// by data_size data octets.
func (b *LogBlock) FromStream(r *bytestream.Reader) error {
	header, err := r.ReadUint32()
	if err != nil {
		return err
	}
	dataSize := header & 0x0FFFFFFF
	coreID := CoreId(header >> 28)

	data, err := r.ReadBytes(int(dataSize))
	if err != nil {
		return err
	}
	b.CoreID = coreID
	b.Data = data
	return nil
}

// ToStream encodes the LogBlock header and payload.
func (b LogBlock) ToStream(w *bytestream.Writer) error {
	if len(b.Data) >= MaxLogBlockDataSize {
		return agenterr.New(agenterr.DecodeInvalid, "log block data size exceeds 28 bits")
	}
	if b.CoreID > MaxCoreId {
		return agenterr.New(agenterr.DecodeInvalid, "log block core id exceeds 4 bits")
	}
	header := uint32(len(b.Data))&0x0FFFFFFF | uint32(b.CoreID)<<28
	if err := w.WriteUint32(header); err != nil {
		return err
	}
	return w.WriteBytes(b.Data)
}

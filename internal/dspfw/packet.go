package dspfw

import (
	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
)

// PacketSyncWord is the fixed sentinel every extraction packet starts with.
const PacketSyncWord uint32 = 0xBABEBEBA

// Packet is one probe extraction record as read from a capture compressed
// stream: a fixed header, a variable-length data payload, and a trailing
// checksum covering the header fields.
type Packet struct {
	ProbePointID     uint32
	Format           uint32
	DspWallClockTsHw uint32
	DspWallClockTsLw uint32
	Data             []byte
}

// checksum is the unsigned 32-bit wraparound sum of every header field
// plus the payload length.
func (p Packet) checksum() uint32 {
	sum := PacketSyncWord
	sum += p.ProbePointID
	sum += p.Format
	sum += p.DspWallClockTsHw
	sum += p.DspWallClockTsLw
	sum += uint32(len(p.Data))
	return sum
}

// FromStream decodes a Packet, verifying the sync word and the trailing
// checksum.
func (p *Packet) FromStream(r *bytestream.Reader) error {
	syncWord, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if syncWord != PacketSyncWord {
		return agenterr.New(agenterr.DecodeInvalid, "probe packet sync word mismatch")
	}

	probePointID, err := r.ReadUint32()
	if err != nil {
		return err
	}
	format, err := r.ReadUint32()
	if err != nil {
		return err
	}
	tsHw, err := r.ReadUint32()
	if err != nil {
		return err
	}
	tsLw, err := r.ReadUint32()
	if err != nil {
		return err
	}
	dataSize, err := r.ReadUint32()
	if err != nil {
		return err
	}
	data, err := r.ReadBytes(int(dataSize))
	if err != nil {
		return err
	}
	checksum, err := r.ReadUint32()
	if err != nil {
		return err
	}

	p.ProbePointID = probePointID
	p.Format = format
	p.DspWallClockTsHw = tsHw
	p.DspWallClockTsLw = tsLw
	p.Data = data

	if checksum != p.checksum() {
		return agenterr.New(agenterr.DecodeInvalid, "probe packet header checksum mismatch")
	}
	return nil
}

// ToStream encodes a Packet with its full checksum trailer.
func (p Packet) ToStream(w *bytestream.Writer) error {
	return p.writeWithChecksum(w, p.checksum())
}

// ToStreamTruncatedChecksum encodes a Packet using a checksum trailer
// truncated to uint32 for wire compatibility with downstream tooling that
// expects a 32-bit trailer even though the on-device accumulator may be
// wider. Since this implementation's checksum is already computed over
// uint32 operands, this is equal to ToStream; it exists as a distinct,
// explicitly named entry point so extraction call sites document the
// legacy-compatibility requirement at the call site rather than relying on
// an implementation coincidence.
func (p Packet) ToStreamTruncatedChecksum(w *bytestream.Writer) error {
	return p.writeWithChecksum(w, p.checksum()&0xFFFFFFFF)
}

func (p Packet) writeWithChecksum(w *bytestream.Writer, checksum uint32) error {
	if err := w.WriteUint32(PacketSyncWord); err != nil {
		return err
	}
	if err := w.WriteUint32(p.ProbePointID); err != nil {
		return err
	}
	if err := w.WriteUint32(p.Format); err != nil {
		return err
	}
	if err := w.WriteUint32(p.DspWallClockTsHw); err != nil {
		return err
	}
	if err := w.WriteUint32(p.DspWallClockTsLw); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(p.Data))); err != nil {
		return err
	}
	if err := w.WriteBytes(p.Data); err != nil {
		return err
	}
	return w.WriteUint32(checksum)
}

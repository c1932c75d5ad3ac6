package bytestream

import (
	"encoding/binary"
	"io"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
)

// Decodable is implemented by wire types that know how to read themselves
// from a Reader.
type Decodable interface {
	FromStream(r *Reader) error
}

// Reader decodes little-endian scalars and length-prefixed vectors from an
// InputStream. A short underlying read is reported as a DecodeEOS error so
// callers (notably ProbeExtractor) can tell a clean end of stream from a
// malformed payload.
type Reader struct {
	in InputStream
}

// NewReader wraps in for scalar decoding.
func NewReader(in InputStream) *Reader {
	return &Reader{in: in}
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.in, buf); err != nil {
		return nil, eosOrInvalid(err)
	}
	return buf, nil
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadVector reads a uint32 element count followed by that many
// elementSize-byte elements, returning the raw concatenated bytes.
func (r *Reader) ReadVector(elementSize int) ([]byte, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(count) * elementSize)
}

// ReadUint32Vector reads a uint32-count-prefixed vector of uint32 values.
func (r *Reader) ReadUint32Vector() ([]uint32, error) {
	count, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, count)
	for i := range out {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadInto decodes a Decodable in place.
func (r *Reader) ReadInto(d Decodable) error {
	return d.FromStream(r)
}

// eosOrInvalid maps an underlying stream error to the agent's taxonomy:
// a clean io.EOF (nothing at all was read) or io.ErrUnexpectedEOF (a
// partial read) both surface as DecodeEOS.
func eosOrInvalid(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return agenterr.Wrap(agenterr.DecodeEOS, "unexpected end of stream", err)
	}
	return agenterr.Wrap(agenterr.Io, "stream read failed", err)
}

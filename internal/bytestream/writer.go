package bytestream

import "encoding/binary"

// Encodable is implemented by wire types that know how to write themselves
// to a Writer.
type Encodable interface {
	ToStream(w *Writer) error
}

// Writer encodes little-endian scalars and length-prefixed vectors to an
// OutputStream.
type Writer struct {
	out OutputStream
}

// NewWriter wraps out for scalar encoding.
func NewWriter(out OutputStream) *Writer {
	return &Writer{out: out}
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) error {
	_, err := w.out.Write([]byte{v})
	return err
}

// WriteUint16 writes a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.out.Write(b[:])
	return err
}

// WriteUint32 writes a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.out.Write(b[:])
	return err
}

// WriteUint64 writes a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.out.Write(b[:])
	return err
}

// WriteBytes writes raw bytes with no length prefix.
func (w *Writer) WriteBytes(p []byte) error {
	_, err := w.out.Write(p)
	return err
}

// WriteVector writes a uint32 element count followed by the raw bytes.
func (w *Writer) WriteVector(elementSize int, data []byte) error {
	if err := w.WriteUint32(uint32(len(data) / elementSize)); err != nil {
		return err
	}
	return w.WriteBytes(data)
}

// WriteUint32Vector writes a uint32-count-prefixed vector of uint32 values.
func (w *Writer) WriteUint32Vector(values []uint32) error {
	if err := w.WriteUint32(uint32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := w.WriteUint32(v); err != nil {
			return err
		}
	}
	return nil
}

// WriteInto encodes an Encodable.
func (w *Writer) WriteInto(e Encodable) error {
	return e.ToStream(w)
}

// Package tlv implements the tag/length/value codec used to decode
// firmware aggregate types (FwConfig, MemoryState, and friends) out of a
// flat octet buffer: a "language" binds known tags to typed fields, and
// the unpacker walks the buffer once, decoding bound tags and skipping
// everything else.
package tlv

import (
	"errors"
	"io"

	"github.com/intel/fdk-debug-agent-sub000/internal/agenterr"
	"github.com/intel/fdk-debug-agent-sub000/internal/bytestream"
)

// Field is one entry in a Language: it knows how to decode its own value
// from exactly `length` bytes. Any "seen" flag is set by the concrete
// field's own Decode.
type Field interface {
	// Decode reads exactly length bytes from r into the field. It must
	// consume the entire length or return an error; the unpacker treats a
	// short read as a protocol violation (a DecodeInvalid error).
	Decode(r *bytestream.Reader, length uint32) error
}

// Language is a read-only mapping from wire tag to the field that should
// receive its value. Tags absent from the map are skipped, not an error.
type Language map[uint32]Field

// Unpacker walks an input stream as a sequence of TLV records against one
// Language.
type Unpacker struct {
	reader *bytestream.Reader
	lang   Language
}

// NewUnpacker builds an unpacker reading TLV records from in against lang.
func NewUnpacker(in bytestream.InputStream, lang Language) *Unpacker {
	return &Unpacker{reader: bytestream.NewReader(in), lang: lang}
}

// ReadNext consumes one TLV record. It returns (true, nil) if a record was
// processed (decoded or skipped), (false, nil) at a clean end of buffer
// (EOS exactly at a tag boundary), or a non-nil error for any truncation
// inside a record or a field that didn't consume its whole value.
func (u *Unpacker) ReadNext() (bool, error) {
	tag, err := u.reader.ReadUint32()
	if err != nil {
		// Only a read that found no bytes at all is a clean end of buffer; a
		// partial tag is truncation.
		if agenterr.Is(err, agenterr.DecodeEOS) && errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}

	length, err := u.reader.ReadUint32()
	if err != nil {
		return false, err
	}

	valueBytes, err := u.reader.ReadBytes(int(length))
	if err != nil {
		return false, err
	}

	field, known := u.lang[tag]
	if !known {
		return true, nil
	}

	counting := &countingInput{buf: bytestream.NewMemoryInputStream(valueBytes)}
	valueReader := bytestream.NewReader(counting)
	if err := field.Decode(valueReader, length); err != nil {
		return false, err
	}
	if counting.read != len(valueBytes) {
		return false, agenterr.New(agenterr.DecodeInvalid, "TLV value not fully consumed")
	}
	return true, nil
}

// countingInput tracks how many bytes a Field.Decode call actually reads
// from its length-bounded value slice, so the unpacker can enforce that
// the field consumed exactly the declared length.
type countingInput struct {
	buf  *bytestream.MemoryInputStream
	read int
}

func (c *countingInput) Read(p []byte) (int, error) {
	n, err := c.buf.Read(p)
	c.read += n
	return n, err
}

func (c *countingInput) Close() error { return nil }

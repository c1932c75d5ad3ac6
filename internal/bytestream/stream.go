// Package bytestream provides the little-endian framed read/write
// primitives every wire type in this module is built on: a stream pair
// (InputStream/OutputStream) plus scalar and length-prefixed vector codecs
// layered on top.
package bytestream

import (
	"bytes"
	"io"
)

// InputStream is anything bytes can be pulled from, with an explicit close
// that must unblock any in-flight Read.
type InputStream interface {
	io.Reader
	io.Closer
}

// OutputStream is anything bytes can be pushed to.
type OutputStream interface {
	io.Writer
}

// MemoryInputStream adapts a byte slice to InputStream. Close is a no-op:
// reads from a slice never block, so there is nothing to unblock.
type MemoryInputStream struct {
	r *bytes.Reader
}

// NewMemoryInputStream wraps buf for sequential reading.
func NewMemoryInputStream(buf []byte) *MemoryInputStream {
	return &MemoryInputStream{r: bytes.NewReader(buf)}
}

func (m *MemoryInputStream) Read(p []byte) (int, error) { return m.r.Read(p) }
func (m *MemoryInputStream) Close() error                { return nil }

// MemoryOutputStream accumulates written bytes into a growable buffer.
type MemoryOutputStream struct {
	buf bytes.Buffer
}

// NewMemoryOutputStream returns an empty, ready to use MemoryOutputStream.
func NewMemoryOutputStream() *MemoryOutputStream { return &MemoryOutputStream{} }

func (m *MemoryOutputStream) Write(p []byte) (int, error) { return m.buf.Write(p) }

// Bytes returns the accumulated content. The returned slice aliases the
// stream's internal buffer and must not be retained across further writes.
func (m *MemoryOutputStream) Bytes() []byte { return m.buf.Bytes() }

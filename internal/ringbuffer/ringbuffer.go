// Package ringbuffer implements a fixed-capacity byte ring with blocking
// and non-blocking read/write, used to decouple probe injection input from
// its output compressed stream.
package ringbuffer

import "sync"

// RingBuffer guarantees overflow/underflow never happen: writers never
// overrun unread data, readers never read unwritten data.
type RingBuffer struct {
	mu           sync.Mutex
	producerCond *sync.Cond
	consumerCond *sync.Cond

	buf  []byte
	open bool

	producerPos uint64
	consumerPos uint64
}

// New allocates a ring buffer of the given capacity in bytes. It starts
// closed; call Open to allow production.
func New(size int) *RingBuffer {
	rb := &RingBuffer{buf: make([]byte, size)}
	rb.producerCond = sync.NewCond(&rb.mu)
	rb.consumerCond = sync.NewCond(&rb.mu)
	return rb
}

// Open allows production.
func (rb *RingBuffer) Open() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.open = true
}

// Close stops production; consumption remains possible until the buffer
// empties. Any blocked WriteBlocking/ReadBlocking caller is woken.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.open {
		rb.open = false
		rb.producerCond.Broadcast()
		rb.consumerCond.Broadcast()
	}
}

// WriteNonBlocking writes as much of content as fits and returns the
// count written; a short count means the buffer is full.
func (rb *RingBuffer) WriteNonBlocking(content []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if !rb.open {
		return 0
	}
	toWrite := min(rb.availableProduction(), len(content))
	rb.writeLocked(content[:toWrite])
	return toWrite
}

// WriteBlocking blocks until all of content is written, or the buffer
// closes first (returns false in that case).
func (rb *RingBuffer) WriteBlocking(content []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	pos := 0
	for rb.open && pos < len(content) {
		toWrite := min(rb.availableProduction(), len(content)-pos)
		if toWrite == 0 {
			rb.producerCond.Wait()
			continue
		}
		rb.writeLocked(content[pos : pos+toWrite])
		pos += toWrite
	}
	return rb.open
}

// ReadNonBlocking reads as much as is available, up to len(target), and
// returns the count read; a short count means the buffer is empty.
func (rb *RingBuffer) ReadNonBlocking(target []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	toRead := min(rb.availableConsumption(), len(target))
	rb.readLocked(target[:toRead])
	return toRead
}

// ReadBlocking blocks until target is filled, or the buffer is closed and
// drained first (returns false in that case).
func (rb *RingBuffer) ReadBlocking(target []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	pos := 0
	for pos < len(target) && !rb.closedForConsumer() {
		toRead := min(rb.availableConsumption(), len(target)-pos)
		if toRead == 0 {
			rb.consumerCond.Wait()
			continue
		}
		rb.readLocked(target[pos : pos+toRead])
		pos += toRead
	}
	return pos == len(target)
}

// UsedSize returns the number of unread bytes currently stored.
func (rb *RingBuffer) UsedSize() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableConsumption()
}

// AvailableSize returns the number of bytes free for writing.
func (rb *RingBuffer) AvailableSize() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableProduction()
}

// IsOpen reports whether production is currently allowed.
func (rb *RingBuffer) IsOpen() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.open
}

// Clear resets the buffer to empty without changing its open state.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.producerPos = 0
	rb.consumerPos = 0
}

func (rb *RingBuffer) availableConsumption() int {
	return int(rb.producerPos - rb.consumerPos)
}

func (rb *RingBuffer) availableProduction() int {
	return len(rb.buf) - rb.availableConsumption()
}

// closedForConsumer is true once production has stopped and every written
// byte has been consumed: the ring buffer still lets a consumer finish
// draining it after close.
func (rb *RingBuffer) closedForConsumer() bool {
	return !rb.open && rb.availableConsumption() == 0
}

func (rb *RingBuffer) writeLocked(source []byte) {
	n := len(rb.buf)
	producerIdx := int(rb.producerPos % uint64(n))
	if producerIdx+len(source) <= n {
		copy(rb.buf[producerIdx:], source)
	} else {
		firstPart := n - producerIdx
		copy(rb.buf[producerIdx:], source[:firstPart])
		copy(rb.buf[:len(source)-firstPart], source[firstPart:])
	}
	rb.producerPos += uint64(len(source))
	rb.consumerCond.Signal()
}

func (rb *RingBuffer) readLocked(dest []byte) {
	n := len(rb.buf)
	consumerIdx := int(rb.consumerPos % uint64(n))
	if consumerIdx+len(dest) <= n {
		copy(dest, rb.buf[consumerIdx:consumerIdx+len(dest)])
	} else {
		firstPart := n - consumerIdx
		copy(dest[:firstPart], rb.buf[consumerIdx:])
		copy(dest[firstPart:], rb.buf[:len(dest)-firstPart])
	}
	rb.consumerPos += uint64(len(dest))
	rb.producerCond.Signal()
}

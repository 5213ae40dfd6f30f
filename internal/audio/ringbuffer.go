package audio

import (
	"sync/atomic"
)

// RingBuffer is a single-producer/single-consumer circular buffer of frames.
//
// The write and read cursors only ever grow; the slot for a cursor is
// cursor & mask. Push never blocks and never fails: when the producer laps
// the consumer the oldest unread frames are overwritten and later counted
// by Dropped.
type RingBuffer struct {
	buf  []Frame
	mask uint64

	write atomic.Uint64
	read  atomic.Uint64

	dropped atomic.Uint64
}

// CapacityFor returns the number of frames needed to hold bufferMs
// milliseconds of audio at mixRate, before power-of-two rounding.
func CapacityFor(bufferMs, mixRate int) int {
	return int(float64(bufferMs) / 1000.0 * float64(mixRate))
}

// NewRingBuffer creates a ring buffer holding at least capacity frames.
// The real capacity is the smallest power of two >= capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &RingBuffer{
		buf:  make([]Frame, size),
		mask: uint64(size - 1),
	}
}

// Capacity returns the number of slots in the buffer.
func (rb *RingBuffer) Capacity() int {
	return len(rb.buf)
}

// Push appends frames. Producer side only.
func (rb *RingBuffer) Push(frames []Frame) {
	w := rb.write.Load()
	for i := range frames {
		rb.buf[w&rb.mask] = frames[i]
		w++
	}
	rb.write.Store(w)
}

// Available returns how many unread frames can still be recovered.
func (rb *RingBuffer) Available() int {
	pending := rb.write.Load() - rb.read.Load()
	if pending > uint64(len(rb.buf)) {
		return len(rb.buf)
	}
	return int(pending)
}

// Read copies up to len(dst) unread frames into dst in order and advances
// the read cursor. Consumer side only.
func (rb *RingBuffer) Read(dst []Frame) int {
	size := uint64(len(rb.buf))
	w := rb.write.Load()
	r := rb.read.Load()

	if w-r > size {
		rb.dropped.Add(w - r - size)
		r = w - size
	}

	n := w - r
	if n > uint64(len(dst)) {
		n = uint64(len(dst))
	}
	if n == 0 {
		rb.read.Store(r)
		return 0
	}

	for i := uint64(0); i < n; i++ {
		dst[i] = rb.buf[(r+i)&rb.mask]
	}

	// The producer may have lapped us while copying; frames at the front of
	// dst could then belong to a newer pass and are discarded.
	if w2 := rb.write.Load(); w2-r > size {
		lost := w2 - size - r
		if lost >= n {
			rb.dropped.Add(n)
			rb.read.Store(r + n)
			return 0
		}
		rb.dropped.Add(lost)
		copy(dst, dst[lost:n])
		n -= lost
		r += lost
	}

	rb.read.Store(r + n)
	return int(n)
}

// Dropped returns the total number of frames lost to overruns.
func (rb *RingBuffer) Dropped() uint64 {
	return rb.dropped.Load()
}

// Written returns the write cursor, i.e. the number of frames ever pushed.
func (rb *RingBuffer) Written() uint64 {
	return rb.write.Load()
}

// Reset rewinds both cursors. It must only be called while neither the
// producer nor the consumer is running.
func (rb *RingBuffer) Reset() {
	rb.write.Store(0)
	rb.read.Store(0)
	rb.dropped.Store(0)
}

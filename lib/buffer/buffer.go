package buffer

import (
	"sync/atomic"

	"github.com/blocktrron/fastd/lib/util/logger"
)

var log = logger.GetFastdLogger()

var live atomic.Int64

// Buffer is a packet buffer with reserved head space so lower layers can
// prepend headers without copying. The zero value is not usable; allocate
// with New.
type Buffer struct {
	data  []byte
	start int
	freed bool
}

// New allocates a buffer holding length payload bytes preceded by headSpace
// reserved bytes.
func New(length, headSpace int) *Buffer {
	live.Add(1)
	return &Buffer{
		data:  make([]byte, headSpace+length),
		start: headSpace,
	}
}

// FromBytes allocates a buffer with headSpace reserved bytes and copies b
// after them.
func FromBytes(b []byte, headSpace int) *Buffer {
	buf := New(len(b), headSpace)
	copy(buf.data[buf.start:], b)
	return buf
}

// Bytes returns the payload region. The slice is invalidated by PushHead,
// PullHead and Free.
func (b *Buffer) Bytes() []byte {
	b.check()
	return b.data[b.start:]
}

// Len returns the payload length.
func (b *Buffer) Len() int {
	b.check()
	return len(b.data) - b.start
}

// HeadSpace returns the number of reserved bytes left in front of the payload.
func (b *Buffer) HeadSpace() int {
	b.check()
	return b.start
}

// PushHead grows the payload by n bytes at the front, consuming head space.
func (b *Buffer) PushHead(n int) {
	b.check()
	if n > b.start {
		log.WithFields(logger.Fields{
			"at":   "(Buffer) PushHead",
			"n":    n,
			"have": b.start,
		}).Error("insufficient head space")
		panic("buffer: insufficient head space")
	}
	b.start -= n
}

// PullHead shrinks the payload by n bytes at the front, returning the bytes
// to head space.
func (b *Buffer) PullHead(n int) {
	b.check()
	if n > b.Len() {
		panic("buffer: pull past end of payload")
	}
	b.start += n
}

// Free releases the buffer. The buffer must not be used afterwards.
func (b *Buffer) Free() {
	b.check()
	b.freed = true
	for i := range b.data {
		b.data[i] = 0
	}
	live.Add(-1)
}

func (b *Buffer) check() {
	if b == nil || b.freed {
		panic("buffer: use after free")
	}
}

// Live returns the number of allocated, not yet freed buffers. Used by tests
// to assert that every path frees or hands off each buffer exactly once.
func Live() int64 {
	return live.Load()
}

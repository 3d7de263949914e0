package replication

import (
	"sync/atomic"

	"boidarena/internal/simcore"
)

// cacheLinePad keeps the producer and consumer cursors on separate cache
// lines so a WebSocket reader hammering TryPush never invalidates the
// simulation's Drain cursor (64 bytes on x86-64).
type cacheLinePad [64]byte

// InputQueue is the single-producer/single-consumer ring between one
// connection's WebSocket reader goroutine and the simulation's Input stage.
// Exactly one goroutine pushes (the socket's read loop) and exactly one
// drains (the tick), so plain atomic loads/stores suffice — no CAS, no
// locks, and neither side ever blocks the other.
//
// Overflow policy: a client pushing faster than the simulation drains loses
// the newest input rather than stalling the reader; the drop is counted so
// the transport layer can treat a chronically overflowing connection as
// misbehaving.
type InputQueue struct {
	_    cacheLinePad
	head uint64 // producer cursor, written by TryPush only
	_    cacheLinePad
	tail uint64 // consumer cursor, written by Drain only
	_    cacheLinePad

	mask    uint64
	buf     []simcore.Input
	dropped uint64
}

// NewInputQueue creates a queue holding up to capacity inputs, rounded up
// to a power of two.
func NewInputQueue(capacity int) *InputQueue {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &InputQueue{
		mask: uint64(size - 1),
		buf:  make([]simcore.Input, size),
	}
}

// TryPush enqueues one input from the reader goroutine. Returns false (and
// counts the drop) when the ring is full.
func (q *InputQueue) TryPush(in simcore.Input) bool {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head-tail > q.mask {
		atomic.AddUint64(&q.dropped, 1)
		return false
	}
	q.buf[head&q.mask] = in
	atomic.StoreUint64(&q.head, head+1)
	return true
}

// Drain appends every queued input to dst, oldest first, and returns dst.
// Called once per physics tick from the simulation goroutine; it consumes
// at most the inputs present when the call started, so a racing TryPush
// lands in the next tick instead of extending this one.
func (q *InputQueue) Drain(dst []simcore.Input) []simcore.Input {
	tail := atomic.LoadUint64(&q.tail)
	head := atomic.LoadUint64(&q.head)
	for ; tail < head; tail++ {
		dst = append(dst, q.buf[tail&q.mask])
	}
	atomic.StoreUint64(&q.tail, tail)
	return dst
}

// Len returns the approximate number of queued inputs.
func (q *InputQueue) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Dropped returns how many inputs overflowed the ring since creation.
func (q *InputQueue) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

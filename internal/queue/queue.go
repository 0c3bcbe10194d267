// Package queue implements the typed FIFO message channels that connect
// the reader, encoder, and writer stages of the compress pipeline. Each
// queue carries a tagged union of a block buffer or a one-way shutdown
// signal, generalizing the teacher's per-index result channels
// (internal/indexer.go's channels[i] chan []common.IndexRecord) from
// batches of CSV records to whole encode buffers.
package queue

import "github.com/pxztool/pxz/internal/block"

// Msg is the tagged union carried by a Queue: either a Block payload or a
// one-way Stop signal with no payload.
type Msg struct {
	Buf  *block.Buffer
	Stop bool
}

// Queue is an unbounded-in-practice (but capacity-bounded by the pool
// size) FIFO of Msg values with blocking Pop. Push never blocks because
// the channel is always sized to comfortably exceed the number of
// in-flight messages the pipeline can produce (see NewPool).
type Queue struct {
	ch chan Msg
}

// NewQueue creates a queue buffered to hold capacity messages without
// blocking a sender.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Msg, capacity)}
}

// Push enqueues msg. It never fails and never blocks as long as the
// number of outstanding messages stays within the queue's capacity, which
// the pipeline guarantees by construction (the pool owns a fixed number
// of buffers).
func (q *Queue) Push(msg Msg) {
	q.ch <- msg
}

// PushBlock is a convenience wrapper for pushing a buffer.
func (q *Queue) PushBlock(buf *block.Buffer) {
	q.Push(Msg{Buf: buf})
}

// PushStop is a convenience wrapper for pushing a shutdown signal.
func (q *Queue) PushStop() {
	q.Push(Msg{Stop: true})
}

// Pop blocks until a message is available and returns it.
func (q *Queue) Pop() Msg {
	return <-q.ch
}

// Drain releases any buffers still queued at teardown. Buffers are plain
// Go values, so this is just a matter of letting the channel and its
// remaining messages become unreachable for the garbage collector.
func (q *Queue) Drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

// NewPool pre-allocates 2*workers+4 buffers sized for blockIn bytes of
// input and blockOut bytes of worst-case compressed output, and returns a
// freshly created queue seeded with all of them — the pool is not a
// distinct object, it lives inside the read queue (spec §4.A).
func NewPool(workers, blockIn, blockOut int) *Queue {
	n := 2*workers + 4
	q := NewQueue(n)
	for i := 0; i < n; i++ {
		q.PushBlock(block.New(blockIn, blockOut))
	}
	return q
}

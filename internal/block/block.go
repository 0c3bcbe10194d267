// Package block defines the unit of work shuttled through the compress
// pipeline: a fat I/O buffer carrying one LZMA2 block's worth of
// uncompressed input and, once encoded, its compressed output.
package block

import "github.com/pxztool/pxz/internal/xzformat"

// Buffer is the unit of work passed between the reader, encoder workers,
// and writer stages. Exactly one goroutine owns a Buffer at any instant;
// ownership transfers on channel send/receive, never by shared mutation.
type Buffer struct {
	// Seq is the dense, monotonically increasing sequence number assigned
	// by the reader. The writer uses it to restore on-disk order.
	Seq uint64

	// Input holds up to cap(Input) bytes of uncompressed tar stream.
	// InSize is the number of valid bytes currently in Input.
	Input  []byte
	InSize int

	// Output holds the encoded block (header + compressed payload +
	// integrity check) after an encoder has processed the buffer.
	// OutSize is the number of valid bytes currently in Output.
	Output  []byte
	OutSize int

	// Desc is populated by the encoder after compression and consumed by
	// the writer to append a block-index record.
	Desc xzformat.BlockDesc
}

// Reset clears a buffer for reuse without reallocating its backing arrays.
func (b *Buffer) Reset(seq uint64) {
	b.Seq = seq
	b.InSize = 0
	b.OutSize = 0
	b.Desc = xzformat.BlockDesc{}
}

// New allocates a Buffer sized for blockIn bytes of input and blockOut
// bytes of worst-case compressed output.
func New(blockIn, blockOut int) *Buffer {
	return &Buffer{
		Input:  make([]byte, blockIn),
		Output: make([]byte, blockOut),
	}
}

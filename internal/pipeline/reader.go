package pipeline

import (
	"io"

	"github.com/pxztool/pxz/internal/block"
	"github.com/pxztool/pxz/internal/fileindex"
	"github.com/pxztool/pxz/internal/queue"
	"github.com/pxztool/pxz/internal/tarsource"
)

// readerState bundles everything the reader goroutine owns, generalizing
// the spec's C-heritage process globals (gBlockNum, gTotalRead, the
// multi-header flag) into one struct passed by reference instead of
// living as package-level state.
type readerState struct {
	readQ   *queue.Queue
	encodeQ *queue.Queue

	nextSeq   uint64
	totalRead uint64

	cur *block.Buffer
}

// ChunkSize is the write granularity the writer uses when emitting the
// file-index block and the encoded block index during the epilogue. The
// reader does not use it: fillReader reads as many bytes as archive/tar
// asks for in each call.
const ChunkSize = 64 * 1024

// runReader drives the tar event source to completion, filling pool
// buffers from in, pushing full buffers onto encodeQ, and recording
// file-index entries as tar headers are observed. On EOF it flushes the
// tail buffer, appends the sentinel file-index entry, sends one Stop per
// encoder worker, and returns the total uncompressed byte count.
func runReader(in io.Reader, readQ, encodeQ *queue.Queue, workers int, list *fileindex.List) (uint64, error) {
	rs := &readerState{
		readQ:   readQ,
		encodeQ: encodeQ,
	}

	fr := &fillReader{src: in, rs: rs}
	src := tarsource.New(fr, &rs.totalRead, list)

	for {
		err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rs.totalRead, err
		}
	}

	// Flush the tail buffer (if any bytes were accumulated but the block
	// never filled) and finalize the file-index list.
	if rs.cur != nil {
		if rs.cur.InSize > 0 {
			rs.encodeQ.PushBlock(rs.cur)
		} else {
			rs.readQ.PushBlock(rs.cur)
		}
		rs.cur = nil
	}
	list.Close(rs.totalRead)

	for i := 0; i < workers; i++ {
		rs.encodeQ.PushStop()
	}

	return rs.totalRead, nil
}

// fillReader is the pull-style adapter archive/tar reads through. Each
// Read call pulls from the underlying input file and simultaneously
// spills the same bytes into the reader's current pool buffer, pushing it
// to encodeQ and acquiring a fresh one from readQ whenever it fills —
// the Go-native expression of the spec's "inner read callback" (§4.C).
type fillReader struct {
	src io.Reader
	rs  *readerState
}

func (f *fillReader) Read(p []byte) (int, error) {
	n, err := f.src.Read(p)
	if n > 0 {
		f.rs.totalRead += uint64(n)
		f.feed(p[:n])
	}
	return n, err
}

// feed copies data into the current buffer, rotating buffers through
// readQ/encodeQ as each one fills to blockIn capacity.
func (f *fillReader) feed(data []byte) {
	rs := f.rs
	for len(data) > 0 {
		if rs.cur == nil {
			msg := rs.readQ.Pop()
			rs.cur = msg.Buf
			rs.cur.Reset(rs.nextSeq)
			rs.nextSeq++
		}
		room := len(rs.cur.Input) - rs.cur.InSize
		k := room
		if k > len(data) {
			k = len(data)
		}
		copy(rs.cur.Input[rs.cur.InSize:], data[:k])
		rs.cur.InSize += k
		data = data[k:]
		if rs.cur.InSize == len(rs.cur.Input) {
			rs.encodeQ.PushBlock(rs.cur)
			rs.cur = nil
		}
	}
}

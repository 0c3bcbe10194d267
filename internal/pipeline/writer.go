package pipeline

import (
	"io"

	"github.com/pxztool/pxz/internal/block"
	"github.com/pxztool/pxz/internal/codec"
	"github.com/pxztool/pxz/internal/fileindex"
	"github.com/pxztool/pxz/internal/queue"
	"github.com/pxztool/pxz/internal/xzformat"
)

// writerState bundles everything the writer goroutine owns: the output
// file, the block index, and the reorder buffer of completed-but-not-yet
// -written buffers. It generalizes the spec's writer-side process globals
// (the block index, the `ibs` intrusive list) into one struct. pending is
// kept entirely in memory as a slice, never spilled to disk: its length
// is bounded by the pool's fixed cardinality (2N+4), so it can never grow
// unbounded (spec §4.E).
type writerState struct {
	out     io.Writer
	readQ   *queue.Queue
	index   xzformat.Index
	pending []*block.Buffer // reorder buffer, bounded by pool size (2N+4)

	nextExpectedSeq uint64
	check           xzformat.CheckKind
	dictSize        int
}

// runWriter is the writer/reorder/indexer stage: the serial consumer that
// restores sequence order, writes data blocks to out, and finishes the
// stream with the file-index block, the encoded block index, and the
// footer.
func runWriter(out io.Writer, writeQ, readQ *queue.Queue, check xzformat.CheckKind, dictSize int, list *fileindex.List) error {
	ws := &writerState{
		out:      out,
		readQ:    readQ,
		check:    check,
		dictSize: dictSize,
	}

	if _, err := out.Write(xzformat.EncodeStreamHeader(check)); err != nil {
		return err
	}

	for {
		msg := writeQ.Pop()
		if msg.Stop {
			break
		}
		ws.pending = append(ws.pending, msg.Buf)
		if err := ws.drain(); err != nil {
			return err
		}
	}

	return ws.epilogue(list)
}

// drain repeatedly scans pending for the buffer whose Seq equals
// nextExpectedSeq, writing it to disk, appending a block-index record,
// and returning it to readQ, until a full scan finds nothing to emit. The
// linear scan is cheap because pending's length is bounded by the pool
// size (spec §4.E).
func (ws *writerState) drain() error {
	for {
		idx := -1
		for i, buf := range ws.pending {
			if buf.Seq == ws.nextExpectedSeq {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil
		}
		buf := ws.pending[idx]
		ws.pending = append(ws.pending[:idx], ws.pending[idx+1:]...)

		if _, err := ws.out.Write(buf.Output[:buf.OutSize]); err != nil {
			return err
		}
		ws.index.Append(buf.Desc.UnpaddedSize, buf.Desc.UncompressedSize)
		ws.nextExpectedSeq++
		ws.readQ.PushBlock(buf)
	}
}

// epilogue runs after the writer observes Stop: it encodes and emits the
// file-index block, streams out the block index, and writes the stream
// footer. At entry, nextExpectedSeq == the reader's final sequence count
// and pending is empty (spec §4.E invariant).
func (ws *writerState) epilogue(list *fileindex.List) error {
	payload := list.Encode()

	compressed, err := codec.EncodeBlock(payload, ws.dictSize)
	if err != nil {
		return err
	}

	desc := xzformat.BlockDesc{
		Check:            ws.check,
		DictSize:         ws.dictSize,
		CompressedSize:   int64(len(compressed)),
		UncompressedSize: int64(len(payload)),
	}
	header := xzformat.EncodeBlockHeader(&desc)
	checkBytes := computeCheck(ws.check, payload)

	unpadded := len(header) + len(compressed) + len(checkBytes)
	desc.UnpaddedSize = int64(unpadded)

	if err := ws.writeChunked(header); err != nil {
		return err
	}
	if err := ws.writeChunked(compressed); err != nil {
		return err
	}
	if err := ws.writeChunked(checkBytes); err != nil {
		return err
	}
	if err := ws.writePadding(unpadded); err != nil {
		return err
	}

	ws.index.Append(desc.UnpaddedSize, desc.UncompressedSize)

	encodedIndex := ws.index.Encode()
	if err := ws.writeChunked(encodedIndex); err != nil {
		return err
	}

	footer := xzformat.EncodeStreamFooter(ws.check, uint32(len(encodedIndex)))
	if _, err := ws.out.Write(footer); err != nil {
		return err
	}

	return nil
}

// writeChunked writes data to the output file in ChunkSize slices,
// matching the spec's requirement that epilogue emission stream through a
// fixed I/O granularity rather than in one giant write.
func (ws *writerState) writeChunked(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > ChunkSize {
			n = ChunkSize
		}
		if _, err := ws.out.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (ws *writerState) writePadding(unpaddedSize int) error {
	pad := (4 - unpaddedSize%4) % 4
	if pad == 0 {
		return nil
	}
	_, err := ws.out.Write(make([]byte, pad))
	return err
}

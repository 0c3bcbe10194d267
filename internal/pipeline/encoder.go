package pipeline

import (
	"crypto/sha256"
	"hash/crc32"
	"hash/crc64"

	"github.com/pxztool/pxz/internal/block"
	"github.com/pxztool/pxz/internal/codec"
	"github.com/pxztool/pxz/internal/queue"
	"github.com/pxztool/pxz/internal/xzformat"
)

// runEncoder is one of N parallel encoder workers. It pops buffers from
// encodeQ until it observes a Stop message, compressing each buffer's
// input into its output region and pushing it to writeQ. Workers never
// coordinate with each other and never touch the block index or the
// file-index list.
func runEncoder(encodeQ, writeQ *queue.Queue, check xzformat.CheckKind, dictSize int) error {
	for {
		msg := encodeQ.Pop()
		if msg.Stop {
			return nil
		}
		buf := msg.Buf
		if err := encodeOne(buf, check, dictSize); err != nil {
			return err
		}
		writeQ.PushBlock(buf)
	}
}

// encodeOne compresses buf.Input[:buf.InSize] into buf.Output, filling in
// buf.Desc with the sizes the writer needs for its block-index record.
// This mirrors the spec's four-step encoder loop (§4.D): initialize the
// descriptor, compress the payload, append the integrity check, record
// final sizes.
func encodeOne(buf *block.Buffer, check xzformat.CheckKind, dictSize int) error {
	payload, err := codec.EncodeBlock(buf.Input[:buf.InSize], dictSize)
	if err != nil {
		return err
	}

	buf.Desc = xzformat.BlockDesc{
		Check:            check,
		DictSize:         dictSize,
		CompressedSize:   int64(len(payload)),
		UncompressedSize: int64(buf.InSize),
	}

	header := xzformat.EncodeBlockHeader(&buf.Desc)
	checkBytes := computeCheck(check, buf.Input[:buf.InSize])

	unpadded := len(header) + len(payload) + len(checkBytes)
	total := unpadded
	for total%4 != 0 {
		total++
	}

	if err := ensureCapacity(buf, total); err != nil {
		return err
	}

	n := copy(buf.Output, header)
	n += copy(buf.Output[n:], payload)
	n += copy(buf.Output[n:], checkBytes)
	for n < total {
		buf.Output[n] = 0
		n++
	}
	buf.OutSize = n
	buf.Desc.UnpaddedSize = int64(unpadded)

	return nil
}

// ensureCapacity grows buf.Output in place if the encoded block (a rare
// outcome for incompressible input under the worst-case BlockOut sizing)
// would otherwise overflow the pre-allocated output region.
func ensureCapacity(buf *block.Buffer, need int) error {
	if cap(buf.Output) >= need {
		buf.Output = buf.Output[:cap(buf.Output)]
		return nil
	}
	grown := make([]byte, need)
	buf.Output = grown
	return nil
}

// computeCheck computes the integrity check bytes over the original
// uncompressed payload, per the check kind declared in the stream header.
func computeCheck(kind xzformat.CheckKind, data []byte) []byte {
	switch kind {
	case xzformat.CheckNone:
		return nil
	case xzformat.CheckCRC32:
		sum := crc32.ChecksumIEEE(data)
		return []byte{byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24)}
	case xzformat.CheckCRC64:
		tab := crc64.MakeTable(crc64.ECMA)
		sum := crc64.Checksum(data, tab)
		out := make([]byte, 8)
		for i := 0; i < 8; i++ {
			out[i] = byte(sum >> (8 * i))
		}
		return out
	case xzformat.CheckSHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	default:
		return nil
	}
}

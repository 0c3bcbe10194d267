// Package xzformat implements the binary container framing for the XZ
// stream format: stream header/footer, block headers, and the block
// index. It treats LZMA2 compression itself as a black box (see
// internal/codec) and concerns itself only with the bit-exact layout
// around that payload — the "container-format edges" the compressor must
// reproduce exactly.
//
// Field layouts are modeled on the XZ Format specification (magic bytes,
// header CRC32, variable-length integers, 4-byte alignment padding), but
// the result is not byte-compatible with the xz tool: the block header's
// size byte stores size/4 rather than size/4-1, the encoded index has no
// leading indicator byte, and internal/pipeline places a block's padding
// after its integrity check instead of before it. Streams are readable by
// internal/lister, which uses the same layout.
package xzformat

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Magic is the 6-byte magic sequence that opens every XZ stream.
var Magic = [6]byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// FooterMagic is the 2-byte magic sequence that closes the stream footer.
var FooterMagic = [2]byte{'Y', 'Z'}

// CheckKind identifies the integrity check algorithm used for every block
// and declared in both the stream header and footer.
type CheckKind byte

const (
	CheckNone   CheckKind = 0x00
	CheckCRC32  CheckKind = 0x01
	CheckCRC64  CheckKind = 0x04
	CheckSHA256 CheckKind = 0x0A
)

// Size returns the on-disk size in bytes of the integrity check trailing
// each block's compressed payload.
func (k CheckKind) Size() int {
	switch k {
	case CheckNone:
		return 0
	case CheckCRC32:
		return 4
	case CheckCRC64:
		return 8
	case CheckSHA256:
		return 32
	default:
		return 0
	}
}

// StreamFlags is the 2-byte flags field carried in both the header and
// footer: byte 0 is reserved (always 0), byte 1 encodes the check kind in
// its low nibble.
func streamFlags(check CheckKind) [2]byte {
	return [2]byte{0x00, byte(check)}
}

// EncodeStreamHeader writes the 12-byte stream header: magic, flags,
// CRC32 of the flags field.
func EncodeStreamHeader(check CheckKind) []byte {
	buf := make([]byte, 12)
	copy(buf[0:6], Magic[:])
	flags := streamFlags(check)
	copy(buf[6:8], flags[:])
	crc := crc32.ChecksumIEEE(flags[:])
	binary.LittleEndian.PutUint32(buf[8:12], crc)
	return buf
}

// DecodeStreamHeader parses and validates a 12-byte stream header,
// returning the declared check kind.
func DecodeStreamHeader(buf []byte) (CheckKind, error) {
	if len(buf) != 12 {
		return 0, errors.New("xzformat: stream header must be 12 bytes")
	}
	if string(buf[0:6]) != string(Magic[:]) {
		return 0, errors.New("xzformat: bad stream magic")
	}
	flags := buf[6:8]
	if flags[0] != 0 {
		return 0, errors.New("xzformat: reserved flag byte must be zero")
	}
	wantCRC := crc32.ChecksumIEEE(flags)
	gotCRC := binary.LittleEndian.Uint32(buf[8:12])
	if wantCRC != gotCRC {
		return 0, errors.New("xzformat: stream header CRC mismatch")
	}
	return CheckKind(flags[1]), nil
}

// EncodeStreamFooter writes the 12-byte stream footer: CRC32 of the next
// two fields, backward size (encoded index length in 4-byte units minus
// one), flags (matching the header), footer magic.
func EncodeStreamFooter(check CheckKind, backwardSize uint32) []byte {
	buf := make([]byte, 12)
	// backwardSize is the real byte length of the encoded index; on disk
	// it is stored as (realSize/4 - 1).
	encoded := backwardSize/4 - 1
	binary.LittleEndian.PutUint32(buf[4:8], encoded)
	flags := streamFlags(check)
	copy(buf[8:10], flags[:])
	crc := crc32.ChecksumIEEE(buf[4:10])
	binary.LittleEndian.PutUint32(buf[0:4], crc)
	copy(buf[10:12], FooterMagic[:])
	return buf
}

// DecodeStreamFooter parses a 12-byte stream footer, returning the
// declared check kind and the byte length of the preceding encoded index.
func DecodeStreamFooter(buf []byte) (check CheckKind, indexSize uint32, err error) {
	if len(buf) != 12 {
		return 0, 0, errors.New("xzformat: stream footer must be 12 bytes")
	}
	if string(buf[10:12]) != string(FooterMagic[:]) {
		return 0, 0, errors.New("xzformat: bad footer magic")
	}
	wantCRC := binary.LittleEndian.Uint32(buf[0:4])
	gotCRC := crc32.ChecksumIEEE(buf[4:10])
	if wantCRC != gotCRC {
		return 0, 0, errors.New("xzformat: stream footer CRC mismatch")
	}
	encoded := binary.LittleEndian.Uint32(buf[4:8])
	indexSize = (encoded + 1) * 4
	flags := buf[8:10]
	if flags[0] != 0 {
		return 0, 0, errors.New("xzformat: reserved flag byte must be zero")
	}
	return CheckKind(flags[1]), indexSize, nil
}

// BlockDesc describes one encoded block: its filter configuration, check
// kind, and sizes. The encoder populates CompressedSize, UncompressedSize,
// and UnpaddedSize after compression; the writer consumes them to append a
// block-index record.
type BlockDesc struct {
	Check            CheckKind
	DictSize         int
	CompressedSize   int64
	UncompressedSize int64
	// UnpaddedSize is the on-disk size of the block (header + compressed
	// payload + check), excluding alignment padding to a 4-byte boundary.
	UnpaddedSize int64
}

// HeaderSize returns the size in bytes of a block header for this
// descriptor, rounded up to a 4-byte boundary as required by the format.
func (d *BlockDesc) HeaderSize() int {
	// 1 (size byte) + 1 (flags byte) + 1 filter (id vli + size vli, both
	// single-byte for LZMA2's fixed 1-byte filter properties) + CRC32.
	raw := 1 + 1 + 1 + 1 + 1 + 4 // sizeByte, flags, filterID, filterPropsSize, dictByte, crc
	return align4(raw)
}

func align4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// EncodeBlockHeader writes a block header for desc. The header never
// carries explicit compressed/uncompressed size fields (those are
// reserved for indexed seeking, which this format handles via the
// separate block index instead), so it does not need the payload length.
func EncodeBlockHeader(desc *BlockDesc) []byte {
	size := desc.HeaderSize()
	buf := make([]byte, size)
	buf[0] = byte(size / 4)
	buf[1] = 0x00 // flags: bits 0-1 = 0 (one filter), bits 6-7 clear (no size fields)
	buf[2] = 0x21 // LZMA2 filter ID (low byte of the single-byte VLI encoding)
	buf[3] = 0x01 // filter properties size: 1 byte
	buf[4] = dictSizeByte(desc.DictSize)
	// Remaining bytes up to the CRC are reserved padding, already zeroed.
	crc := crc32.ChecksumIEEE(buf[:size-4])
	binary.LittleEndian.PutUint32(buf[size-4:size], crc)
	return buf
}

// DecodeBlockHeader parses a block header, returning the header's total
// size and the dictionary size decoded from the LZMA2 filter's
// dictionary-size byte.
func DecodeBlockHeader(buf []byte) (headerSize int, dictSize int, err error) {
	if len(buf) < 8 {
		return 0, 0, errors.New("xzformat: block header too short")
	}
	size := int(buf[0]) * 4
	if size == 0 || size > len(buf) {
		return 0, 0, errors.New("xzformat: invalid block header size")
	}
	crc := crc32.ChecksumIEEE(buf[:size-4])
	want := binary.LittleEndian.Uint32(buf[size-4 : size])
	if crc != want {
		return 0, 0, errors.New("xzformat: block header CRC mismatch")
	}
	if buf[2] != 0x21 {
		return 0, 0, errors.New("xzformat: unsupported filter ID")
	}
	return size, decodeDictSizeByte(buf[4]), nil
}

// dictSizeByte encodes a dictionary size in the single-byte form LZMA2
// uses in its filter properties: byte b < 40 stands for (2 | (b&1)) <<
// (b/2 + 11), and 40 for 0xFFFFFFFF. It returns the smallest byte whose
// size is at least dictSize.
func dictSizeByte(dictSize int) byte {
	for b := 0; b <= 40; b++ {
		if decodeDictSizeByte(byte(b)) >= dictSize {
			return byte(b)
		}
	}
	return 40
}

func decodeDictSizeByte(b byte) int {
	if b > 40 {
		return 1 << 32 // clamp, unreachable in practice
	}
	if b == 40 {
		return 0xFFFFFFFF
	}
	return (2 | int(b&1)) << (uint(b)/2 + 11)
}

// Index is the ordered set of (unpaddedSize, uncompressedSize) records
// appended to by the writer, one per emitted block, in on-disk order.
type Index struct {
	Records []IndexRecord
}

// IndexRecord is one entry of the block index.
type IndexRecord struct {
	UnpaddedSize     int64
	UncompressedSize int64
}

// Append adds a record for one emitted block.
func (idx *Index) Append(unpaddedSize, uncompressedSize int64) {
	idx.Records = append(idx.Records, IndexRecord{unpaddedSize, uncompressedSize})
}

// Encode serializes the index as: count (vli), then count pairs of
// (unpaddedSize, uncompressedSize) vlis, then padding to a 4-byte
// boundary, then a CRC32 of everything before it, padding included.
func (idx *Index) Encode() []byte {
	var body []byte
	body = appendVLI(body, uint64(len(idx.Records)))
	for _, r := range idx.Records {
		body = appendVLI(body, uint64(r.UnpaddedSize))
		body = appendVLI(body, uint64(r.UncompressedSize))
	}
	for len(body)%4 != 0 {
		body = append(body, 0)
	}
	crc := crc32.ChecksumIEEE(body)
	out := make([]byte, len(body)+4)
	copy(out, body)
	binary.LittleEndian.PutUint32(out[len(body):], crc)
	return out
}

// DecodeIndex parses a previously-encoded index.
func DecodeIndex(buf []byte) (*Index, error) {
	if len(buf) < 5 {
		return nil, errors.New("xzformat: index too short")
	}
	body := buf[:len(buf)-4]
	crc := crc32.ChecksumIEEE(body)
	want := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if crc != want {
		return nil, errors.New("xzformat: index CRC mismatch")
	}
	count, n, err := readVLI(body)
	if err != nil {
		return nil, err
	}
	body = body[n:]
	idx := &Index{Records: make([]IndexRecord, 0, count)}
	for i := uint64(0); i < count; i++ {
		unpadded, n, err := readVLI(body)
		if err != nil {
			return nil, err
		}
		body = body[n:]
		uncompressed, n, err := readVLI(body)
		if err != nil {
			return nil, err
		}
		body = body[n:]
		idx.Append(int64(unpadded), int64(uncompressed))
	}
	return idx, nil
}

// appendVLI appends v encoded as an XZ-style base-128 variable length
// integer (little-endian, continuation bit in the high bit of each byte).
func appendVLI(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return buf
		}
	}
}

// readVLI reads a variable length integer from the front of buf, returning
// the value and the number of bytes consumed.
func readVLI(buf []byte) (uint64, int, error) {
	var v uint64
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		v |= uint64(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errors.New("xzformat: truncated variable length integer")
}

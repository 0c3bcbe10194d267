// Package lister implements the read side of the format: parsing the
// block index and file index back out of a stream written by
// internal/pipeline, printing a summary, and serving random-access reads
// over a byte range of the original uncompressed tar stream (invariant 6
// — seeking into the archive never requires decompressing from the
// start).
package lister

import (
	"fmt"
	"io"

	"github.com/pxztool/pxz/internal/codec"
	"github.com/pxztool/pxz/internal/fileindex"
	"github.com/pxztool/pxz/internal/xzformat"
)

// blockLocation records where one data block sits in both the compressed
// file and the uncompressed tar stream it decodes to.
type blockLocation struct {
	fileOffset       int64
	unpaddedSize     int64
	uncompressedFrom uint64
	uncompressedSize int64
}

// Stream is a parsed view of one compressed archive: its check kind, its
// data-block locations, and its parsed file index.
type Stream struct {
	Check   xzformat.CheckKind
	DictSize int
	Blocks  []blockLocation
	Files   []fileindex.Entry
}

// Open parses the stream header, footer, block index, and file index out
// of r, which must support seeking (a regular file).
func Open(r io.ReadSeeker) (*Stream, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("lister: read stream header: %w", err)
	}
	check, err := xzformat.DecodeStreamHeader(header)
	if err != nil {
		return nil, err
	}

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if end < 24 {
		return nil, fmt.Errorf("lister: file too short to be a valid stream")
	}

	footer := make([]byte, 12)
	if _, err := r.Seek(end-12, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, footer); err != nil {
		return nil, err
	}
	_, indexSize, err := xzformat.DecodeStreamFooter(footer)
	if err != nil {
		return nil, err
	}

	indexStart := end - 12 - int64(indexSize)
	if indexStart < 12 {
		return nil, fmt.Errorf("lister: invalid backward size")
	}
	if _, err := r.Seek(indexStart, io.SeekStart); err != nil {
		return nil, err
	}
	indexBuf := make([]byte, indexSize)
	if _, err := io.ReadFull(r, indexBuf); err != nil {
		return nil, err
	}
	idx, err := xzformat.DecodeIndex(indexBuf)
	if err != nil {
		return nil, err
	}
	if len(idx.Records) == 0 {
		return nil, fmt.Errorf("lister: block index is empty, missing the file-index block")
	}

	s := &Stream{Check: check}
	pos := int64(12)
	var uncompressedPos uint64
	for i, rec := range idx.Records {
		loc := blockLocation{
			fileOffset:       pos,
			unpaddedSize:     rec.UnpaddedSize,
			uncompressedFrom: uncompressedPos,
			uncompressedSize: rec.UncompressedSize,
		}
		pad := (4 - rec.UnpaddedSize%4) % 4
		pos += rec.UnpaddedSize + pad

		if i == len(idx.Records)-1 {
			// the last record is the file-index block: decode it but do
			// not count it toward the tar stream's uncompressed offsets.
			plain, dictSize, err := s.decodeBlockAt(r, loc)
			if err != nil {
				return nil, fmt.Errorf("lister: decode file-index block: %w", err)
			}
			s.DictSize = dictSize
			entries, err := fileindex.Decode(plain)
			if err != nil {
				return nil, err
			}
			s.Files = entries
			continue
		}

		s.Blocks = append(s.Blocks, loc)
		uncompressedPos += uint64(rec.UncompressedSize)
	}

	return s, nil
}

// decodeBlockAt reads and decompresses the block at loc, returning the
// plaintext and the dictionary size declared in its header.
func (s *Stream) decodeBlockAt(r io.ReadSeeker, loc blockLocation) ([]byte, int, error) {
	buf := make([]byte, loc.unpaddedSize)
	if _, err := r.Seek(loc.fileOffset, io.SeekStart); err != nil {
		return nil, 0, err
	}
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, err
	}
	headerSize, dictSize, err := xzformat.DecodeBlockHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	checkSize := s.Check.Size()
	if headerSize+checkSize > len(buf) {
		return nil, 0, fmt.Errorf("lister: block shorter than header+check")
	}
	payload := buf[headerSize : len(buf)-checkSize]
	plain, err := codec.DecodeBlock(payload, dictSize)
	if err != nil {
		return nil, 0, err
	}
	return plain, dictSize, nil
}

// Summary formats a human-readable listing of the stream, in the spirit
// of `xz --list`: check kind, block count, and total sizes.
func (s *Stream) Summary() string {
	var totalUncompressed, totalCompressed int64
	for _, b := range s.Blocks {
		totalUncompressed += b.uncompressedSize
		totalCompressed += b.unpaddedSize
	}
	return fmt.Sprintf(
		"check: %s\nblocks: %d\nuncompressed size: %d\ncompressed size: %d\nfiles: %d",
		checkName(s.Check), len(s.Blocks), totalUncompressed, totalCompressed, len(s.Files),
	)
}

func checkName(k xzformat.CheckKind) string {
	switch k {
	case xzformat.CheckNone:
		return "none"
	case xzformat.CheckCRC32:
		return "crc32"
	case xzformat.CheckCRC64:
		return "crc64"
	case xzformat.CheckSHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// ReadRange decompresses and returns exactly the uncompressed tar-stream
// bytes in [start, end), touching only the data blocks that overlap the
// range rather than decompressing the archive from the beginning.
func (s *Stream) ReadRange(r io.ReadSeeker, start, end uint64) ([]byte, error) {
	if end < start {
		return nil, fmt.Errorf("lister: invalid range [%d, %d)", start, end)
	}
	var out []byte
	for _, loc := range s.Blocks {
		blockEnd := loc.uncompressedFrom + uint64(loc.uncompressedSize)
		if blockEnd <= start || loc.uncompressedFrom >= end {
			continue
		}
		plain, _, err := s.decodeBlockAt(r, loc)
		if err != nil {
			return nil, err
		}
		lo := uint64(0)
		if start > loc.uncompressedFrom {
			lo = start - loc.uncompressedFrom
		}
		hi := uint64(len(plain))
		if end < blockEnd {
			hi = hi - (blockEnd - end)
		}
		out = append(out, plain[lo:hi]...)
	}
	return out, nil
}

// FileRange looks up the entry named name (matching how a caller would
// request one archived file's bytes) and returns the half-open uncompressed
// byte range it occupies: [this entry's offset, next entry's offset). The
// sentinel entry always has an empty Name, so a match can never be the
// last entry in s.Files and i+1 is always in range — guarded anyway in
// case a caller passes "" and happens to hit the sentinel itself.
func (s *Stream) FileRange(name string) (start, end uint64, found bool) {
	for i, e := range s.Files {
		if e.Name == name {
			if i+1 >= len(s.Files) {
				return 0, 0, false
			}
			return e.Offset, s.Files[i+1].Offset, true
		}
	}
	return 0, 0, false
}

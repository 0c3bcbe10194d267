// Package tarsource wraps archive/tar as a pull-style event source,
// yielding (offset, name) events for each tar member while applying the
// "multi-header" coalescing rule from the spec. It is the Go-native
// stand-in for the spec's pluggable libarchive-style iterator.
package tarsource

import (
	"archive/tar"
	"io"
	"path"

	"github.com/pxztool/pxz/internal/fileindex"
)

// Source pulls bytes from r through archive/tar.Reader and reports one
// header event per member to the supplied file-index list, applying
// multi-header coalescing.
type Source struct {
	tr   *tar.Reader
	list *fileindex.List

	// position tracks the cumulative number of uncompressed tar-stream
	// bytes consumed through r, owned and advanced by the Reader stage
	// (see pipeline.fillReader) since only it knows the true byte
	// position as it simultaneously fills block buffers.
	position *uint64
}

// New creates a tar event Source reading from r and appending events to
// list. position must be the same counter the caller advances as it feeds
// bytes to r, so header offsets line up with true uncompressed position.
func New(r io.Reader, position *uint64, list *fileindex.List) *Source {
	return &Source{
		tr:       tar.NewReader(r),
		list:     list,
		position: position,
	}
}

// Next advances to the next tar member, recording its offset into the
// file-index list. It returns io.EOF when the archive is exhausted.
//
// The offset must be captured after tr.Next() returns, not before:
// tr.Next() itself consumes the unread tail of the previous member, its
// padding, and this member's own header block before returning, so
// *s.position only reflects this member's content-start offset once that
// call has returned successfully. Capturing beforehand records the
// previous member's end-of-content position instead.
func (s *Source) Next() error {
	hdr, err := s.tr.Next()
	if err != nil {
		return err
	}
	offset := *s.position
	base := path.Base(hdr.Name)
	s.list.Add(offset, hdr.Name, base)
	return nil
}

// Package fileindex implements the auxiliary file-index list: one entry
// per tar member giving its uncompressed byte offset, terminated by a
// sentinel entry. It is the system's one genuinely new on-disk structure,
// grounded on the fixed-layout binary record helpers in the teacher's
// internal/common package (common.IndexRecord / common.ReadRecord /
// common.WriteRecord), adapted from fixed-width big-endian records to the
// spec's NUL-terminated-name-plus-little-endian-offset layout.
package fileindex

import "encoding/binary"

// Entry is one node of the file-index list: the uncompressed byte offset
// at which a tar member begins, and its name. The terminating sentinel has
// an empty Name and Offset equal to the total uncompressed stream size.
type Entry struct {
	Offset uint64
	Name   string
}

// List is the ordered, append-only sequence of Entry values built by the
// reader as it walks the tar source. It is owned by a single goroutine
// (the reader) for its entire mutable lifetime.
type List struct {
	entries []Entry

	// pendingMultiHeader and multiHeaderStart implement the "multi-header
	// coalescing" rule: a basename beginning with "._" is absorbed rather
	// than emitted, and the offset of the *first* absorbed entry is
	// attached to the next non-"._" entry (or, if EOF arrives first, to
	// the terminating sentinel).
	pendingMultiHeader bool
	multiHeaderStart   uint64
}

// IsMultiHeader reports whether name's basename marks it as AppleDouble
// sidecar metadata that should be coalesced into its owning member.
func IsMultiHeader(base string) bool {
	return len(base) >= 2 && base[0] == '.' && base[1] == '_'
}

// Add records one tar header event. offset is the uncompressed byte
// offset the tar source reports for the member (its content-start
// position, see tarsource.Source.Next); base is the member's basename (used
// only to test the multi-header rule — the full name, including any
// directory components, is what gets stored).
func (l *List) Add(offset uint64, name, base string) {
	if IsMultiHeader(base) {
		if !l.pendingMultiHeader {
			l.pendingMultiHeader = true
			l.multiHeaderStart = offset
		}
		return
	}
	if l.pendingMultiHeader {
		offset = l.multiHeaderStart
		l.pendingMultiHeader = false
	}
	l.entries = append(l.entries, Entry{Offset: offset, Name: name})
}

// Close appends the terminating sentinel entry (empty name, offset equal
// to totalSize) and finalizes the list. If a multi-header run was still
// pending at EOF (a trailing run of "._"-prefixed members with no
// terminating real member), its start offset is attached to the sentinel
// rather than discarded, per the resolved open question in the design.
func (l *List) Close(totalSize uint64) {
	offset := totalSize
	if l.pendingMultiHeader {
		offset = l.multiHeaderStart
		l.pendingMultiHeader = false
	}
	l.entries = append(l.entries, Entry{Offset: offset, Name: ""})
}

// Entries returns the full, ordered list including the terminating
// sentinel. Valid only after Close.
func (l *List) Entries() []Entry {
	return l.entries
}

// EncodeEntry serializes one entry as nameBytes || 0x00 || little-endian
// uint64 offset.
func EncodeEntry(e Entry) []byte {
	buf := make([]byte, len(e.Name)+1+8)
	copy(buf, e.Name)
	binary.LittleEndian.PutUint64(buf[len(e.Name)+1:], e.Offset)
	return buf
}

// Encode serializes every entry (including the sentinel) in order,
// concatenated with no separator beyond each record's own trailing
// offset — record boundaries are recovered by scanning for the NUL byte.
func (l *List) Encode() []byte {
	var out []byte
	for _, e := range l.entries {
		out = append(out, EncodeEntry(e)...)
	}
	return out
}

// Decode parses a previously-encoded file-index block payload back into
// individual entries, in order.
func Decode(buf []byte) ([]Entry, error) {
	var entries []Entry
	for len(buf) > 0 {
		nul := indexByte(buf, 0)
		if nul < 0 {
			return nil, errTruncated
		}
		name := string(buf[:nul])
		rest := buf[nul+1:]
		if len(rest) < 8 {
			return nil, errTruncated
		}
		offset := binary.LittleEndian.Uint64(rest[:8])
		entries = append(entries, Entry{Offset: offset, Name: name})
		buf = rest[8:]
	}
	return entries, nil
}

func indexByte(buf []byte, from int) int {
	for i := from; i < len(buf); i++ {
		if buf[i] == 0 {
			return i
		}
	}
	return -1
}

type fileindexError string

func (e fileindexError) Error() string { return string(e) }

const errTruncated = fileindexError("fileindex: truncated record")

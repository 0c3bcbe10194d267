package pipeline

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/pxztool/pxz/internal/codec"
	"github.com/pxztool/pxz/internal/fileindex"
	"github.com/pxztool/pxz/internal/xzformat"
)

// buildTar writes a tar stream containing the given (name, content) pairs
// in order and returns the raw archive bytes.
func buildTar(t *testing.T, files [][2]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		name, content := f[0], f[1]
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0644}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("write content %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	return buf.Bytes()
}

// decompressAll parses the XZ stream produced by Compress back into the
// list of (name, content) pairs it must reproduce, by decoding each data
// block and concatenating the uncompressed stream, then reading it back
// as a tar archive.
func decompressAll(t *testing.T, xzBytes []byte) ([][2]string, []fileindex.Entry) {
	t.Helper()

	if len(xzBytes) < 24 {
		t.Fatalf("stream too short: %d bytes", len(xzBytes))
	}

	check, err := xzformat.DecodeStreamHeader(xzBytes[:12])
	if err != nil {
		t.Fatalf("decode stream header: %v", err)
	}

	footer := xzBytes[len(xzBytes)-12:]
	_, indexSize, err := xzformat.DecodeStreamFooter(footer)
	if err != nil {
		t.Fatalf("decode stream footer: %v", err)
	}

	indexStart := len(xzBytes) - 12 - int(indexSize)
	idx, err := xzformat.DecodeIndex(xzBytes[indexStart : len(xzBytes)-12])
	if err != nil {
		t.Fatalf("decode block index: %v", err)
	}
	if len(idx.Records) == 0 {
		t.Fatalf("expected at least the file-index block in the index")
	}

	var tarStream bytes.Buffer
	pos := 12
	for i, rec := range idx.Records {
		block := xzBytes[pos : pos+int(rec.UnpaddedSize)]
		headerSize, dictSize, err := xzformat.DecodeBlockHeader(block)
		if err != nil {
			t.Fatalf("block %d: decode header: %v", i, err)
		}
		checkSize := check.Size()
		payload := block[headerSize : len(block)-checkSize]
		plain, err := codec.DecodeBlock(payload, dictSize)
		if err != nil {
			t.Fatalf("block %d: decode payload: %v", i, err)
		}

		// last record is the file-index block, handled separately below
		if i == len(idx.Records)-1 {
			entries, err := fileindex.Decode(plain)
			if err != nil {
				t.Fatalf("decode file index: %v", err)
			}
			pad := (4 - int(rec.UnpaddedSize)%4) % 4
			pos += int(rec.UnpaddedSize) + pad
			return parseTar(t, tarStream.Bytes()), entries
		}

		tarStream.Write(plain)
		pad := (4 - int(rec.UnpaddedSize)%4) % 4
		pos += int(rec.UnpaddedSize) + pad
	}

	t.Fatalf("file-index block never reached")
	return nil, nil
}

func parseTar(t *testing.T, raw []byte) [][2]string {
	t.Helper()
	var out [][2]string
	tr := tar.NewReader(bytes.NewReader(raw))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("parse tar: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read tar member %s: %v", hdr.Name, err)
		}
		out = append(out, [2]string{hdr.Name, string(content)})
	}
	return out
}

func runRoundTrip(t *testing.T, files [][2]string, workers int) {
	t.Helper()
	tarBytes := buildTar(t, files)

	var out bytes.Buffer
	cfg := Config{Workers: workers, Preset: 1}
	totalRead, list, err := Compress(bytes.NewReader(tarBytes), &out, cfg)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if totalRead != uint64(len(tarBytes)) {
		t.Errorf("totalRead = %d, want %d", totalRead, len(tarBytes))
	}

	gotFiles, entries := decompressAll(t, out.Bytes())
	if len(gotFiles) != len(files) {
		t.Fatalf("got %d members, want %d", len(gotFiles), len(files))
	}
	for i, f := range files {
		if gotFiles[i][0] != f[0] || gotFiles[i][1] != f[1] {
			t.Errorf("member %d = %+v, want %+v", i, gotFiles[i], f)
		}
	}

	// the in-memory list Compress built must match what got serialized.
	wantEntries := list.Entries()
	if len(entries) != len(wantEntries) {
		t.Fatalf("decoded %d file-index entries, want %d", len(entries), len(wantEntries))
	}
	for i := range wantEntries {
		if entries[i] != wantEntries[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], wantEntries[i])
		}
	}
	// sentinel must close the list
	last := entries[len(entries)-1]
	if last.Name != "" || last.Offset != totalRead {
		t.Errorf("sentinel = %+v, want offset %d", last, totalRead)
	}
}

func TestEmptyTar(t *testing.T) {
	runRoundTrip(t, nil, 1)
}

func TestSingleSmallFile(t *testing.T) {
	runRoundTrip(t, [][2]string{{"hello.txt", "hello, world\n"}}, 1)
}

func TestLargeFileSingleWorker(t *testing.T) {
	content := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 250000) // ~10MiB-ish
	runRoundTrip(t, [][2]string{{"big.bin", string(content)}}, 1)
}

func TestManySmallFilesParallel(t *testing.T) {
	var files [][2]string
	for i := 0; i < 200; i++ {
		files = append(files, [2]string{
			fmt.Sprintf("dir/file_%03d.txt", i),
			fmt.Sprintf("contents of file number %d\n", i),
		})
	}
	runRoundTrip(t, files, 4)
}

func TestAppleDoubleCoalescing(t *testing.T) {
	files := [][2]string{
		{"dir/._photo.jpg", "resource-fork-metadata"},
		{"dir/photo.jpg", "the real jpeg bytes"},
		{"dir/note.txt", "plain file, no sidecar"},
	}
	tarBytes := buildTar(t, files)

	var out bytes.Buffer
	_, list, err := Compress(bytes.NewReader(tarBytes), &out, Config{Workers: 2})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	entries := list.Entries()
	// the "._photo.jpg" sidecar must be absorbed, not emitted as its own
	// entry; "photo.jpg" must carry the sidecar's earlier offset.
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"dir/photo.jpg", "dir/note.txt", ""}
	if len(names) != len(want) {
		t.Fatalf("got entries %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d name = %q, want %q", i, names[i], want[i])
		}
	}
	// "dir/._photo.jpg" is the first member in the archive, so its content
	// (and therefore the sidecar run's recorded offset) begins right after
	// the first 512-byte tar header block.
	const firstMemberContentOffset = 512
	if entries[0].Offset != firstMemberContentOffset {
		t.Errorf("photo.jpg offset = %d, want %d (sidecar's content-start offset)", entries[0].Offset, firstMemberContentOffset)
	}
}

func TestTrailingAppleDoubleAttachesToSentinel(t *testing.T) {
	files := [][2]string{
		{"note.txt", "plain file"},
		{"._ghost", "sidecar with no owner"},
	}
	tarBytes := buildTar(t, files)

	var out bytes.Buffer
	totalRead, list, err := Compress(bytes.NewReader(tarBytes), &out, Config{Workers: 1})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	entries := list.Entries()
	last := entries[len(entries)-1]
	if last.Name != "" {
		t.Fatalf("expected sentinel last, got %+v", last)
	}
	if last.Offset == totalRead {
		t.Errorf("sentinel offset should be pulled back to the orphaned sidecar's content-start offset, not the stream end")
	}
}

func TestMidReadFailurePropagates(t *testing.T) {
	boom := fmt.Errorf("simulated read failure")
	r := io.MultiReader(bytes.NewReader(buildTar(t, [][2]string{{"a.txt", "hello"}})[:100]), errReader{boom})

	var out bytes.Buffer
	_, _, err := Compress(r, &out, Config{Workers: 2})
	if err == nil {
		t.Fatalf("expected an error to propagate from a failing reader")
	}
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

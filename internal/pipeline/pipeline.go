// Package pipeline implements the three-stage read/encode/write
// producer-consumer pipeline that is the core of the compressor: a single
// reader goroutine drives N parallel encoder goroutines, whose
// arbitrarily-ordered output is reassembled into strict sequence order by
// one writer goroutine. Generalizes the teacher's indexer.Run()
// orchestration (launch N sorter consumers, scan source pushing batches
// onto per-consumer channels, wait) to a design where, unlike the
// teacher's independent per-column sorters, the encoder outputs must be
// reordered before they can be written.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/pxztool/pxz/internal/fileindex"
	"github.com/pxztool/pxz/internal/mmapfile"
	"github.com/pxztool/pxz/internal/queue"
	"github.com/pxztool/pxz/internal/xzformat"
	"golang.org/x/sync/errgroup"
)

// Preset selects an LZMA2 dictionary size, following the xz CLI's
// 0-9 preset levels. BlockIn is fixed at twice the dictionary size and
// BlockOut at the worst-case expansion, per spec §3.
type Preset int

const defaultPreset Preset = 6

// dictSizes mirrors the xz command line tool's preset -> dictionary size
// table (levels 0-9).
var dictSizes = [10]int{
	1 << 18, 1 << 20, 1 << 21, 1 << 22, 1 << 22,
	1 << 23, 1 << 23, 1 << 24, 1 << 25, 1 << 26,
}

// DictSize returns the LZMA2 dictionary size for this preset, clamped to
// the valid [0, 9] range.
func (p Preset) DictSize() int {
	lvl := int(p)
	if lvl < 0 {
		lvl = 0
	}
	if lvl > 9 {
		lvl = 9
	}
	return dictSizes[lvl]
}

// blockSizes returns (BlockIn, BlockOut) for a preset: BlockIn is twice
// the dictionary size, BlockOut is the worst-case LZMA2 expansion of
// BlockIn (uncompressible data grows by roughly 1/64 of its size plus a
// small constant under headers/escaping; we use a generous 1/16 + 4KiB
// margin to stay safely above any realistic expansion).
func blockSizes(p Preset) (blockIn, blockOut int) {
	dictSize := p.DictSize()
	blockIn = 2 * dictSize
	blockOut = blockIn + blockIn/16 + 4096
	return
}

// Config configures one call to Compress.
type Config struct {
	Workers int // defaults to runtime.NumCPU() if <= 0
	Preset  Preset
	Check   xzformat.CheckKind
}

// applyDefaults fills in zero-valued fields with their defaults.
func (c Config) applyDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Preset == 0 {
		c.Preset = defaultPreset
	}
	if c.Check == 0 {
		c.Check = xzformat.CheckCRC32
	}
	return c
}

// Compress reads a tar stream from in and writes a parallel, file-indexed
// XZ stream to out, per the container format in spec §6. It returns the
// total number of uncompressed bytes read and the file-index list it
// built (entries are only valid for inspection once Compress returns).
func Compress(in io.Reader, out io.Writer, cfg Config) (totalRead uint64, list *fileindex.List, err error) {
	cfg = cfg.applyDefaults()
	blockIn, blockOut := blockSizes(cfg.Preset)

	readQ := queue.NewPool(cfg.Workers, blockIn, blockOut)
	encodeQ := queue.NewQueue(2*cfg.Workers + 4)
	writeQ := queue.NewQueue(2*cfg.Workers + 4)

	list = &fileindex.List{}

	var g errgroup.Group

	// N encoder workers.
	for i := 0; i < cfg.Workers; i++ {
		g.Go(func() error {
			return runEncoder(encodeQ, writeQ, cfg.Check, cfg.Preset.DictSize())
		})
	}

	// The reader runs on its own goroutine so the writer (this goroutine)
	// can start draining writeQ concurrently, exactly mirroring the
	// spec's "reader, N encoders, writer (main goroutine)" role split
	// (§5).
	// Once the reader is done it joins the encoders and sends the writer
	// its Stop (§4.C); on a read error it stops the encoders itself, since
	// runReader returns before doing so.
	readerErrCh := make(chan error, 1)
	encodersErrCh := make(chan error, 1)
	go func() {
		n, err := runReader(in, readQ, encodeQ, cfg.Workers, list)
		totalRead = n
		if err != nil {
			for i := 0; i < cfg.Workers; i++ {
				encodeQ.PushStop()
			}
		}
		encodersErrCh <- g.Wait()
		writeQ.PushStop()
		readerErrCh <- err
	}()

	writerErr := runWriter(out, writeQ, readQ, cfg.Check, cfg.Preset.DictSize(), list)

	encodersErr := <-encodersErrCh
	readerErr := <-readerErrCh

	readQ.Drain()
	encodeQ.Drain()
	writeQ.Drain()

	if readerErr != nil {
		return totalRead, list, fmt.Errorf("reader: %w", readerErr)
	}
	if encodersErr != nil {
		return totalRead, list, fmt.Errorf("encode: %w", encodersErr)
	}
	if writerErr != nil {
		return totalRead, list, fmt.Errorf("writer: %w", writerErr)
	}
	return totalRead, list, nil
}

// CompressFile is a convenience wrapper used by the CLI: it opens input
// and creates output, running Compress between them. When inputPath names
// a regular file, it is memory-mapped rather than read through a buffered
// os.File, avoiding a redundant copy through the page cache on the way
// into the reader's block buffers.
func CompressFile(inputPath, outputPath string, cfg Config) error {
	var in io.Reader

	mapped, err := mmapfile.TryOpen(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	if mapped != nil {
		defer mapped.Close()
		in = mapped.Reader()
	} else {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	_, _, err = Compress(in, out, cfg)
	return err
}

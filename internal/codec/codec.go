// Package codec wraps the LZMA2 block encoder/decoder from
// github.com/ulikunitz/xz/lzma as the spec's "black-box" codec: this
// package never reimplements LZMA2, it only drives the imported writer
// and reader across one block's worth of bytes at a time.
package codec

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// EncodeBlock compresses input as a single LZMA2 chunk sequence using the
// given dictionary size, returning the raw compressed payload (no XZ block
// header or integrity check — those are xzformat's job).
func EncodeBlock(input []byte, dictSize int) ([]byte, error) {
	var out bytes.Buffer
	w, err := lzma.NewWriter2Config(&out, lzma.Writer2Config{
		DictSize: dictSize,
		Workers:  1,
	})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(input); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// DecodeBlock decompresses a single LZMA2 chunk sequence previously
// produced by EncodeBlock.
func DecodeBlock(payload []byte, dictSize int) ([]byte, error) {
	r, err := lzma.NewReader2(bytes.NewReader(payload), dictSize)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

//go:build windows

package mmapfile

import (
	"io"
	"os"
)

// Open falls back to a plain read on Windows, avoiding unsafe pointer
// arithmetic for a platform this tool does not need to run fast on.
func Open(f *os.File) (*File, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &File{data: data}, nil
}

func (m *File) close() error {
	return nil
}

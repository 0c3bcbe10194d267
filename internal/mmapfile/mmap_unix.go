//go:build !windows

package mmapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// Open maps f's full contents read-only. The caller must call Close on
// the returned handle once done; unmapping a file still open for reads
// elsewhere is safe, the kernel keeps the pages resident until the last
// unmap.
func Open(f *os.File) (*File, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &File{data: nil}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &File{data: data}, nil
}

func (m *File) close() error {
	if m.data == nil {
		return nil
	}
	return unix.Munmap(m.data)
}

//go:build unix

package raster

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}

	// Window reads jump between bands and rows; readahead mostly wastes I/O.
	_ = unix.Madvise(data, unix.MADV_RANDOM)

	return data, func() error { return unix.Munmap(data) }, nil
}

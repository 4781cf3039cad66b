//go:build linux || darwin

package ioblock

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func init() {
	RegisterSource("mmap", newMmapSource)
}

// mmapSource is the io_strategy: mmap strategy - the whole file is mapped
// once and reads become plain slice copies, advised MADV_SEQUENTIAL since
// the Match Engine always walks forward, never backward, grounded on
// original_source's io/mmap.rs (old tree) sequential-access advice call.
type mmapSource struct {
	f    *os.File
	data []byte
}

func newMmapSource(cfg any) (Source, error) {
	lc, ok := cfg.(*LocalConfig)
	if !ok {
		return nil, fmt.Errorf("ioblock: mmap source expects *LocalConfig, got %T", cfg)
	}

	f, err := os.Open(lc.Path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &mmapSource{f: f, data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ioblock: mmap failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil {
		// Advisory only - a failed madvise doesn't affect correctness, just
		// the kernel's read-ahead heuristics, so it isn't fatal.
		_ = err
	}

	return &mmapSource{f: f, data: data}, nil
}

func (s *mmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, fmt.Errorf("ioblock: mmap read offset %d out of range", off)
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *mmapSource) Len() (int64, error) {
	return int64(len(s.data)), nil
}

func (s *mmapSource) Close() error {
	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			s.f.Close()
			return err
		}
	}
	return s.f.Close()
}

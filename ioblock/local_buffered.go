package ioblock

import (
	"fmt"
	"os"
)

// LocalConfig configures any of the local I/O strategies (buffered, mmap,
// direct). Path is the only field every strategy needs; individual
// strategies read additional fields off the same struct so callers don't
// need a different config type per io_strategy value.
type LocalConfig struct {
	Path string
}

func init() {
	RegisterSource("buffered", newBufferedSource)
}

// bufferedSource is the plain os.File.ReadAt strategy - the default,
// portable io_strategy, grounded on driver/local/local.go's direct os.File
// use (no mmap, no O_DIRECT, no special alignment).
type bufferedSource struct {
	f *os.File
}

func newBufferedSource(cfg any) (Source, error) {
	lc, ok := cfg.(*LocalConfig)
	if !ok {
		return nil, fmt.Errorf("ioblock: buffered source expects *LocalConfig, got %T", cfg)
	}

	f, err := os.Open(lc.Path)
	if err != nil {
		return nil, err
	}
	return &bufferedSource{f: f}, nil
}

func (s *bufferedSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *bufferedSource) Len() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *bufferedSource) Close() error {
	return s.f.Close()
}

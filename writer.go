package carvekit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Will-Banksy/carvekit/ioblock"
	"github.com/Will-Banksy/carvekit/validate"
)

// WriteRequest is the Writer's input contract (§6): a filename (already
// derived from the candidate's header offset and extension) and the
// fragment ranges to concatenate, in order, to produce it.
type WriteRequest struct {
	Filename  string
	Fragments []validate.Fragment
}

// Writer persists one carved file's bytes. A destination is free to write
// to a local directory, a remote object store, or anywhere else an
// ioblock.Source-shaped reader can supply bytes from.
type Writer interface {
	Write(req WriteRequest, src ioblock.Source) error
}

// BaseName derives the stem §6 specifies: base_name(header_offset). The
// format is fixed (16 hex digits) so carved output sorts the same way its
// source offsets do.
func BaseName(headerOffset uint64) string {
	return fmt.Sprintf("%016x", headerOffset)
}

// Filename derives the full output filename for a candidate: its base
// name plus "." plus the file type's extension.
func Filename(headerOffset uint64, extension string) string {
	return BaseName(headerOffset) + "." + extension
}

// LocalWriter writes carved files as plain files under Dir, stitching each
// one's fragments by copying byte ranges out of src in order - the direct
// analogue of filekit's local driver's Put, narrowed to "open, copy
// ranges, close" since carved output is write-once.
type LocalWriter struct {
	Dir string
}

// NewLocalWriter builds a LocalWriter rooted at dir, creating it if it
// doesn't already exist.
func NewLocalWriter(dir string) (*LocalWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return &LocalWriter{Dir: dir}, nil
}

// Write implements Writer.
func (w *LocalWriter) Write(req WriteRequest, src ioblock.Source) error {
	path := filepath.Join(w.Dir, req.Filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	const copyBufSize = 64 * 1024
	buf := make([]byte, copyBufSize)

	for _, frag := range req.Fragments {
		if err := copyRange(f, src, frag.StreamStart, frag.StreamEnd, buf); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
	}

	return nil
}

// copyRange copies src[start:end) to dst, reading through buf in chunks so
// a fragment's length doesn't dictate an allocation.
func copyRange(dst io.Writer, src ioblock.Source, start, end uint64, buf []byte) error {
	off := int64(start)
	remaining := end - start

	for remaining > 0 {
		n := uint64(len(buf))
		if n > remaining {
			n = remaining
		}

		read, err := src.ReadAt(buf[:n], off)
		if err != nil && err != io.EOF {
			return err
		}
		if read == 0 {
			return io.ErrUnexpectedEOF
		}

		if _, err := dst.Write(buf[:read]); err != nil {
			return err
		}

		off += int64(read)
		remaining -= uint64(read)
	}

	return nil
}

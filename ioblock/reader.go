package ioblock

import (
	"errors"
	"io"
)

// Reader produces a finite lazy sequence of Blocks from a Source (§4.3).
// It keeps two buffers: the one just returned by the previous call to Next,
// and a second one a background goroutine is already filling with the
// block after that - "the next read overlaps the caller's current
// processing" is implemented literally as a goroutine plus a 1-deep result
// channel, the same double-buffering shape as filekit's stream manager
// generalized from a single io.ReadCloser to a random-access Source.
//
// A Reader is not safe for concurrent use; it is driven by a single
// consumer (the Match Engine's dispatch loop).
type Reader struct {
	src       Source
	blockSize int
	overlap   int
	totalLen  int64

	bufs [2][]byte

	prefetchCh chan prefetchResult
	noMore     bool // true once a result with no further block has been observed
	done       bool // true once EOF has already been returned once
}

type prefetchResult struct {
	idx     int
	offset  uint64
	overlap int
	n       int
	final   bool // true if this is the last block the source has
	err     error
}

// NewReader builds a Reader over src. blockSize is the target block size;
// overlap is how many bytes of context each block after the first repeats
// from the end of the previous one - callers derive this from
// pattern.MaxPatternLength(types) - 1 per §4.3's boundary-match guarantee.
//
// Per §4.3 the constraint blockSize >= 2*overlap is advisory, not enforced;
// NewReader does not reject a smaller blockSize, it just won't perform well.
func NewReader(src Source, blockSize, overlap int) (*Reader, error) {
	if blockSize <= 0 {
		return nil, errors.New("ioblock: blockSize must be positive")
	}
	if overlap < 0 {
		overlap = 0
	}

	length, err := src.Len()
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:        src,
		blockSize:  blockSize,
		overlap:    overlap,
		totalLen:   length,
		prefetchCh: make(chan prefetchResult, 1),
	}
	r.bufs[0] = make([]byte, blockSize)
	r.bufs[1] = make([]byte, blockSize)

	r.launchPrefetch(0, 0, 0)
	return r, nil
}

// Next returns the next Block, or io.EOF once the source is exhausted. The
// returned Block's Data aliases the Reader's internal buffer and is only
// valid until the following call to Next.
func (r *Reader) Next() (*Block, error) {
	if r.done {
		return nil, io.EOF
	}

	res := <-r.prefetchCh
	if res.err != nil {
		return nil, res.err
	}
	if res.n == 0 {
		r.done = true
		return nil, io.EOF
	}

	block := &Block{
		Data:    r.bufs[res.idx][:res.n],
		Offset:  res.offset,
		Overlap: res.overlap,
	}

	if res.final {
		r.done = true
	} else {
		nextOverlap := r.overlap
		if nextOverlap > res.n {
			nextOverlap = res.n
		}
		nextStart := res.offset + uint64(res.n) - uint64(nextOverlap)
		r.launchPrefetch(1-res.idx, nextStart, nextOverlap)
	}

	return block, nil
}

// launchPrefetch starts a background read of blockSize bytes starting at
// offset into bufs[idx], reporting the outcome on prefetchCh.
func (r *Reader) launchPrefetch(idx int, offset uint64, overlap int) {
	go func() {
		n, err := readFull(r.src, r.bufs[idx], int64(offset))
		if err != nil && err != io.EOF {
			r.prefetchCh <- prefetchResult{err: err}
			return
		}
		final := err == io.EOF || uint64(offset)+uint64(n) >= uint64(r.totalLen)
		r.prefetchCh <- prefetchResult{idx: idx, offset: offset, overlap: overlap, n: n, final: final}
	}()
}

// readFull reads len(buf) bytes from src at off, looping over short reads
// the way io.ReadFull does, but tolerating a final short read at EOF
// instead of treating it as an error - the Streaming Reader's contract is
// "report actual length on the final block", not "fail on the final block".
func readFull(src Source, buf []byte, off int64) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.ReadAt(buf[total:], off+int64(total))
		total += n
		if err != nil {
			if err == io.EOF {
				return total, io.EOF
			}
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}

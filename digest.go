package carvekit

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// RunningDigest accumulates a single xxhash fingerprint over an ordered
// stream of (pattern_id, start_offset) pairs, or over an ordered
// CarveCandidate stream's (header_offset, terminator_offset) pairs - the
// idempotence property (§8 Property 5) wants "run twice, same config,
// compare one number" rather than diffing whole output directories.
// Grounded on filekit.checksum.go's NewHasher/CalculateChecksum pattern,
// narrowed from hash.Hash's io.Writer contract to the two fixed-shape
// Write* calls this package actually needs.
type RunningDigest struct {
	h   *xxhash.Digest
	buf [16]byte
}

// NewRunningDigest returns a digest with no input folded in yet.
func NewRunningDigest() *RunningDigest {
	return &RunningDigest{h: xxhash.New()}
}

// WriteMatch folds one RawMatch's (pattern_id, start_offset) pair into the
// digest, in that order. Callers must feed matches in a fixed, deterministic
// order (e.g. ascending start_offset, ties broken by pattern_id) for the
// resulting digest to be comparable across runs.
func (d *RunningDigest) WriteMatch(patternID, startOffset uint64) {
	binary.LittleEndian.PutUint64(d.buf[0:8], patternID)
	binary.LittleEndian.PutUint64(d.buf[8:16], startOffset)
	d.h.Write(d.buf[:])
}

// WriteCandidate folds one CarveCandidate's (header_offset, terminator_offset)
// pair into the digest, in that order.
func (d *RunningDigest) WriteCandidate(headerOffset, terminatorOffset uint64) {
	binary.LittleEndian.PutUint64(d.buf[0:8], headerOffset)
	binary.LittleEndian.PutUint64(d.buf[8:16], terminatorOffset)
	d.h.Write(d.buf[:])
}

// Sum returns the digest's current 64-bit value. Calling Sum does not
// reset or otherwise disturb the running state; more input may still be
// folded in afterward.
func (d *RunningDigest) Sum() uint64 {
	return d.h.Sum64()
}

// Reset returns the digest to its initial, empty state.
func (d *RunningDigest) Reset() {
	d.h.Reset()
}

package validate

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/Will-Banksy/carvekit/pairing"
)

const (
	pngIHDR = "IHDR"
	pngPLTE = "PLTE"
	pngIDAT = "IDAT"
	pngIEND = "IEND"

	pngIHDRLen = 13
	// pngHeaderLen is the fixed 8-byte PNG signature consumed before the
	// chunk chain begins; the header pattern already matched it.
	pngHeaderLen = 8
	// maxFragmentSearchClusters bounds how many cluster-aligned candidate
	// positions the bi-fragment reconstructor will probe before giving up -
	// unbounded search would make a corrupt/non-PNG candidate scan the
	// entire window.
	maxFragmentSearchClusters = 4096
)

// PNGValidator implements the chunk walker described in §4.5, a direct
// port of original_source's png.rs validate_chunk/validate, plus the
// bi-fragment reconstruction §4.5 adds on top of it.
type PNGValidator struct{}

func NewPNGValidator() *PNGValidator {
	return &PNGValidator{}
}

type pngChunkInfo struct {
	detail    DetailVerdict
	dataLen   uint32
	chunkType string
}

// Validate implements validate.Validator.
func (PNGValidator) Validate(window []byte, windowOffset uint64, cand pairing.CarveCandidate, clusterSize int) Validation {
	state := &pngWalkState{
		window:       window,
		windowOffset: windowOffset,
		clusterSize:  clusterSize,
		maxIdx:       len(window),
	}
	if cand.FileType.MaxLength > 0 && int(cand.FileType.MaxLength) < state.maxIdx {
		state.maxIdx = int(cand.FileType.MaxLength)
	}

	idx := pngHeaderLen
	state.fragments = append(state.fragments, Fragment{StreamStart: windowOffset, StreamEnd: windowOffset + uint64(idx)})

	worst := Correct

	for {
		if idx+12 > state.maxIdx {
			return Validation{Verdict: Invalid, Detail: Corrupt, FileExtension: cand.FileType.Extension}
		}

		info, _, newIdx := state.validateChunk(idx)
		worst = worst.WorstOf(info.detail)

		if info.detail == Unrecognised {
			return Validation{
				Verdict:       Partial.ToVerdict(),
				Detail:        Partial,
				Fragments:     state.closedFragments(idx),
				FileExtension: cand.FileType.Extension,
			}
		}

		switch info.chunkType {
		case pngIHDR:
			state.seenIHDR = true
			colourType := window[idx+8+9]
			if colourType == 3 {
				state.requiresPLTE = true
			} else if colourType == 0 || colourType == 4 {
				state.plteForbidden = true
			}
		case pngPLTE:
			state.seenPLTE = true
		case pngIDAT:
			if state.seenIDAT && state.prevChunkType != pngIDAT {
				state.idatOutOfOrder = true
			}
			state.seenIDAT = true
		case pngIEND:
			finalDetail := Correct
			if !(state.seenIHDR && state.seenIDAT && ((!state.seenPLTE && !state.requiresPLTE) || (state.seenPLTE && !state.plteForbidden)) && !state.idatOutOfOrder) {
				finalDetail = FormatError
			}
			finalDetail = finalDetail.WorstOf(worst)

			return Validation{
				Verdict:       finalDetail.ToVerdict(),
				Detail:        finalDetail,
				Fragments:     state.closedFragments(newIdx),
				FileExtension: cand.FileType.Extension,
				Notes:         state.notes,
			}
		}

		state.prevChunkType = info.chunkType
		idx = newIdx
	}
}

type pngWalkState struct {
	window       []byte
	windowOffset uint64
	clusterSize  int
	maxIdx       int

	requiresPLTE, plteForbidden  bool
	seenIHDR, seenPLTE, seenIDAT bool
	idatOutOfOrder               bool
	prevChunkType                string
	fragments                    []Fragment
	notes                        string
}

// closedFragments closes the final open fragment at the window-relative
// index endIdx (converted to an absolute stream offset) and returns the
// accumulated fragment list.
func (s *pngWalkState) closedFragments(endIdx int) []Fragment {
	out := make([]Fragment, len(s.fragments))
	copy(out, s.fragments)
	if len(out) > 0 {
		out[len(out)-1].StreamEnd = s.windowOffset + uint64(endIdx)
	}
	return out
}

// validateChunk parses and CRC-checks one chunk starting at idx (a
// window-relative offset). On CRC mismatch it attempts bi-fragment
// reconstruction (§4.5); on success it records a fragment boundary in
// s.fragments and returns the window-relative index the next chunk's header
// now starts at, which may jump discontinuously past unrelated bytes.
func (s *pngWalkState) validateChunk(idx int) (pngChunkInfo, bool, int) {
	window := s.window
	dataLen := binary.BigEndian.Uint32(window[idx : idx+4])
	chunkType := string(window[idx+4 : idx+8])

	if !isValidChunkType(chunkType) || int(dataLen)+idx+12 > len(window) {
		return pngChunkInfo{detail: Unrecognised, chunkType: chunkType}, false, idx
	}

	storedCRC := binary.BigEndian.Uint32(window[idx+8+int(dataLen) : idx+12+int(dataLen)])
	calcCRC := crc32.ChecksumIEEE(window[idx+4 : idx+8+int(dataLen)])

	if calcCRC == storedCRC {
		detail := Correct
		if chunkType == pngIHDR && !s.ihdrSpecConformant(idx, dataLen) {
			detail = FormatError
		}
		if chunkType == pngPLTE && dataLen%3 != 0 {
			detail = FormatError
		}
		return pngChunkInfo{detail: detail, dataLen: dataLen, chunkType: chunkType}, false, idx + 12 + int(dataLen)
	}

	if newEnd, ok := s.reconstructChunk(idx, dataLen, chunkType, storedCRC); ok {
		s.notes = "bi-fragment reconstruction applied to a chunk"
		return pngChunkInfo{detail: Partial, dataLen: dataLen, chunkType: chunkType}, true, newEnd
	}

	return pngChunkInfo{detail: Corrupt, dataLen: dataLen, chunkType: chunkType}, false, idx + 12 + int(dataLen)
}

func (s *pngWalkState) ihdrSpecConformant(idx int, dataLen uint32) bool {
	if dataLen != pngIHDRLen {
		return false
	}
	data := s.window[idx+8:]
	bitDepth := data[8]
	colourType := data[9]
	compressionMethod := data[10]
	filterMethod := data[11]
	interlaceMethod := data[12]

	bitDepthColourTypeValid := (colourType == 0 && (bitDepth == 1 || bitDepth == 2 || bitDepth == 4 || bitDepth == 8 || bitDepth == 16)) ||
		((colourType == 2 || colourType == 4 || colourType == 6) && (bitDepth == 8 || bitDepth == 16)) ||
		(colourType == 3 && (bitDepth == 1 || bitDepth == 2 || bitDepth == 4 || bitDepth == 8))

	return bitDepthColourTypeValid && compressionMethod == 0 && filterMethod == 0 && interlaceMethod < 2
}

func isValidChunkType(t string) bool {
	if len(t) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		b := t[i]
		if !((b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')) {
			return false
		}
	}
	return true
}

// reconstructChunk implements §4.5's bi-fragment reconstruction: assuming
// the chunk's data is split across a fragmentation boundary aligned to
// s.clusterSize, it tries cluster-aligned cut points within the chunk's
// claimed data region, and for each, scans forward (also cluster-aligned,
// at the same intra-cluster offset) for a plausible continuation - a
// position whose bytes are consistent with a chunk-type marker preceded by
// a plausible length field - then checks whether concatenating the
// original prefix with that continuation reproduces the stored CRC.
func (s *pngWalkState) reconstructChunk(idx int, dataLen uint32, chunkType string, storedCRC uint32) (int, bool) {
	if s.clusterSize <= 0 {
		return 0, false
	}

	chunkDataStart := idx + 8
	chunkDataEnd := chunkDataStart + int(dataLen)
	headerAbs := s.windowOffset + uint64(idx)
	intraOffset := int(headerAbs % uint64(s.clusterSize))

	for cut := nextClusterAligned(chunkDataStart, intraOffset, s.clusterSize); cut < chunkDataEnd; cut += s.clusterSize {
		remaining := dataLen - uint32(cut-chunkDataStart)

		for probe := cut; probe < len(s.window)-8 && probe-cut < maxFragmentSearchClusters*s.clusterSize; probe += s.clusterSize {
			if probe+int(remaining)+4 > len(s.window) {
				break
			}

			candidate := make([]byte, 0, 4+int(dataLen))
			candidate = append(candidate, []byte(chunkType)...)
			candidate = append(candidate, s.window[chunkDataStart:cut]...)
			candidate = append(candidate, s.window[probe:probe+int(remaining)]...)

			if crc32.ChecksumIEEE(candidate) == storedCRC {
				s.fragments[len(s.fragments)-1].StreamEnd = s.windowOffset + uint64(cut)
				s.fragments = append(s.fragments, Fragment{StreamStart: s.windowOffset + uint64(probe)})
				return probe + int(remaining) + 4, true
			}
		}
	}

	return 0, false
}

// nextClusterAligned returns the smallest offset >= from that is congruent
// to intraOffset modulo clusterSize.
func nextClusterAligned(from, intraOffset, clusterSize int) int {
	rem := from % clusterSize
	if rem <= intraOffset {
		return from + (intraOffset - rem)
	}
	return from + (clusterSize - rem + intraOffset)
}

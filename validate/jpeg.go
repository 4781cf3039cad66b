package validate

import (
	"encoding/binary"
	"math"

	"github.com/Will-Banksy/carvekit/pairing"
)

const (
	jpegEOI  = 0xd9
	jpegAPP0 = 0xe0
	jpegAPP1 = 0xe1
	jpegSOF0 = 0xc0
	jpegSOF2 = 0xc2
	jpegSOS  = 0xda

	// entropyThreshold, ff00Threshold and ff00CertaintyThreshold are locked
	// constants ported verbatim from original_source's jpeg_data.rs - tuned
	// by its author against real JPEG corpora and not re-derived here.
	entropyThreshold       = 0.6
	ff00Threshold          = 0
	ff00CertaintyThreshold = 4
)

// JPEGValidator implements the segment walker described in §4.6, a direct
// port of original_source's validation/jpeg.rs, extended with the
// scan-data cluster classification §4.6 describes for resuming past
// foreign clusters inside entropy-coded scan data.
type JPEGValidator struct{}

func NewJPEGValidator() *JPEGValidator {
	return &JPEGValidator{}
}

func (JPEGValidator) Validate(window []byte, windowOffset uint64, cand pairing.CarveCandidate, clusterSize int) Validation {
	start := 0
	end := len(window) - 1
	if cand.TerminatorOffset > cand.HeaderOffset {
		if e := int(cand.TerminatorOffset - cand.HeaderOffset); e < end {
			end = e
		}
	}

	scanEnd := len(window) - 1
	if cand.FileType.MaxLength > 0 && int(cand.FileType.MaxLength) < scanEnd {
		scanEnd = int(cand.FileType.MaxLength)
	}

	var seenAPPn, seenSOFn bool
	notes := ""
	i := start
	fragments := []Fragment{{StreamStart: windowOffset + uint64(start)}}

	for {
		if i+1 >= len(window) {
			return Validation{Verdict: Invalid, Detail: Corrupt, FileExtension: cand.FileType.Extension}
		}

		if window[i] == 0xff && window[i+1] != 0x00 {
			marker := window[i+1]

			switch {
			case (marker^0xd0) < 0x09 || marker == 0x01:
				i += 2
				continue

			case marker == jpegEOI:
				detail := Correct
				if !(seenAPPn && seenSOFn) {
					detail = FormatError
				}
				fragments[len(fragments)-1].StreamEnd = windowOffset + uint64(i+2)
				return Validation{
					Verdict:       detail.ToVerdict(),
					Detail:        detail,
					Fragments:     fragments,
					FileExtension: cand.FileType.Extension,
					Notes:         notes,
				}

			case marker == jpegSOS:
				next, splitFrags, ok := scanEntropyData(window, windowOffset, i+2, scanEnd, clusterSize)
				if !ok {
					return Validation{Verdict: Invalid, Detail: Corrupt, FileExtension: cand.FileType.Extension}
				}
				if len(splitFrags) > 0 {
					notes = "scan-data cluster classification resumed past one or more foreign clusters"
					// splitFrags[0] starts exactly where the currently open
					// fragment does; extend it in place rather than opening
					// a redundant adjacent one.
					fragments[len(fragments)-1].StreamEnd = splitFrags[0].StreamEnd
					fragments = append(fragments, splitFrags[1:]...)
				}
				i = next
				continue

			default:
				if marker == jpegAPP0 || marker == jpegAPP1 {
					seenAPPn = true
				} else if marker == jpegSOF0 || marker == jpegSOF2 {
					seenSOFn = true
				}
				if i+3 >= len(window) {
					return Validation{Verdict: Invalid, Detail: Corrupt, FileExtension: cand.FileType.Extension}
				}
				segmentLen := binary.BigEndian.Uint16(window[i+2 : i+4])
				i += int(segmentLen) + 2
				continue
			}
		}

		// Not on a marker where one was expected.
		if seenAPPn || seenSOFn {
			var frags []Fragment
			if i > end {
				fragments[len(fragments)-1].StreamEnd = windowOffset + uint64(i)
				frags = fragments
			}
			return Validation{
				Verdict:       Partial.ToVerdict(),
				Detail:        Partial,
				Fragments:     frags,
				FileExtension: cand.FileType.Extension,
				Notes:         notes,
			}
		}
		return Validation{Verdict: Invalid, Detail: Unrecognised, FileExtension: cand.FileType.Extension}
	}
}

// scanEntropyDataSimple implements §4.6's simple case: scan-coded data byte-stuffs
// every literal 0xff with a following 0x00, so the next real marker is the
// first 0xff not followed by 0x00 (and not a restart marker). Ported from
// jpeg.rs's inline SOS scan loop.
func scanEntropyDataSimple(window []byte, from, scanEnd int) (int, bool) {
	for j := from; j < scanEnd; j++ {
		if j+1 >= len(window) {
			return 0, false
		}
		if window[j] == 0xff && window[j+1] != 0x00 && window[j+1] != 0x01 && (window[j+1]^0xd0) > 0x08 {
			return j, true
		}
	}
	return 0, false
}

// scanEntropyData tries the simple byte-stuffing scan first; if it runs off
// scanEnd without finding a terminating marker, it falls back to §4.6's
// cluster classification to look for a foreign-data gap the file was split
// across, skipping foreign clusters and resuming scanning beyond them.
func scanEntropyData(window []byte, windowOffset uint64, from, scanEnd, clusterSize int) (int, []Fragment, bool) {
	if pos, ok := scanEntropyDataSimple(window, from, scanEnd); ok {
		return pos, nil, true
	}

	if clusterSize <= 0 {
		return 0, nil, false
	}

	frags := []Fragment{{StreamStart: windowOffset + uint64(from)}}
	pos := from
	for pos < scanEnd {
		clusterEnd := pos + clusterSize
		if clusterEnd > len(window) {
			clusterEnd = len(window)
		}
		cluster := window[pos:clusterEnd]

		isScanLike, likelyEnd := jpegDataClassify(cluster)
		if isScanLike {
			if likelyEnd != nil {
				frags[len(frags)-1].StreamEnd = windowOffset + uint64(pos+*likelyEnd)
				return pos + *likelyEnd, frags, true
			}
			pos = clusterEnd
			continue
		}

		// foreign cluster: close the current fragment here and open a new
		// one past it, then keep scanning.
		frags[len(frags)-1].StreamEnd = windowOffset + uint64(pos)
		pos = clusterEnd
		frags = append(frags, Fragment{StreamStart: windowOffset + uint64(pos)})
	}

	return 0, nil, false
}

// jpegDataClassify is a direct port of original_source's
// classifiers/jpeg_data.rs jpeg_data: classifies a cluster of bytes as
// likely JPEG entropy-coded scan data or not, via Shannon entropy plus
// marker-byte-sequence sanity checks, returning the index of the likely end
// of scan data within cluster when the cluster is classified as scan data.
func jpegDataClassify(cluster []byte) (bool, *int) {
	entropy := shannonEntropy(cluster)

	countFF00 := 0
	var firstFFxx *int
	var currRSTMarker *byte
	rstOrderingValid := true
	foundInvalidMarker := false

	if len(cluster) > 0 {
		for i := 0; i < len(cluster)-1; i++ {
			if cluster[i] != 0xff {
				continue
			}
			next := cluster[i+1]
			switch {
			case next == 0x00:
				if firstFFxx == nil {
					countFF00++
				}
			case next >= 0xd0 && next <= 0xd7:
				if firstFFxx == nil {
					if currRSTMarker != nil {
						if next == *currRSTMarker+1 || (next == 0xd0 && *currRSTMarker == 0xd7) {
							v := next
							currRSTMarker = &v
						} else {
							rstOrderingValid = false
						}
					} else {
						v := next
						currRSTMarker = &v
					}
				}
			case next >= 0x01 && next <= 0xbf:
				if firstFFxx == nil {
					foundInvalidMarker = true
				}
			default:
				if firstFFxx == nil {
					idx := i
					firstFFxx = &idx
				}
			}
			if foundInvalidMarker {
				break
			}
		}
	}

	entropyValid := entropy > entropyThreshold
	contentsValid := countFF00 >= ff00Threshold && rstOrderingValid && !foundInvalidMarker
	isLikelyJPEG := (entropyValid || countFF00 >= ff00CertaintyThreshold) && contentsValid

	if !isLikelyJPEG {
		return false, nil
	}
	return true, firstFFxx
}

func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	entropy := 0.0
	n := float64(len(data))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

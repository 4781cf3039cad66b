package validate

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Will-Banksy/carvekit/pairing"
	"github.com/Will-Banksy/carvekit/pattern"
)

// TestJPEGThresholdConstantsLocked guards the values ported verbatim from
// original_source's classifiers/jpeg_data.rs against accidental retuning.
func TestJPEGThresholdConstantsLocked(t *testing.T) {
	if entropyThreshold != 0.6 {
		t.Errorf("entropyThreshold = %v, want 0.6", entropyThreshold)
	}
	if ff00Threshold != 0 {
		t.Errorf("ff00Threshold = %v, want 0", ff00Threshold)
	}
	if ff00CertaintyThreshold != 4 {
		t.Errorf("ff00CertaintyThreshold = %v, want 4", ff00CertaintyThreshold)
	}
}

func jpegSegment(marker byte, data []byte) []byte {
	out := []byte{0xff, marker}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(data)+2))
	out = append(out, lenBuf...)
	out = append(out, data...)
	return out
}

func jpegCandidate(maxLen uint64) pairing.CarveCandidate {
	ft := &pattern.FileTypeSpec{Name: "jpeg", Extension: "jpg", MaxLength: maxLen}
	return pairing.CarveCandidate{FileType: ft, HeaderOffset: 0, TerminatorOffset: maxLen}
}

func TestJPEGValidatorAcceptsWellFormedFile(t *testing.T) {
	var window []byte
	window = append(window, 0xff, 0xd8) // SOI
	window = append(window, jpegSegment(jpegAPP0, make([]byte, 12))...)
	window = append(window, jpegSegment(jpegSOF0, make([]byte, 15))...)
	window = append(window, 0xff, 0xda, 0x00, 0x0c) // SOS header (length field, contents irrelevant to walker)
	window = append(window, make([]byte, 8)...)
	// entropy-coded scan data, byte-stuffed, then EOI
	window = append(window, 0x11, 0x22, 0xff, 0x00, 0x33, 0x44)
	window = append(window, 0xff, 0xd9) // EOI

	v := NewJPEGValidator()
	res := v.Validate(window, 0, jpegCandidate(uint64(len(window))), 512)

	if res.Verdict != ValidFull {
		t.Fatalf("expected ValidFull, got %v (detail %v)", res.Verdict, res.Detail)
	}
}

func TestJPEGValidatorFlagsMissingSOF(t *testing.T) {
	var window []byte
	window = append(window, 0xff, 0xd8)
	window = append(window, jpegSegment(jpegAPP0, make([]byte, 4))...)
	window = append(window, 0xff, 0xda, 0x00, 0x0c)
	window = append(window, make([]byte, 8)...)
	window = append(window, 0x11, 0x22)
	window = append(window, 0xff, 0xd9)

	v := NewJPEGValidator()
	res := v.Validate(window, 0, jpegCandidate(uint64(len(window))), 512)

	if res.Verdict == ValidFull {
		t.Errorf("expected file missing SOF0/SOF2 to not be ValidFull, got %v", res.Verdict)
	}
	if res.Detail != FormatError {
		t.Errorf("expected FormatError detail, got %v", res.Detail)
	}
}

func TestJPEGValidatorUnrecognisedWhenNoMarkersSeenBeforeCorruption(t *testing.T) {
	window := []byte{0xff, 0xd8, 0x01, 0x02, 0x03, 0x04}

	v := NewJPEGValidator()
	res := v.Validate(window, 0, jpegCandidate(uint64(len(window))), 512)

	if res.Detail != Unrecognised {
		t.Errorf("expected Unrecognised, got %v", res.Detail)
	}
}

func TestJPEGValidatorPartialWhenTruncatedAfterMandatorySegments(t *testing.T) {
	var window []byte
	window = append(window, 0xff, 0xd8)
	window = append(window, jpegSegment(jpegAPP0, make([]byte, 4))...)
	window = append(window, jpegSegment(jpegSOF0, make([]byte, 15))...)
	// truncated: no SOS/EOI, trailing garbage that isn't a marker
	window = append(window, 0x01, 0x02, 0x03)

	v := NewJPEGValidator()
	res := v.Validate(window, 0, jpegCandidate(uint64(len(window))), 512)

	if res.Detail != Partial {
		t.Errorf("expected Partial, got %v (verdict %v)", res.Detail, res.Verdict)
	}
}

func TestShannonEntropyOfUniformDataIsMax(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	got := shannonEntropy(data)
	if math.Abs(got-8.0) > 0.01 {
		t.Errorf("shannonEntropy(uniform 256 distinct bytes) = %v, want ~8.0", got)
	}
}

func TestShannonEntropyOfConstantDataIsZero(t *testing.T) {
	data := make([]byte, 64)
	got := shannonEntropy(data)
	if got != 0 {
		t.Errorf("shannonEntropy(constant data) = %v, want 0", got)
	}
}

func TestJpegDataClassifyRejectsLowEntropyRunOfZeros(t *testing.T) {
	cluster := make([]byte, 64)
	isJPEG, _ := jpegDataClassify(cluster)
	if isJPEG {
		t.Errorf("expected an all-zero cluster to not classify as JPEG scan data")
	}
}

func TestJpegDataClassifyRejectsInvalidMarkerByte(t *testing.T) {
	cluster := make([]byte, 32)
	for i := range cluster {
		cluster[i] = byte(i * 7)
	}
	cluster[10] = 0xff
	cluster[11] = 0x05 // reserved marker range 0x01..0xbf
	isJPEG, _ := jpegDataClassify(cluster)
	if isJPEG {
		t.Errorf("expected a cluster containing a reserved marker byte to not classify as JPEG scan data")
	}
}

func BenchmarkJPEGValidatorWellFormedFile(b *testing.B) {
	var window []byte
	window = append(window, 0xff, 0xd8)
	window = append(window, jpegSegment(jpegAPP0, make([]byte, 12))...)
	window = append(window, jpegSegment(jpegSOF0, make([]byte, 15))...)
	window = append(window, 0xff, 0xda, 0x00, 0x0c)
	window = append(window, make([]byte, 8)...)
	scanData := make([]byte, 4096)
	for i := range scanData {
		scanData[i] = byte(i * 31)
	}
	window = append(window, scanData...)
	window = append(window, 0xff, 0xd9)

	v := NewJPEGValidator()
	cand := jpegCandidate(uint64(len(window)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Validate(window, 0, cand, 512)
	}
}

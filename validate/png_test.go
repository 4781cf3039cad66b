package validate

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/Will-Banksy/carvekit/pairing"
	"github.com/Will-Banksy/carvekit/pattern"
)

// TestCRC32MatchesIHDRVector ports original_source's validation/png.rs
// test_crc32: an IHDR chunk's type+data bytes hashed with plain CRC-32/IEEE
// should reproduce the literal value recorded there.
func TestCRC32MatchesIHDRVector(t *testing.T) {
	data := []byte{0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x06, 0x40, 0x00, 0x00, 0x04, 0xB0, 0x08, 0x02, 0x00, 0x00, 0x00}
	want := uint32(0x2C6311C0)
	if got := crc32.ChecksumIEEE(data); got != want {
		t.Errorf("crc32.ChecksumIEEE(IHDR vector) = %#x, want %#x", got, want)
	}
}

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func buildChunk(chunkType string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	out = append(out, lenBuf...)
	out = append(out, []byte(chunkType)...)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(chunkType), data...))
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc)
	out = append(out, crcBuf...)
	return out
}

func buildIHDR(width, height uint32, bitDepth, colourType byte) []byte {
	data := make([]byte, 13)
	binary.BigEndian.PutUint32(data[0:4], width)
	binary.BigEndian.PutUint32(data[4:8], height)
	data[8] = bitDepth
	data[9] = colourType
	data[10] = 0
	data[11] = 0
	data[12] = 0
	return buildChunk(pngIHDR, data)
}

func validPNG() []byte {
	var out []byte
	out = append(out, pngSignature...)
	out = append(out, buildIHDR(1, 1, 8, 2)...)
	out = append(out, buildChunk(pngIDAT, []byte{1, 2, 3, 4})...)
	out = append(out, buildChunk(pngIEND, nil)...)
	return out
}

func testCandidate() pairing.CarveCandidate {
	ft := &pattern.FileTypeSpec{Name: "png", Extension: "png", MaxLength: 0}
	return pairing.CarveCandidate{FileType: ft}
}

func TestPNGValidatorAcceptsWellFormedFile(t *testing.T) {
	window := validPNG()
	v := NewPNGValidator()
	res := v.Validate(window, 0, testCandidate(), 512)

	if res.Verdict != ValidFull {
		t.Fatalf("expected ValidFull, got %v (detail %v, notes %q)", res.Verdict, res.Detail, res.Notes)
	}
}

func TestPNGValidatorFlagsMissingIDAT(t *testing.T) {
	var window []byte
	window = append(window, pngSignature...)
	window = append(window, buildIHDR(1, 1, 8, 2)...)
	window = append(window, buildChunk(pngIEND, nil)...)

	v := NewPNGValidator()
	res := v.Validate(window, 0, testCandidate(), 512)

	if res.Verdict == ValidFull {
		t.Errorf("expected a file with no IDAT to not be ValidFull, got %v", res.Verdict)
	}
}

func TestPNGValidatorFlagsMissingRequiredPLTE(t *testing.T) {
	var window []byte
	window = append(window, pngSignature...)
	window = append(window, buildIHDR(1, 1, 8, 3)...) // colour type 3 requires PLTE
	window = append(window, buildChunk(pngIDAT, []byte{1, 2, 3})...)
	window = append(window, buildChunk(pngIEND, nil)...)

	v := NewPNGValidator()
	res := v.Validate(window, 0, testCandidate(), 512)

	if res.Verdict == ValidFull {
		t.Errorf("expected colour-type-3 file missing PLTE to not be ValidFull, got %v", res.Verdict)
	}
}

func TestPNGValidatorDetectsCorruptCRC(t *testing.T) {
	window := validPNG()
	// corrupt a byte inside the IDAT chunk's data without fixing its CRC.
	idatDataIdx := len(pngSignature) + len(buildIHDR(1, 1, 8, 2)) + 8
	window[idatDataIdx] ^= 0xFF

	v := NewPNGValidator()
	res := v.Validate(window, 0, testCandidate(), 512)

	if res.Verdict == ValidFull {
		t.Errorf("expected corrupted IDAT to fail validation, got %v", res.Verdict)
	}
}

func TestPNGValidatorUnrecognisedChunkTypeYieldsPartial(t *testing.T) {
	var window []byte
	window = append(window, pngSignature...)
	window = append(window, buildIHDR(1, 1, 8, 2)...)
	// a chunk type byte outside [A-Za-z] is not a valid chunk type.
	bad := buildChunk(pngIDAT, []byte{1, 2, 3})
	bad[4] = 0x00
	window = append(window, bad...)

	v := NewPNGValidator()
	res := v.Validate(window, 0, testCandidate(), 512)

	if res.Verdict != ValidPartial {
		t.Errorf("expected ValidPartial for an unrecognised chunk type, got %v (detail %v)", res.Verdict, res.Detail)
	}
}

func TestPNGValidatorBiFragmentReconstructionRecoversSplitChunk(t *testing.T) {
	const clusterSize = 16

	chunkType := pngIDAT
	idatData := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 160}
	crc := crc32.ChecksumIEEE(append([]byte(chunkType), idatData...))

	var window []byte
	window = append(window, pngSignature...)
	window = append(window, buildIHDR(1, 1, 8, 2)...)

	// Insert a throwaway ancillary chunk (any 4 ASCII-letter type is
	// accepted) sized so that the IDAT chunk's data region starts exactly
	// on a cluster boundary, which (given the fixed 8-byte length+type
	// header) makes the cut point fall exactly 8 bytes into its data - see
	// reconstructChunk's intraOffset math.
	overheadBeforeData := len(window) + 12 + 8
	padLen := (clusterSize - overheadBeforeData%clusterSize) % clusterSize
	window = append(window, buildChunk("tEXt", make([]byte, padLen))...)

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(idatData)))
	window = append(window, lenBuf...)
	window = append(window, []byte(chunkType)...)

	chunkDataStart := len(window)
	if chunkDataStart%clusterSize != 0 {
		t.Fatalf("test setup bug: chunkDataStart %d not cluster-aligned", chunkDataStart)
	}

	prefixLen := 8
	window = append(window, idatData[:prefixLen]...)
	// one full cluster of unrelated filler sits between the two fragments.
	for i := 0; i < clusterSize; i++ {
		window = append(window, 0xEE)
	}
	window = append(window, idatData[prefixLen:]...)
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc)
	window = append(window, crcBuf...)

	window = append(window, buildChunk(pngIEND, nil)...)

	v := NewPNGValidator()
	res := v.Validate(window, 0, testCandidate(), clusterSize)

	if res.Verdict != ValidPartial {
		t.Fatalf("expected reconstruction to yield ValidPartial, got %v (detail %v, notes %q)", res.Verdict, res.Detail, res.Notes)
	}
	if len(res.Fragments) < 2 {
		t.Errorf("expected at least 2 fragments after a reconstruction split, got %d: %+v", len(res.Fragments), res.Fragments)
	}
}

func BenchmarkPNGValidatorWellFormedFile(b *testing.B) {
	window := validPNG()
	v := NewPNGValidator()
	cand := testCandidate()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.Validate(window, 0, cand, 512)
	}
}

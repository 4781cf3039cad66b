// Package validate implements the Validator Framework (§4.5-§4.7): a
// registry dispatching each pattern.FileTypeSpec to its format-aware
// Validator, plus the PNG/JPEG/ZIP validators themselves.
//
// Grounded on original_source's validation.rs (FileValidator trait,
// FileValidationType's worst_of lattice, DelegatingValidator) for the
// dispatch shape, and on gobeaver-filekit/filevalidator's registry.go +
// errors.go for the Go idiom of a name-keyed registry and a typed error
// struct.
package validate

import (
	"fmt"
	"sync"

	"github.com/Will-Banksy/carvekit/pairing"
)

// Verdict is the three-way outcome §3 defines for a Validation.
type Verdict int

const (
	Invalid Verdict = iota
	ValidPartial
	ValidFull
)

func (v Verdict) String() string {
	switch v {
	case ValidFull:
		return "valid-full"
	case ValidPartial:
		return "valid-partial"
	default:
		return "invalid"
	}
}

// DetailVerdict is the finer-grained per-chunk/per-segment classification a
// format validator folds internally before collapsing to a Verdict -
// ported from original_source's FileValidationType, since spec.md §4.5/4.6
// need more states than valid-full/valid-partial/invalid to describe *why*
// a PNG chunk or JPEG segment didn't validate (§12.2 of SPEC_FULL.md).
type DetailVerdict int

const (
	Correct DetailVerdict = iota
	Partial
	FormatError
	Corrupt
	Unrecognised
	Unanalysed
)

func (d DetailVerdict) String() string {
	switch d {
	case Correct:
		return "correct"
	case Partial:
		return "partial"
	case FormatError:
		return "format_error"
	case Corrupt:
		return "corrupted"
	case Unrecognised:
		return "unrecognised"
	default:
		return "unanalysed"
	}
}

// worstRank orders DetailVerdict from best to worst; WorstOf picks whichever
// of two verdicts ranks worse, a direct port of FileValidationType::worst_of.
var worstRank = map[DetailVerdict]int{
	Correct:      0,
	Partial:      1,
	FormatError:  2,
	Corrupt:      3,
	Unrecognised: 4,
	Unanalysed:   5,
}

// WorstOf folds two detail verdicts, keeping whichever is worse. Used to
// combine a running per-file verdict with each newly examined chunk or
// segment's own verdict.
func (d DetailVerdict) WorstOf(other DetailVerdict) DetailVerdict {
	if worstRank[other] > worstRank[d] {
		return other
	}
	return d
}

// ToVerdict collapses a DetailVerdict down to the three-way Verdict §3
// exposes externally: only Correct survives as valid-full, only Partial as
// valid-partial, everything else is invalid.
func (d DetailVerdict) ToVerdict() Verdict {
	switch d {
	case Correct:
		return ValidFull
	case Partial:
		return ValidPartial
	default:
		return Invalid
	}
}

// Fragment is a half-open `[StreamStart, StreamEnd)` byte range to be
// concatenated, in order, when writing the carved output (§3).
type Fragment struct {
	StreamStart uint64
	StreamEnd   uint64
}

// Validation is a format validator's verdict on one CarveCandidate (§3).
type Validation struct {
	Verdict       Verdict
	Detail        DetailVerdict
	Fragments     []Fragment
	FileExtension string
	// Notes records known-limitation caveats that don't change the verdict
	// itself but matter to a downstream reviewer - e.g. the JPEG scan-data
	// classifier's documented inability to distinguish interleaved scans
	// from a second JPEG (§4.6).
	Notes string
}

// Validator is the format-aware validation contract (§4.5-4.7). window is
// the byte range from the candidate's header offset through (at least) its
// terminator offset; windowOffset is window[0]'s absolute stream position,
// almost always equal to cand.HeaderOffset. clusterSize is the configured
// fragmentation cluster size (§6), used by bi-fragment reconstruction.
type Validator interface {
	Validate(window []byte, windowOffset uint64, cand pairing.CarveCandidate, clusterSize int) Validation
}

// DelegatingValidator reads a candidate's file type name and dispatches to
// the registered Validator for it, returning an Unanalysed verdict when
// none is registered - ported from original_source's DelegatingValidator,
// keyed by file type name (a Go string) instead of a closed FileTypeId enum
// so new formats can be registered without touching this package.
type DelegatingValidator struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewDelegatingValidator builds an empty registry.
func NewDelegatingValidator() *DelegatingValidator {
	return &DelegatingValidator{validators: make(map[string]Validator)}
}

// Register associates a Validator with a file type name (pattern.FileTypeSpec.Name).
func (d *DelegatingValidator) Register(name string, v Validator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.validators[name] = v
}

// Validate implements Validator, dispatching by cand.FileType.Name.
func (d *DelegatingValidator) Validate(window []byte, windowOffset uint64, cand pairing.CarveCandidate, clusterSize int) Validation {
	d.mu.RLock()
	v, ok := d.validators[cand.FileType.Name]
	d.mu.RUnlock()

	if !ok {
		return Validation{
			Verdict: Invalid,
			Detail:  Unanalysed,
			Notes:   fmt.Sprintf("no validator registered for file type %q", cand.FileType.Name),
		}
	}
	return v.Validate(window, windowOffset, cand, clusterSize)
}

// Package pattern implements the State-Table Builder: compiling byte
// patterns (with single-byte wildcards) into a failureless Aho-Corasick
// transition table, and the FileTypeSpec registry that drives both the
// Match Engine and the Pair Matcher.
package pattern

import "fmt"

// Elem is one element of a Pattern: either a concrete byte value (0-255)
// or the Wildcard sentinel ("any byte").
type Elem uint16

// Wildcard is the sentinel element value standing for "any byte", encoded
// the same way in both the trie builder and the fingerprint hash.
const Wildcard Elem = 0x8000

// Byte wraps a concrete byte value as a pattern Elem.
func Byte(b byte) Elem {
	return Elem(b)
}

// IsWildcard reports whether e is the wildcard sentinel.
func (e Elem) IsWildcard() bool {
	return e == Wildcard
}

// Pattern is an immutable byte-or-wildcard sequence carrying a stable
// 64-bit identifier, computed once at construction time.
type Pattern struct {
	elems []Elem
	id    uint64
}

// New builds a Pattern from a slice of elements, copying it so the result
// is safe from later mutation of the caller's slice.
func New(elems []Elem) Pattern {
	cp := make([]Elem, len(elems))
	copy(cp, elems)
	return Pattern{elems: cp, id: FingerprintElems(cp)}
}

// FromLiteral builds a Pattern from raw bytes, treating wildcardByte (the
// `.` meta-byte in the FileTypeSpec wire form) as a wildcard element rather
// than a literal match for that byte value.
func FromLiteral(lit []byte, wildcardByte byte) Pattern {
	elems := make([]Elem, len(lit))
	for i, b := range lit {
		if b == wildcardByte {
			elems[i] = Wildcard
		} else {
			elems[i] = Byte(b)
		}
	}
	return New(elems)
}

// Bytes builds a Pattern that matches the literal byte sequence exactly,
// with no wildcards.
func Bytes(lit string) Pattern {
	elems := make([]Elem, len(lit))
	for i := 0; i < len(lit); i++ {
		elems[i] = Byte(lit[i])
	}
	return New(elems)
}

// Elems returns the pattern's elements. The returned slice must not be
// mutated.
func (p Pattern) Elems() []Elem {
	return p.elems
}

// Len returns the number of elements in the pattern.
func (p Pattern) Len() int {
	return len(p.elems)
}

// ID returns the pattern's stable 64-bit identifier.
func (p Pattern) ID() uint64 {
	return p.id
}

func (p Pattern) String() string {
	out := make([]byte, len(p.elems))
	for i, e := range p.elems {
		if e.IsWildcard() {
			out[i] = '.'
		} else {
			out[i] = byte(e)
		}
	}
	return fmt.Sprintf("%q", out)
}

// PairStrategy names the algorithm the Pair Matcher uses to turn a header
// hit into a CarveCandidate. The carved-down spec (see DESIGN.md's Open
// Question decisions) defines exactly one strategy - nearest footer
// wins - so this exists for data-model completeness (§3 names it as a
// FileTypeSpec field) rather than to select between behaviors.
type PairStrategy int

// PairNearest is the only implemented pairing strategy: the nearest
// in-range footer wins.
const PairNearest PairStrategy = 0

// FileTypeSpec is a named mapping from header/footer patterns to carving
// behavior for one registered file type. Immutable once loaded.
type FileTypeSpec struct {
	// Name identifies the file type (also used as the validator lookup key).
	Name string
	// Extension is appended to carved output filenames.
	Extension string
	// Headers are the patterns that open a candidate range for this type.
	Headers []Pattern
	// Footers are the patterns that may close a candidate range. May be empty.
	Footers []Pattern
	// MaxLength bounds how far past a header a footer (or the synthetic
	// end-of-range) may be. Required when HasFooter() is false.
	MaxLength uint64
	// RequiresFooter discards a header hit that never finds an in-range
	// footer, instead of falling back to MaxLength.
	RequiresFooter bool
	// Pairing is carried for data-model parity with spec.md §3; the Pair
	// Matcher always applies PairNearest regardless of its value.
	Pairing PairStrategy
}

// HasFooter reports whether this file type has at least one footer pattern.
func (ft FileTypeSpec) HasFooter() bool {
	return len(ft.Footers) != 0
}

// Validate checks the internal consistency rules spec.md §9 requires of a
// FileTypeSpec: a type with no footer must have a max length, and a type
// with no footer cannot require one (self-contradictory).
func (ft FileTypeSpec) Validate() error {
	if !ft.HasFooter() && ft.MaxLength == 0 {
		return fmt.Errorf("file type %q has no footers and no max_length configured", ft.displayName())
	}
	if !ft.HasFooter() && ft.RequiresFooter {
		return fmt.Errorf("file type %q has no footers but requires_footer is set", ft.displayName())
	}
	return nil
}

func (ft FileTypeSpec) displayName() string {
	if ft.Extension != "" {
		return ft.Extension
	}
	if ft.Name != "" {
		return ft.Name
	}
	return "<unnamed>"
}

// MatchPart distinguishes whether a raw match's pattern_id corresponds to a
// header or a footer of its file type.
type MatchPart int

const (
	// Header marks a match as a file type's opening signature.
	Header MatchPart = iota
	// Footer marks a match as a file type's closing signature.
	Footer
)

// IDEntry is the value an IDIndex maps a pattern_id to: which registered
// file type (by index) the pattern belongs to, and whether it is a header
// or a footer of that type.
type IDEntry struct {
	TypeIndex int
	Type      *FileTypeSpec
	Part      MatchPart
}

// IDIndex maps a pattern_id (§3's stable 64-bit hash) back to the
// FileTypeSpec it was registered under, and whether it's a header or a
// footer. Built once by BuildIndex, read-only afterward - this is the
// "registry is a read-only handle" design from SPEC_FULL.md §9's cyclic-
// ownership note: patterns never hold back-pointers to their FileTypeSpec.
type IDIndex map[uint64]IDEntry

// BuildIndex preprocesses a set of FileTypeSpecs into an IDIndex, and
// returns an error (a ConfigError candidate, per spec.md §9's collision
// policy) if two header/footer patterns across the set collide on
// fingerprint - the spec requires header/footer signatures to be unique.
func BuildIndex(types []FileTypeSpec) (IDIndex, error) {
	idx := make(IDIndex, len(types)*2)
	for i := range types {
		ft := &types[i]
		if err := ft.Validate(); err != nil {
			return nil, err
		}
		for _, h := range ft.Headers {
			if prev, ok := idx[h.ID()]; ok {
				return nil, fmt.Errorf("pattern fingerprint collision: %s header %s collides with %s", ft.displayName(), h, prev.Type.displayName())
			}
			idx[h.ID()] = IDEntry{TypeIndex: i, Type: ft, Part: Header}
		}
		for _, f := range ft.Footers {
			if prev, ok := idx[f.ID()]; ok {
				return nil, fmt.Errorf("pattern fingerprint collision: %s footer %s collides with %s", ft.displayName(), f, prev.Type.displayName())
			}
			idx[f.ID()] = IDEntry{TypeIndex: i, Type: ft, Part: Footer}
		}
	}
	return idx, nil
}

// MaxPatternLength returns the length, in bytes, of the longest header or
// footer pattern across types - the value block-overlap sizing (§4.3) must
// be derived from.
func MaxPatternLength(types []FileTypeSpec) int {
	max := 0
	for _, ft := range types {
		for _, h := range ft.Headers {
			if h.Len() > max {
				max = h.Len()
			}
		}
		for _, f := range ft.Footers {
			if f.Len() > max {
				max = f.Len()
			}
		}
	}
	return max
}

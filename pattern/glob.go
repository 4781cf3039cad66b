package pattern

import (
	"fmt"

	"github.com/gobwas/glob"
)

// FilterByExtension restricts types to those whose Extension matches pat, a
// shell-style glob ("jp*g", "{png,jpg}") matched against the bare
// extension, without a leading dot - the same matching idiom
// filekit's FileSelector Glob() applies to path listing, applied here to
// pare down a loaded FileTypeSpec set to the formats an operator cares
// about carving on a given run.
func FilterByExtension(types []FileTypeSpec, pat string) ([]FileTypeSpec, error) {
	g, err := glob.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("pattern: compiling extension glob %q: %w", pat, err)
	}

	out := make([]FileTypeSpec, 0, len(types))
	for _, ft := range types {
		if g.Match(ft.Extension) {
			out = append(out, ft)
		}
	}
	return out, nil
}

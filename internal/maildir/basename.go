// Package maildir parses and splices maildir entry basenames of the
// form "<unique>[:2,<flags>]", the filename convention used inside a
// query's cur/ and new/ materialisation.
package maildir

import "strings"

const infoSeparator = ":2,"

// Basename is a parsed maildir filename: a unique id and an optional
// flags suffix.
type Basename struct {
	Unique string
	Flags  string // without the leading ":2,"; "" if absent
	hasTag bool
}

// Parse splits name into its unique id and flags, if any.
func Parse(name string) Basename {
	if idx := strings.Index(name, infoSeparator); idx >= 0 {
		return Basename{
			Unique: name[:idx],
			Flags:  name[idx+len(infoSeparator):],
			hasTag: true,
		}
	}
	return Basename{Unique: name}
}

// String renders the basename back to its filename form.
func (b Basename) String() string {
	if !b.hasTag && b.Flags == "" {
		return b.Unique
	}
	return b.Unique + infoSeparator + b.Flags
}

// SameMessage reports whether a and b share the same unique id, i.e.
// name the same message whatever their flags, without re-reading a
// symlink target.
func SameMessage(a, b string) bool {
	return Parse(a).Unique == Parse(b).Unique
}

// FlagsOnlyRename reports whether renaming `from` to `to` changes only
// the flags suffix (same unique id), and if so returns the new flags.
func FlagsOnlyRename(from, to string) (newFlags string, flagsOnly bool) {
	pf, pt := Parse(from), Parse(to)
	if pf.Unique != pt.Unique {
		return "", false
	}
	return pt.Flags, true
}

// WithFlags returns name's basename with its flags replaced, keeping
// its own unique id — used when fanning a flag-only rename out to
// other views that keep their own unique id (which is the same
// message's id, since forward symlinks for one real file all share a
// unique id on the filename history, but flags may have drifted).
func WithFlags(name, newFlags string) string {
	p := Parse(name)
	p.Flags = newFlags
	p.hasTag = true
	return p.String()
}

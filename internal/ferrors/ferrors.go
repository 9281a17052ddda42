// Package ferrors defines the error taxonomy used across fsmu's
// core components, so that the FUSE operation surface can map a
// failure onto the right errno without caring which component raised it.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error taxonomy entries from the design's error
// handling section. Kinds are compared with this package's Is
// function, not by string.
type Kind int

const (
	// KindNotFound means the lookup target does not exist.
	KindNotFound Kind = iota
	// KindPermissionDenied means the operation is disallowed by
	// configuration (e.g. unlink without --delete-remove).
	KindPermissionDenied
	// KindInvalidArgument means the caller passed a structurally
	// invalid request (e.g. a cross-query rename).
	KindInvalidArgument
	// KindSearchFailed means the external search tool returned an
	// exit code that isn't a recognised success code.
	KindSearchFailed
	// KindIOError wraps an underlying filesystem error.
	KindIOError
	// KindCorrupt means a symlink target was unreadable, or an
	// invariant the reverse index relies on was violated.
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermissionDenied:
		return "permission denied"
	case KindInvalidArgument:
		return "invalid argument"
	case KindSearchFailed:
		return "search failed"
	case KindIOError:
		return "io error"
	case KindCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged error. PathTooLong is deliberately not a
// Kind here: it is a fatal assertion on caller misuse, not a
// recoverable error to propagate — see vpath.MustValid.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. err may be nil, in which case Error()
// ends in "<nil>".
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given
// Kind, so callers can write ferrors.Is(err, ferrors.KindNotFound).
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// Sentinels carrying a bare kind with no op, path or cause. *Error has
// no Is method, so errors.Is matches these only by identity; to test
// an error's kind, use
//
//	if ferrors.Is(err, ferrors.KindNotFound) { ... }
var (
	NotFound         = New(KindNotFound, "", "", nil)
	PermissionDenied = New(KindPermissionDenied, "", "", nil)
	InvalidArgument  = New(KindInvalidArgument, "", "", nil)
	SearchFailed     = New(KindSearchFailed, "", "", nil)
	IOError          = New(KindIOError, "", "", nil)
	Corrupt          = New(KindCorrupt, "", "", nil)
)

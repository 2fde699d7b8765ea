package errcode

import (
	"errors"

	"exo/internal/cursor"
)

// FromCursor wraps one of internal/cursor's plain sentinel/typed errors
// into the categorical error kind the public façade reports, leaving any
// other error (e.g. from user code or a rewrite's own checks) untouched.
// internal/cursor deliberately returns plain Go errors — it has
// no notion of the façade's categorical kinds — so this is the one seam
// where cursor-navigation failures become ArgumentType/CursorKind/
// InvalidCursor diagnostics.
func FromCursor(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, cursor.ErrWrongKind):
		return Wrap(CursorKind, err, "cursor is the wrong kind for this operation")
	case errors.Is(err, cursor.ErrNoParent):
		return Wrap(InvalidCursor, err, "cursor has no parent")
	case errors.Is(err, cursor.ErrOutOfRange):
		return Wrap(InvalidCursor, err, "cursor navigation went out of range")
	default:
		var noSuch *cursor.ErrNoSuchPath
		if errors.As(err, &noSuch) {
			return Wrap(InvalidCursor, err, "cursor no longer resolves against its root")
		}
		return err
	}
}

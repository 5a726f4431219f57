package dataset

import (
	"errors"

	"github.com/rotisserie/eris"
)

// Kind classifies a dataset failure so callers can map it to a response.
type Kind int

// Error kinds.
const (
	// KindStorage covers read, reprojection and write failures.
	KindStorage Kind = iota
	// KindInvalid means the request was rejected before storage was touched.
	KindInvalid
	// KindNotFound means no feature carries the requested identifier.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	default:
		return "storage"
	}
}

// Error wraps a failure with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client-facing messages for the two request errors.
const (
	MsgMissingFields = "Missing id or Inst_Year"
	MsgNotFound      = "Feature not found"
)

// ErrMissingFields is the invalid-request cause for an update without an
// identifier or a new value.
var ErrMissingFields = eris.New(MsgMissingFields)

// ErrFeatureNotFound is the not-found cause for an update whose identifier
// matches no feature.
var ErrFeatureNotFound = eris.New(MsgNotFound)

func invalid(err error) *Error {
	return &Error{Kind: KindInvalid, Err: err}
}

func notFound(err error) *Error {
	return &Error{Kind: KindNotFound, Err: err}
}

func storage(err error, msg string) *Error {
	return &Error{Kind: KindStorage, Err: eris.Wrap(err, msg)}
}

// KindOf returns the Kind of err, or KindStorage when err carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorage
}

// IsInvalid reports whether err (or any error in its chain) is an
// invalid-request error.
func IsInvalid(err error) bool {
	return err != nil && KindOf(err) == KindInvalid
}

// IsNotFound reports whether err (or any error in its chain) is a not-found
// error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

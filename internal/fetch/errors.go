package fetch

import (
	"errors"
	"fmt"
)

// ErrorType classifies why a resource failed.
type ErrorType string

const (
	// OutsideRootError means the destination escapes the project root.
	OutsideRootError ErrorType = "outside_root"
	// TransportError means the download request itself failed.
	TransportError ErrorType = "transport"
	// FilesystemError means writing the downloaded bytes failed.
	FilesystemError ErrorType = "filesystem"
	// TooLargeError means the resource exceeded the configured size cap.
	TooLargeError ErrorType = "too_large"
)

// ErrTooLarge is the sentinel wrapped into TooLargeError failures.
var ErrTooLarge = errors.New("resource exceeds maximum size")

// Error is a typed per-resource failure. It carries enough context to be
// reported on its own line without the surrounding resource.
type Error struct {
	Type ErrorType
	URL  string
	Path string
	Err  error
}

func newError(errType ErrorType, res Resource, err error) *Error {
	return &Error{
		Type: errType,
		URL:  res.URL,
		Path: res.Path,
		Err:  err,
	}
}

func (e *Error) Error() string {
	switch e.Type {
	case OutsideRootError:
		return fmt.Sprintf("%v", e.Err)
	case TransportError:
		return fmt.Sprintf("downloading %s failed: %v", e.URL, e.Err)
	case TooLargeError:
		return fmt.Sprintf("downloading %s failed: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("writing %s failed: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

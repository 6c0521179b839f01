// Package errdefs holds the error classes shared by the storage, compression
// and ingestion layers. Callers wrap a cause with one of the classes and test
// for it with errors.Is.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFile = errors.New("no file uploaded")
	ErrDecode      = errors.New("unsupported or corrupt image")
	ErrIO          = errors.New("storage i/o failure")
	ErrNotFound    = errors.New("not found")
)

// Wrap tags cause with class. A nil cause yields nil.
func Wrap(class, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.Is(cause, class) {
		return cause
	}
	return fmt.Errorf("%w: %w", class, cause)
}

func IsMissingFile(err error) bool { return errors.Is(err, ErrMissingFile) }
func IsDecode(err error) bool      { return errors.Is(err, ErrDecode) }
func IsIO(err error) bool          { return errors.Is(err, ErrIO) }
func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }

package svndump

import (
	"errors"
	"fmt"
)

// ErrFormat tags every malformed-dump failure so callers can distinguish
// stream corruption from I/O errors.
var ErrFormat = errors.New("malformed dump")

func newFormatError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

func newChecksumError(algo, path, expected, actual string) error {
	return fmt.Errorf("%w: %s mismatch for %s: expected %s, got %s",
		ErrFormat, algo, path, expected, actual)
}

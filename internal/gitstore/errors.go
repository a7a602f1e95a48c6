package gitstore

import (
	"errors"
	"fmt"
)

// ErrNoBranch is returned when a path cannot be routed to any declared
// branch.
var ErrNoBranch = errors.New("no branch for path")

// ErrNotTree is returned when a path operation descends into a blob.
var ErrNotTree = errors.New("not a tree")

func newStoreError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

package octree

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityExceeded = errors.New("octree: capacity exceeded")
	ErrPoolExhausted    = errors.New("octree: node pool exhausted before growth")
)

// CapacityError is returned when a build needs more of a resource than the
// configured ceiling allows. The build is aborted; nothing is truncated.
type CapacityError struct {
	Resource string
	Required uint64
	Limit    uint64
}

// Get the amount by which the requirement exceeds the limit.
func (e *CapacityError) Overflow() uint64 {
	return e.Required - e.Limit
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s required %d, limit %d (overflow %d)", ErrCapacityExceeded, e.Resource, e.Required, e.Limit, e.Overflow())
}

// Implements errors.Is support.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

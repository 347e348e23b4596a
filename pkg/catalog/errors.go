package catalog

import (
	"errors"
	"fmt"
)

// ErrUnknownType is matched by every lookup failure for an unregistered
// type identifier.
var ErrUnknownType = errors.New("unknown fastener type")

// UnknownTypeError carries the identifier that failed to resolve.
type UnknownTypeError struct {
	ID string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s %q", ErrUnknownType.Error(), e.ID)
}

// Is makes errors.Is(err, ErrUnknownType) succeed.
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

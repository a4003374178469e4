package memory

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the memory services. Callers match with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidPriority = fmt.Errorf("%w: priority must be an integer in [%d, %d]", ErrInvalidArgument, PriorityMin, PriorityMax)
	ErrConflict        = errors.New("conflict")
	ErrPolicyDenied    = errors.New("policy denied")
)

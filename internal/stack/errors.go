package stack

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidArgumentError is returned when an operation is rejected before any mutation.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

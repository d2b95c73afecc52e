package network

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownNode indicates an id that was never created.
	ErrUnknownNode = errors.New("network: unknown node")

	// ErrDelayOutOfRange indicates a delay below one step or above the
	// configured maximum.
	ErrDelayOutOfRange = errors.New("network: delay out of range")

	// ErrFrozenTopology indicates a change attempted while a simulation
	// is running.
	ErrFrozenTopology = errors.New("network: cannot modify the network while simulating")

	// ErrInvalidConfig indicates bad kernel settings or arguments.
	ErrInvalidConfig = errors.New("network: invalid configuration")
)

// DeliveryError wraps a failure while handing an event to its target.
type DeliveryError struct {
	Step    int64
	Sender  int
	Target  int
	Wrapped error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("network: step %d: delivering from %d to %d: %v", e.Step, e.Sender, e.Target, e.Wrapped)
}

func (e *DeliveryError) Unwrap() error {
	return e.Wrapped
}

package node

import (
	"errors"
	"fmt"
)

var (
	ErrBadProperty       = errors.New("node: bad property")
	ErrUnknownReceptor   = errors.New("node: unknown receptor type")
	ErrIncompatibleEvent = errors.New("node: incompatible event type")
	ErrUnknownRecordable = errors.New("node: unknown recordable")
	ErrLoggingInterval   = errors.New("node: recording interval must be a positive multiple of the resolution")
)

// PropertyError reports a rejected status value.
type PropertyError struct {
	Model  string
	Key    string
	Reason string
}

func (e *PropertyError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Model, e.Key, e.Reason)
}

func (e *PropertyError) Unwrap() error {
	return ErrBadProperty
}

func BadProperty(model, key, reason string) error {
	return &PropertyError{Model: model, Key: key, Reason: reason}
}

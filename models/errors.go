package models

import (
	"errors"
	"fmt"
)

// ErrComplaintNotFound is returned when the requested complaint does not
// exist, including when a locked re-read during create-or-increment finds the
// row gone. It must reach the HTTP layer unwrapped.
var ErrComplaintNotFound = errors.New("complaint not found")

// CreationFailedError wraps any failure of the create-or-increment path other
// than an internal not-found.
type CreationFailedError struct {
	Err error
}

func (e *CreationFailedError) Error() string {
	return fmt.Sprintf("failed to add complaint: %v", e.Err)
}

func (e *CreationFailedError) Unwrap() error {
	return e.Err
}

// UpdateFailedError wraps any failure of the content update path other than
// an internal not-found.
type UpdateFailedError struct {
	Err error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("failed to update complaint: %v", e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

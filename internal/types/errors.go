package types

import (
	"errors"
	"fmt"
)

// ErrNetwork marks a request that never produced a parseable response.
var ErrNetwork = errors.New("network failure")

// ApplicationError is a response that was received but reported failure.
type ApplicationError struct {
	Op      string
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsApplication reports whether err wraps an *ApplicationError.
func IsApplication(err error) bool {
	var ae *ApplicationError
	return errors.As(err, &ae)
}

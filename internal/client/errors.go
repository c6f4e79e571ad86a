package client

import "fmt"

// OperationError is returned for any failed request. Its message only names
// the attempted action; the status and server detail are kept for callers
// that want them.
type OperationError struct {
	Action     string
	StatusCode int
	// Kind is set when the server answers with structured errors.
	Kind   string
	Detail string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("Failed to %s", e.Action)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

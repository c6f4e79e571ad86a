package tree

import (
	"errors"
	"fmt"
)

var (
	ErrPathNotFound      = errors.New("path not found")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrValidationFailed  = errors.New("validation failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrRevisionConflict  = errors.New("revision conflict")
)

// Kinds lists the failure kinds in the order Kind checks them.
var Kinds = []error{
	ErrPathNotFound,
	ErrInvalidTarget,
	ErrValidationFailed,
	ErrRevisionConflict,
	ErrPersistenceFailed,
}

type Op string

const (
	OpUpdate Op = "update"
	OpAdd    Op = "add"
	OpDelete Op = "delete"
)

// MutationError reports a failed mutation. It unwraps to both its kind and
// the underlying cause.
type MutationError struct {
	Op   Op
	Path Path
	Kind error
	Err  error
}

func (e *MutationError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	case errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *MutationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns the taxonomy sentinel carried by err, or nil.
func Kind(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName is the short name used in structured API responses.
func KindName(kind error) string {
	switch kind {
	case ErrPathNotFound:
		return "PathNotFound"
	case ErrInvalidTarget:
		return "InvalidTarget"
	case ErrValidationFailed:
		return "ValidationFailed"
	case ErrRevisionConflict:
		return "RevisionConflict"
	case ErrPersistenceFailed:
		return "PersistenceFailed"
	}
	return "Unknown"
}

func fail(op Op, path Path, kind error, err error) *MutationError {
	return &MutationError{Op: op, Path: path, Kind: kind, Err: err}
}

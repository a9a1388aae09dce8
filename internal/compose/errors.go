package compose

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation error")

// Kind classifies a ValidationError.
type Kind int

const (
	MissingRequiredField Kind = iota + 1
	EmptySourceList
	NoProfileSelected
	UnknownMode
)

func (k Kind) String() string {
	switch k {
	case MissingRequiredField:
		return "MissingRequiredField"
	case EmptySourceList:
		return "EmptySourceList"
	case NoProfileSelected:
		return "NoProfileSelected"
	case UnknownMode:
		return "UnknownMode"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ValidationError is a client-local rejection. It never reaches the network.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(kind Kind, field string) *ValidationError {
	var msg string
	switch kind {
	case MissingRequiredField:
		msg = "Language and Audio Style are required."
	case EmptySourceList:
		msg = "Add at least one article URL."
	case NoProfileSelected:
		msg = "Select a profile to generate from."
	}
	return &ValidationError{Kind: kind, Field: field, Message: msg}
}

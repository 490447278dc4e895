package chart

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("chart not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrChartLocked     = errors.New("chart is locked")
	// ErrConflict means the chart changed status between read and write.
	ErrConflict = errors.New("chart was modified concurrently")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid chart transition")
)

type TransitionError struct {
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a chart in status %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

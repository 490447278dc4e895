package document

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrChartNotFound     = errors.New("chart not found")
	ErrChartLocked       = errors.New("chart is locked")
	ErrTooLarge          = fmt.Errorf("document exceeds %d MiB", MaxUploadBytes>>20)
	ErrOCRNotTracked     = errors.New("document is not tracked by OCR")
	ErrSignedURLDisabled = errors.New("signed url unavailable")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

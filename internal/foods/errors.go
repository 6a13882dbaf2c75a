package foods

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable = errors.New("dataset source unavailable")
	ErrMissingColumn     = errors.New("required column missing")
	ErrMalformed         = errors.New("malformed dataset")
)

// DataLoadError reports why a dataset could not be loaded. It is fatal at
// startup: no request should be served without a dataset.
type DataLoadError struct {
	Source string
	Line   int    // 1-based CSV line, 0 when not row specific
	Column string // offending column, if any
	Err    error
}

func (e *DataLoadError) Error() string {
	msg := fmt.Sprintf("load dataset %q", e.Source)
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	return msg + ": " + e.Err.Error()
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

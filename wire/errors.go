package wire

import (
	"fmt"
	"strings"
)

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath  []string // e.g., ["wifis", "location", "latitude"]
	Err        error    // underlying error
	IsDecoding bool
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	op := "encoding"
	if e.IsDecoding {
		op = "decoding"
	}
	if len(e.FieldPath) == 0 {
		return fmt.Sprintf("%s error: %v", op, e.Err)
	}
	return fmt.Sprintf("%s error at proto path %s: %v", op, strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

func newFieldError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func wrapEncodingFieldError(err error, fieldName string) error {
	return wrapWithField(err, fieldName, false)
}

func wrapDecodingFieldError(err error, fieldName string) error {
	return wrapWithField(err, fieldName, true)
}

// wrapWithField prepends fieldName to the path of err, creating the FieldError if needed
func wrapWithField(err error, fieldName string, decoding bool) error {
	if err == nil {
		return nil
	}

	if fe, ok := err.(*FieldError); ok {
		return &FieldError{
			FieldPath:  append([]string{fieldName}, fe.FieldPath...),
			Err:        fe.Err,
			IsDecoding: fe.IsDecoding,
		}
	}

	return &FieldError{
		FieldPath:  []string{fieldName},
		Err:        err,
		IsDecoding: decoding,
	}
}

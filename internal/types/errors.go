package types

import (
	"errors"
	"fmt"
)

// LoadError reports unreadable or unsupported input.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// FetchError reports a network fetch failure. Batch loaders drop the item and continue.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaParseError reports model output that does not match the requested structure.
type SchemaParseError struct {
	Reason string
	Err    error
}

func (e *SchemaParseError) Error() string {
	if e.Err == nil {
		return "could not parse model output: " + e.Reason
	}
	return fmt.Sprintf("could not parse model output: %s: %v", e.Reason, e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

// ModelCallError reports a provider, auth or network failure calling the model.
type ModelCallError struct {
	Op  string
	Err error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call %s failed: %v", e.Op, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

func NewSchemaError(reason string, err error) error {
	return &SchemaParseError{Reason: reason, Err: err}
}

func NewModelError(op string, err error) error {
	return &ModelCallError{Op: op, Err: err}
}

func IsLoadError(err error) bool {
	var e *LoadError
	return errors.As(err, &e)
}

func IsFetchError(err error) bool {
	var e *FetchError
	return errors.As(err, &e)
}

func IsSchemaError(err error) bool {
	var e *SchemaParseError
	return errors.As(err, &e)
}

func IsModelError(err error) bool {
	var e *ModelCallError
	return errors.As(err, &e)
}

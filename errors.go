package replica

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrUnsupportedShape indicates a value has no structural description the engine can traverse.
	ErrUnsupportedShape = errors.New("unsupported shape")

	// ErrMissingElementType indicates a sequence type does not declare its element type.
	ErrMissingElementType = errors.New("missing element type")

	// ErrInvalidTag indicates a clone struct tag has an unknown value.
	ErrInvalidTag = errors.New("invalid tag")
)

// ShapeError represents a classification or traversal failure.
// It wraps a sentinel error with the offending type and, when known, the
// composite member through which the value was reached.
type ShapeError struct {
	Err   error        // Underlying sentinel error (ErrUnsupportedShape, ErrMissingElementType)
	Type  reflect.Type // Type that could not be copied
	Field string       // Member name that held the value
}

func (e *ShapeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %v (field %s)", e.Err.Error(), e.Type, e.Field)
	}
	return fmt.Sprintf("%s: %v", e.Err.Error(), e.Type)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}

// ConfigError represents an invalid member annotation.
type ConfigError struct {
	Err   error        // Underlying sentinel error (ErrInvalidTag)
	Type  reflect.Type // Declaring struct type
	Field string       // Field carrying the tag
	Value string       // Offending tag value
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q on %v.%s", e.Err.Error(), e.Value, e.Type, e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// newShapeError creates a ShapeError for an untraversable type.
func newShapeError(sentinel error, typ reflect.Type) error {
	return &ShapeError{
		Err:  sentinel,
		Type: typ,
	}
}

// newConfigError creates a ConfigError for a bad tag value.
func newConfigError(sentinel error, typ reflect.Type, field, value string) error {
	return &ConfigError{
		Err:   sentinel,
		Type:  typ,
		Field: field,
		Value: value,
	}
}

// withField names the member a shape error was reached through.
// The innermost member wins; errors that already carry a field are returned as-is.
func withField(err error, field string) error {
	var se *ShapeError
	if errors.As(err, &se) && se.Field == "" {
		se.Field = field
	}
	return err
}

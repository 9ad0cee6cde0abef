package itemerr

import (
	"errors"
	"fmt"
)

var (
	// Declaration errors
	ErrParse     = errors.New("cannot parse declaration")
	ErrNotStruct = errors.New("not a struct declaration")

	// Directive errors
	ErrInvalidDirective = errors.New("invalid directive")

	// Validation errors
	ErrMethodConflict   = errors.New("method conflicts with generated method")
	ErrUnsupportedField = errors.New("field cannot be cloned")

	// Generation errors
	ErrTemplate = errors.New("template execution failed")
	ErrFormat   = errors.New("generated code does not format")
)

func NewInvalidDirectiveError(typeName string, directive string, details string) error {
	return fmt.Errorf("%w: '%s' on %s: %s", ErrInvalidDirective, directive, typeName, details)
}

func NewMethodConflictError(typeName string, method string) error {
	return fmt.Errorf("%w: %s already declares %s", ErrMethodConflict, typeName, method)
}

func NewUnsupportedFieldError(typeName string, field string, details string) error {
	return fmt.Errorf("%w: %s.%s: %s", ErrUnsupportedField, typeName, field, details)
}

func NewTemplateError(typeName string, action Action, cause error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrTemplate, action, typeName, cause)
}

func NewFormatError(fileName string, cause error) error {
	return fmt.Errorf("%w: %s: %v", ErrFormat, fileName, cause)
}

package itemx

import (
	"errors"
	"fmt"
)

var (
	// ErrConversion indicates a value could not be turned into, or read back
	// from, its structured representation.
	ErrConversion = errors.New("structured value conversion failed")

	// ErrUnknownItem indicates no item type is registered under a name.
	ErrUnknownItem = errors.New("unknown item type")

	// ErrDuplicateItem indicates an item type was registered twice.
	ErrDuplicateItem = errors.New("item type already registered")

	// ErrUnknownCodec indicates a codec name is not supported.
	ErrUnknownCodec = errors.New("unknown codec")
)

// Direction tells which way a conversion was going when it failed.
type Direction string

const (
	ToStructured   Direction = "to structured value"
	FromStructured Direction = "from structured value"
)

// ConversionError reports a failed conversion between a Go value and a Value.
type ConversionError struct {
	Type      string
	Direction Direction
	Cause     error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s %s: %v", ErrConversion.Error(), e.Type, e.Direction, e.Cause)
	}
	return fmt.Sprintf("%s: %s %s", ErrConversion.Error(), e.Type, e.Direction)
}

func (e *ConversionError) Unwrap() error {
	return ErrConversion
}

func newConversionError(typeName string, dir Direction, cause error) error {
	return &ConversionError{
		Type:      typeName,
		Direction: dir,
		Cause:     cause,
	}
}

func NewUnknownItemError(name string) error {
	return fmt.Errorf("%w: '%s'", ErrUnknownItem, name)
}

func NewDuplicateItemError(name string) error {
	return fmt.Errorf("%w: '%s'", ErrDuplicateItem, name)
}

func NewUnknownCodecError(name string) error {
	return fmt.Errorf("%w: '%s' (supported: json, msgpack, yaml)", ErrUnknownCodec, name)
}

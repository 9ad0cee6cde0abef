package codegen

import (
	"fmt"
	"go/token"

	"github.com/hengadev/itemx/internal/itemerr"
)

// ParseError reports a declaration that cannot be augmented: either the
// source does not parse, or it is not a single struct declaration.
type ParseError struct {
	Pos   token.Position // zero when the position is unknown
	Name  string         // declared name, when one was found
	Found string         // what was found instead of a struct
	Err   error          // itemerr.ErrParse or itemerr.ErrNotStruct
	Cause error          // underlying go/parser error, if any
}

func (e *ParseError) Error() string {
	msg := e.Err.Error()
	if e.Name != "" {
		msg = fmt.Sprintf("cannot augment %s: %s", e.Name, msg)
	}
	if e.Found != "" {
		msg = fmt.Sprintf("%s (found %s)", msg, e.Found)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Pos.IsValid() {
		return e.Pos.String() + ": " + msg
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func newNotStructError(pos token.Position, name, found string) error {
	return &ParseError{
		Pos:   pos,
		Name:  name,
		Found: found,
		Err:   itemerr.ErrNotStruct,
	}
}

func newParseError(pos token.Position, found string, cause error) error {
	return &ParseError{
		Pos:   pos,
		Found: found,
		Err:   itemerr.ErrParse,
		Cause: cause,
	}
}

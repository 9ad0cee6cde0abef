package codegen

import (
	"fmt"

	"github.com/hengadev/errsx"

	"github.com/hengadev/itemx/internal/itemerr"
)

// GeneratedMethods lists every method written for an augmented struct.
var GeneratedMethods = []string{
	"Serialize",
	"Deserialize",
	"Clone",
	"GoString",
	"AsAny",
	"BoxClone",
	"ToValue",
}

// StructValidator checks that an annotated struct can be augmented without
// producing code that fails to compile
type StructValidator struct {
	reserved []string
}

// NewStructValidator creates a new struct validator
func NewStructValidator() *StructValidator {
	return &StructValidator{
		reserved: GeneratedMethods,
	}
}

// ValidateStruct returns nil when info can be augmented. Otherwise the error
// is an errsx.Map keyed by the offending directive, method or field.
func (v *StructValidator) ValidateStruct(info StructInfo) error {
	var errs errsx.Map

	v.validateDirectives(info, &errs)

	// Go rejects a method sharing its name with a method or field of the type.
	for _, method := range info.Methods {
		if v.isReserved(method) {
			errs.Set(fmt.Sprintf("method %s", method), itemerr.NewMethodConflictError(info.StructName, "method "+method))
		}
	}
	for _, field := range info.Fields {
		if v.isReserved(field.Name) {
			errs.Set(fmt.Sprintf("field %s", field.Name), itemerr.NewMethodConflictError(info.StructName, "field "+field.Name))
		}
	}

	return errs.AsError()
}

// validateDirectives checks the itemx directives attached to the struct
func (v *StructValidator) validateDirectives(info StructInfo, errs *errsx.Map) {
	count := 0
	for _, d := range info.Directives {
		key := fmt.Sprintf("directive %s", d.Text)
		switch d.Name {
		case ItemDirective:
			count++
			if d.Args != "" {
				errs.Set(key, itemerr.NewInvalidDirectiveError(info.StructName, d.Text, "takes no arguments"))
			}
		case DeriveDirective:
			errs.Set(key, itemerr.NewInvalidDirectiveError(info.StructName, d.Text, "declaration is already augmented"))
		default:
			errs.Set(key, itemerr.NewInvalidDirectiveError(info.StructName, d.Text, "unknown directive"))
		}
	}

	if count > 1 {
		errs.Set("directive count", itemerr.NewInvalidDirectiveError(info.StructName, "//"+DirectivePrefix+ItemDirective, fmt.Sprintf("repeated %d times", count)))
	}
}

// isReserved checks if a name is taken by a generated method
func (v *StructValidator) isReserved(name string) bool {
	for _, reserved := range v.reserved {
		if name == reserved {
			return true
		}
	}
	return false
}

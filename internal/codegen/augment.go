package codegen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path"
	"strings"

	"github.com/hengadev/itemx/internal/itemerr"
)

// DefaultRuntimeImport is the import path of the package defining Item,
// Value and Codec.
const DefaultRuntimeImport = "github.com/hengadev/itemx"

// GenerationConfig holds the settings shared by Augment and file generation
type GenerationConfig struct {
	OutputSuffix  string
	RuntimeImport string
	RuntimeAlias  string
	Register      bool
}

// DefaultGenerationConfig returns the settings used when none are configured
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		OutputSuffix:  "_item",
		RuntimeImport: DefaultRuntimeImport,
		Register:      true,
	}
}

// Alias returns the identifier generated code uses for the runtime package
func (c GenerationConfig) Alias() string {
	if c.RuntimeAlias != "" {
		return c.RuntimeAlias
	}
	if c.RuntimeImport == "" {
		return path.Base(DefaultRuntimeImport)
	}
	return path.Base(c.RuntimeImport)
}

func (c GenerationConfig) withDefaults() GenerationConfig {
	if c.RuntimeImport == "" {
		c.RuntimeImport = DefaultRuntimeImport
	}
	return c
}

// AugmentedUnit is the output of Augment. Every part refers to the same
// struct, Name.
type AugmentedUnit struct {
	Name string

	// Declaration is the input declaration, verbatim, preceded by the
	// //itemx:derive capability directive.
	Declaration string

	// Capabilities holds the derived Serialize, Deserialize, Clone and
	// GoString methods.
	Capabilities string

	// Implementation holds the Item methods bound to Name.
	Implementation string

	// Imports lists the import specs the generated code needs.
	Imports []string
}

// Source renders the whole unit as gofmt-formatted declarations.
func (u *AugmentedUnit) Source() (string, error) {
	src := strings.Join([]string{u.Declaration, u.Capabilities, u.Implementation}, "\n\n")
	formatted, err := format.Source([]byte(src + "\n"))
	if err != nil {
		return "", itemerr.NewFormatError(u.Name, err)
	}
	return string(formatted), nil
}

// Augment transforms the source of a single struct declaration into its
// augmented unit. The input may carry doc comments and type parameters;
// field shape is irrelevant. Anything other than exactly one struct type
// declaration fails with a *ParseError and no output.
//
// Augment keeps no state: identical input yields identical output.
func Augment(src []byte, config GenerationConfig) (*AugmentedUnit, error) {
	config = config.withDefaults()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", augmentHeader+string(src), parser.ParseComments)
	if err != nil {
		return nil, newParseError(token.Position{}, "", err)
	}

	spec, err := singleTypeSpec(fset, file)
	if err != nil {
		return nil, relocate(err)
	}

	structType, found := asStruct(spec)
	if structType == nil {
		return nil, relocate(newNotStructError(fset.Position(spec.Pos()), spec.Name.Name, found))
	}

	info := analyzeStruct(file.Name.Name, spec, structType)
	info.Pos = fset.Position(spec.Pos())

	engine, err := NewTemplateEngine()
	if err != nil {
		return nil, err
	}
	data, err := BuildTemplateData(info, nil, config)
	if err != nil {
		return nil, err
	}
	rendered, err := engine.RenderItem(data)
	if err != nil {
		return nil, err
	}

	return &AugmentedUnit{
		Name:           info.StructName,
		Declaration:    deriveDirective() + "\n" + strings.TrimSpace(string(src)),
		Capabilities:   rendered.Capabilities,
		Implementation: rendered.Implementation,
		Imports:        []string{importSpec(config)},
	}, nil
}

// augmentHeader turns a lone declaration into a parsable file.
const augmentHeader = "package augment\n\n"

// relocate maps a ParseError position from the wrapped file back to the input
func relocate(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Pos.IsValid() {
		pe.Pos.Line -= strings.Count(augmentHeader, "\n")
		pe.Pos.Offset -= len(augmentHeader)
	}
	return err
}

// singleTypeSpec returns the only type spec of file, failing when the file
// holds anything else
func singleTypeSpec(fset *token.FileSet, file *ast.File) (*ast.TypeSpec, error) {
	switch len(file.Decls) {
	case 0:
		return nil, newParseError(token.Position{}, "no declaration", nil)
	case 1:
	default:
		return nil, newParseError(fset.Position(file.Decls[1].Pos()), fmt.Sprintf("%d declarations", len(file.Decls)), nil)
	}

	switch d := file.Decls[0].(type) {
	case *ast.FuncDecl:
		return nil, newNotStructError(fset.Position(d.Pos()), d.Name.Name, "func")
	case *ast.GenDecl:
		if d.Tok != token.TYPE {
			return nil, newNotStructError(fset.Position(d.Pos()), genDeclName(d), d.Tok.String())
		}
		if len(d.Specs) != 1 {
			return nil, newParseError(fset.Position(d.Pos()), fmt.Sprintf("%d type specs", len(d.Specs)), nil)
		}
		return d.Specs[0].(*ast.TypeSpec), nil
	default:
		return nil, newParseError(fset.Position(d.Pos()), "bad declaration", nil)
	}
}

package codegen

import (
	"fmt"
	"go/ast"
	"strings"

	"github.com/hengadev/itemx/internal/itemerr"
)

// cloneScope describes the types visible to the Clone of one struct
type cloneScope struct {
	// known lists augmented structs of the package, cloned through their
	// own Clone method. It includes the struct being generated.
	known map[string]bool

	// locals holds the type declarations of the package. Named types that
	// are not augmented are copied through their underlying type.
	locals map[string]*ast.TypeSpec

	// params lists the type parameters of the struct being generated.
	params map[string]bool

	// runtime is the identifier of the runtime package.
	runtime string
}

// cloneBuilder synthesizes the statements of a generated Clone method. The
// method starts from a shallow copy (out := x); the builder only emits
// statements for values whose shallow copy would alias storage: slices,
// maps, pointers, and arrays, structs or local named types holding those.
//
// Every statement is written so that its destination already holds a
// shallow copy of its source, and no statement spells a type: the generated
// file needs no import besides the runtime package.
//
// Types from other packages, type parameters, interfaces, funcs and
// channels are copied shallowly. A local type that is not augmented and
// refers to itself cannot be expanded and is reported as unsupported.
type cloneBuilder struct {
	scope cloneScope
	lines []string
	err   error

	// expanding and inspecting hold the local types being walked by assign
	// and shallow respectively.
	expanding  map[string]bool
	inspecting map[string]bool
}

// cloneSteps returns the statements that turn the shallow copy "out" of "x"
// into a deep copy
func cloneSteps(structName string, fields []FieldInfo, scope cloneScope) ([]string, error) {
	if scope.runtime == "" {
		scope.runtime = DefaultGenerationConfig().Alias()
	}
	b := &cloneBuilder{
		scope:      scope,
		expanding:  make(map[string]bool),
		inspecting: make(map[string]bool),
	}
	for _, field := range fields {
		if field.expr == nil || field.Name == "" || field.Name == "_" || b.shallow(field.expr) {
			continue
		}
		b.assign("out."+field.Name, "x."+field.Name, field.expr, 0)
		if b.err != nil {
			return nil, itemerr.NewUnsupportedFieldError(structName, field.Name, b.err.Error())
		}
	}
	return b.lines, nil
}

func (b *cloneBuilder) emit(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

// shallow reports whether plain assignment fully copies a value of type expr
func (b *cloneBuilder) shallow(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.ParenExpr:
		return b.shallow(t.X)
	case *ast.Ident, *ast.IndexExpr, *ast.IndexListExpr:
		if b.knownBase(t) {
			return false
		}
		key, underlying := b.resolve(t)
		if underlying == nil || b.inspecting[key] {
			return true
		}
		b.inspecting[key] = true
		defer delete(b.inspecting, key)
		return b.shallow(underlying)
	case *ast.StarExpr, *ast.MapType:
		return false
	case *ast.ArrayType:
		return t.Len != nil && b.shallow(t.Elt)
	case *ast.StructType:
		for _, field := range t.Fields.List {
			if !b.shallow(field.Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// knownBase reports whether expr names an augmented struct
func (b *cloneBuilder) knownBase(expr ast.Expr) bool {
	name := typeName(expr)
	return name != "" && !b.scope.params[name] && b.scope.known[name]
}

// resolve returns the underlying type of a local named type, with type
// arguments substituted. The key identifies the instantiation. The
// underlying type is nil for anything that is not a local type.
func (b *cloneBuilder) resolve(expr ast.Expr) (string, ast.Expr) {
	name := typeName(expr)
	if name == "" || b.scope.params[name] {
		return "", nil
	}
	spec, ok := b.scope.locals[name]
	if !ok {
		return "", nil
	}

	args := typeArgs(expr)
	if spec.TypeParams == nil {
		return name, spec.Type
	}
	var params []string
	for _, field := range spec.TypeParams.List {
		for _, ident := range field.Names {
			params = append(params, ident.Name)
		}
	}
	if len(params) != len(args) {
		return "", nil
	}
	env := make(map[string]ast.Expr, len(params))
	for i, param := range params {
		env[param] = args[i]
	}
	return exprString(expr), substitute(spec.Type, env)
}

// assign emits statements making dst, which holds a shallow copy of src of
// type expr, a deep copy. depth keeps temporaries of nested blocks apart.
func (b *cloneBuilder) assign(dst, src string, expr ast.Expr, depth int) {
	if b.err != nil {
		return
	}

	switch t := expr.(type) {
	case *ast.ParenExpr:
		b.assign(dst, src, t.X, depth)

	case *ast.Ident, *ast.IndexExpr, *ast.IndexListExpr:
		if b.knownBase(t) {
			b.emit("%s = %s.Clone()", dst, paren(src))
			return
		}
		key, underlying := b.resolve(t)
		if underlying != nil && b.expanding[key] {
			b.err = fmt.Errorf("type %s refers to itself; annotate it with //itemx:item to give it a Clone method", key)
			return
		}
		if underlying == nil || b.shallow(t) {
			return
		}
		b.expanding[key] = true
		b.assign(dst, src, underlying, depth)
		delete(b.expanding, key)

	case *ast.StarExpr:
		p := fmt.Sprintf("p%d", depth)
		b.emit("if %s != nil {", src)
		if b.knownBase(t.X) {
			b.emit("%s := (*%s).Clone()", p, paren(src))
		} else {
			b.emit("%s := *%s", p, paren(src))
			b.assign(p, "*"+paren(src), t.X, depth+1)
		}
		b.emit("%s = &%s", dst, p)
		b.emit("}")

	case *ast.ArrayType:
		if t.Len == nil {
			b.emit("if %s != nil {", src)
			b.emit("%s = append(%s[:0:0], %s...)", dst, paren(src), src)
		}
		if !b.shallow(t.Elt) {
			i := fmt.Sprintf("i%d", depth)
			b.emit("for %s := range %s {", i, src)
			b.assign(dst+"["+i+"]", paren(src)+"["+i+"]", t.Elt, depth+1)
			b.emit("}")
		}
		if t.Len == nil {
			b.emit("}")
		}

	case *ast.MapType:
		b.emit("if %s != nil {", src)
		b.emit("%s = %s.CloneMap(%s)", dst, b.scope.runtime, src)
		if !b.shallow(t.Value) {
			k, v, c := fmt.Sprintf("k%d", depth), fmt.Sprintf("v%d", depth), fmt.Sprintf("c%d", depth)
			b.emit("for %s, %s := range %s {", k, v, src)
			b.emit("%s := %s", c, v)
			b.assign(c, v, t.Value, depth+1)
			b.emit("%s[%s] = %s", dst, k, c)
			b.emit("}")
		}
		b.emit("}")

	case *ast.StructType:
		for _, field := range t.Fields.List {
			if b.shallow(field.Type) {
				continue
			}
			names := field.Names
			if len(names) == 0 {
				names = []*ast.Ident{ast.NewIdent(embeddedName(field.Type))}
			}
			for _, name := range names {
				if name.Name == "" || name.Name == "_" {
					continue
				}
				b.assign(dst+"."+name.Name, paren(src)+"."+name.Name, field.Type, depth+1)
			}
		}
	}
}

// typeName returns the name of a possibly instantiated type defined in the
// current package, or "" for anything else
func typeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return typeName(t.X)
	case *ast.IndexListExpr:
		return typeName(t.X)
	case *ast.ParenExpr:
		return typeName(t.X)
	default:
		return ""
	}
}

func typeArgs(expr ast.Expr) []ast.Expr {
	switch t := expr.(type) {
	case *ast.IndexExpr:
		return []ast.Expr{t.Index}
	case *ast.IndexListExpr:
		return t.Indices
	case *ast.ParenExpr:
		return typeArgs(t.X)
	default:
		return nil
	}
}

// substitute replaces the type parameters in expr with their arguments.
// Only the type shapes the clone builder walks are rebuilt.
func substitute(expr ast.Expr, env map[string]ast.Expr) ast.Expr {
	switch t := expr.(type) {
	case *ast.Ident:
		if arg, ok := env[t.Name]; ok {
			return arg
		}
		return t
	case *ast.ParenExpr:
		return &ast.ParenExpr{X: substitute(t.X, env)}
	case *ast.StarExpr:
		return &ast.StarExpr{X: substitute(t.X, env)}
	case *ast.ArrayType:
		return &ast.ArrayType{Len: t.Len, Elt: substitute(t.Elt, env)}
	case *ast.MapType:
		return &ast.MapType{Key: substitute(t.Key, env), Value: substitute(t.Value, env)}
	case *ast.IndexExpr:
		return &ast.IndexExpr{X: t.X, Index: substitute(t.Index, env)}
	case *ast.IndexListExpr:
		indices := make([]ast.Expr, len(t.Indices))
		for i, index := range t.Indices {
			indices[i] = substitute(index, env)
		}
		return &ast.IndexListExpr{X: t.X, Indices: indices}
	case *ast.StructType:
		fields := &ast.FieldList{}
		for _, field := range t.Fields.List {
			fields.List = append(fields.List, &ast.Field{Names: field.Names, Type: substitute(field.Type, env)})
		}
		return &ast.StructType{Fields: fields}
	default:
		return expr
	}
}

// paren wraps dereference expressions so they can be indexed or selected
func paren(expr string) string {
	if strings.HasPrefix(expr, "*") {
		return "(" + expr + ")"
	}
	return expr
}

package codegen

import (
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// StructInfo contains information about a struct annotated with //itemx:item
type StructInfo struct {
	PackageName string
	StructName  string
	SourceFile  string
	Pos         token.Position
	TypeParams  []TypeParam
	Fields      []FieldInfo
	Directives  []Directive

	// Methods already declared on the type in hand-written files of the
	// package, used to detect clashes with generated methods.
	Methods []string

	// locals holds the type declarations of the package, used to clone
	// fields of local named types.
	locals map[string]*ast.TypeSpec
}

// IsGeneric reports whether the struct declares type parameters
func (s StructInfo) IsGeneric() bool {
	return len(s.TypeParams) > 0
}

// TypeParam is one group of type parameters sharing a constraint, e.g. "K, V comparable".
type TypeParam struct {
	Names      []string
	Constraint string
}

// FieldInfo contains information about a single struct field
type FieldInfo struct {
	Name     string
	Type     string
	Tag      string
	Embedded bool

	expr ast.Expr
}

// DiscoveryConfig holds configuration for struct discovery
type DiscoveryConfig struct {
	SkipPackages []string

	// OutputSuffix identifies files written by a previous run. They are
	// skipped along with any file carrying a "Code generated" header.
	OutputSuffix string
}

// DiscoverStructs discovers structs annotated with //itemx:item in the given
// package directory. A directive attached to anything other than a struct
// declaration fails discovery with a *ParseError.
func DiscoverStructs(packagePath string, config *DiscoveryConfig) ([]StructInfo, error) {
	if config == nil {
		config = &DiscoveryConfig{}
	}

	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, packagePath, func(fi os.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go") && !IsOutputFile(fi.Name(), config.OutputSuffix)
	}, parser.ParseComments)
	if err != nil {
		return nil, newParseError(token.Position{Filename: packagePath}, "", err)
	}

	pkgNames := make([]string, 0, len(pkgs))
	for pkgName := range pkgs {
		pkgNames = append(pkgNames, pkgName)
	}
	sort.Strings(pkgNames)

	var (
		structs []StructInfo
		errs    *multierror.Error
	)
	for _, pkgName := range pkgNames {
		// Skip test packages
		if strings.HasSuffix(pkgName, "_test") || containsString(config.SkipPackages, pkgName) {
			continue
		}

		files := sortedFiles(pkgs[pkgName])
		members := collectMembers(files)
		locals := collectTypes(files)

		for _, f := range files {
			if ast.IsGenerated(f.file) {
				continue
			}
			found, err := discoverStructsInFile(fset, f.name, f.file, pkgName)
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			for i := range found {
				found[i].Methods = members[found[i].StructName]
				found[i].locals = locals
			}
			structs = append(structs, found...)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.SliceStable(structs, func(i, j int) bool {
		if structs[i].SourceFile != structs[j].SourceFile {
			return structs[i].SourceFile < structs[j].SourceFile
		}
		return structs[i].Pos.Offset < structs[j].Pos.Offset
	})

	return structs, nil
}

type namedFile struct {
	name string
	file *ast.File
}

func sortedFiles(pkg *ast.Package) []namedFile {
	files := make([]namedFile, 0, len(pkg.Files))
	for name, file := range pkg.Files {
		files = append(files, namedFile{name: name, file: file})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files
}

// collectMembers maps type names to the methods declared on them in
// hand-written files of the package
func collectMembers(files []namedFile) map[string][]string {
	members := make(map[string][]string)
	for _, f := range files {
		if ast.IsGenerated(f.file) {
			continue
		}
		for _, decl := range f.file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
				continue
			}
			if recv := receiverTypeName(fn.Recv.List[0].Type); recv != "" {
				members[recv] = append(members[recv], fn.Name.Name)
			}
		}
	}
	return members
}

// collectTypes maps the names of the package level types of hand-written
// files to their declarations
func collectTypes(files []namedFile) map[string]*ast.TypeSpec {
	decls := make(map[string]*ast.TypeSpec)
	for _, f := range files {
		if ast.IsGenerated(f.file) {
			continue
		}
		for _, decl := range f.file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				typeSpec := spec.(*ast.TypeSpec)
				decls[typeSpec.Name.Name] = typeSpec
			}
		}
	}
	return decls
}

// discoverStructsInFile discovers annotated structs in a single file
func discoverStructsInFile(fset *token.FileSet, fileName string, file *ast.File, pkgName string) ([]StructInfo, error) {
	var (
		structs []StructInfo
		errs    *multierror.Error
	)

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if hasItemDirective(parseDirectives(d.Doc)) {
				errs = multierror.Append(errs, newNotStructError(fset.Position(d.Pos()), d.Name.Name, "func"))
			}

		case *ast.GenDecl:
			declDirectives := parseDirectives(d.Doc)
			if d.Tok != token.TYPE {
				if hasItemDirective(declDirectives) {
					errs = multierror.Append(errs, newNotStructError(fset.Position(d.Pos()), genDeclName(d), d.Tok.String()))
				}
				continue
			}

			for _, spec := range d.Specs {
				typeSpec := spec.(*ast.TypeSpec)
				directives := parseDirectives(typeSpec.Doc)
				// A directive on an unparenthesized declaration belongs to its only spec.
				if !d.Lparen.IsValid() {
					directives = append(declDirectives, directives...)
				}
				if !hasItemDirective(directives) {
					continue
				}

				pos := fset.Position(typeSpec.Pos())
				structType, found := asStruct(typeSpec)
				if structType == nil {
					errs = multierror.Append(errs, newNotStructError(pos, typeSpec.Name.Name, found))
					continue
				}

				info := analyzeStruct(pkgName, typeSpec, structType)
				info.SourceFile = filepath.Base(fileName)
				info.Pos = pos
				info.Directives = directives
				structs = append(structs, info)
			}
		}
	}

	return structs, errs.ErrorOrNil()
}

// asStruct returns the struct type of spec, or a description of what the
// spec declares instead
func asStruct(spec *ast.TypeSpec) (*ast.StructType, string) {
	if spec.Assign.IsValid() {
		return nil, "type alias"
	}
	if st, ok := spec.Type.(*ast.StructType); ok {
		return st, ""
	}
	return nil, describeType(spec.Type)
}

// describeType names the kind of a non-struct type expression for error messages
func describeType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.InterfaceType:
		return "interface"
	case *ast.FuncType:
		return "func type"
	case *ast.MapType:
		return "map type"
	case *ast.ChanType:
		return "chan type"
	case *ast.ArrayType:
		if t.Len == nil {
			return "slice type"
		}
		return "array type"
	case *ast.StarExpr:
		return "pointer type"
	default:
		return "type " + exprString(expr)
	}
}

// analyzeStruct builds the StructInfo of an annotated struct
func analyzeStruct(pkgName string, spec *ast.TypeSpec, structType *ast.StructType) StructInfo {
	structInfo := StructInfo{
		PackageName: pkgName,
		StructName:  spec.Name.Name,
		Fields:      []FieldInfo{},
	}

	if spec.TypeParams != nil {
		for _, field := range spec.TypeParams.List {
			param := TypeParam{Constraint: exprString(field.Type)}
			for _, name := range field.Names {
				param.Names = append(param.Names, name.Name)
			}
			structInfo.TypeParams = append(structInfo.TypeParams, param)
		}
	}

	structInfo.Fields = analyzeFields(structType)
	return structInfo
}

// analyzeFields flattens a field list, one FieldInfo per declared name
func analyzeFields(structType *ast.StructType) []FieldInfo {
	fields := []FieldInfo{}
	if structType.Fields == nil {
		return fields
	}

	for _, field := range structType.Fields.List {
		tag := ""
		if field.Tag != nil {
			tag = strings.Trim(field.Tag.Value, "`")
		}

		if len(field.Names) == 0 {
			fields = append(fields, FieldInfo{
				Name:     embeddedName(field.Type),
				Type:     exprString(field.Type),
				Tag:      tag,
				Embedded: true,
				expr:     field.Type,
			})
			continue
		}

		for _, name := range field.Names {
			fields = append(fields, FieldInfo{
				Name: name.Name,
				Type: exprString(field.Type),
				Tag:  tag,
				expr: field.Type,
			})
		}
	}
	return fields
}

// embeddedName returns the implicit field name of an embedded type
func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	default:
		return ""
	}
}

// receiverTypeName returns the base type name of a method receiver
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.ParenExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}

// exprString prints a type expression as written in the source, struct tags
// included.
func exprString(expr ast.Expr) string {
	var buf strings.Builder
	if err := printer.Fprint(&buf, token.NewFileSet(), expr); err != nil {
		return types.ExprString(expr)
	}
	return buf.String()
}

func genDeclName(d *ast.GenDecl) string {
	for _, spec := range d.Specs {
		if vs, ok := spec.(*ast.ValueSpec); ok && len(vs.Names) > 0 {
			return vs.Names[0].Name
		}
	}
	return ""
}

// IsOutputFile reports whether name is a file written by the generator
func IsOutputFile(name, suffix string) bool {
	return suffix != "" && strings.HasSuffix(name, suffix+".go")
}

// OutputFileName returns the name of the file generated for source:
// "article.go" becomes "article_item.go" with the default suffix.
func OutputFileName(source, suffix string) string {
	return strings.TrimSuffix(filepath.Base(source), ".go") + suffix + ".go"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

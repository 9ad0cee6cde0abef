package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"path"
	"strings"
	"text/template"

	"github.com/hengadev/itemx/internal/itemerr"
)

const capabilitiesTemplate = `
// Serialize encodes x with codec c.
func (x {{.Receiver}}) Serialize(c {{.Runtime}}.Codec) ([]byte, error) {
	return c.Marshal(x)
}

// Deserialize decodes data produced by codec c into x.
func (x *{{.Receiver}}) Deserialize(c {{.Runtime}}.Codec, data []byte) error {
	return c.Unmarshal(data, x)
}

// Clone returns a deep copy of x.
func (x {{.Receiver}}) Clone() {{.Receiver}} {
	out := x
{{- range .CloneSteps}}
	{{.}}
{{- end}}
	return out
}

// GoString implements fmt.GoStringer with a deterministic dump of x.
func (x {{.Receiver}}) GoString() string {
	return {{.Runtime}}.Debug(x)
}
`

const implementationTemplate = `
// AsAny returns x so its concrete type can be recovered from an {{.Runtime}}.Item.
func (x {{.Receiver}}) AsAny() any {
	return x
}

// BoxClone returns a deep copy of x as an {{.Runtime}}.Item.
func (x {{.Receiver}}) BoxClone() {{.Runtime}}.Item {
	return x.Clone()
}

// ToValue converts x into its structured value. It panics if x cannot be represented.
func (x {{.Receiver}}) ToValue() {{.Runtime}}.Value {
	return {{.Runtime}}.MustToValue(x)
}
{{- if not .Generic}}

var _ {{.Runtime}}.Item = {{.StructName}}{}
{{- end}}
{{- if .Register}}

func init() {
	{{.Runtime}}.MustRegister[{{.StructName}}]()
}
{{- end}}
`

// GeneratedHeader starts every file written by the generator
const GeneratedHeader = "// Code generated by itemx-gen"

const fileTemplate = `// Code generated by itemx-gen {{.GeneratorVersion}}. DO NOT EDIT.
// Source: {{.SourceFile}}

package {{.PackageName}}

import {{.ImportSpec}}
{{range .Items}}
{{.Capabilities}}

{{.Implementation}}
{{end}}`

// TemplateData holds the per-struct values used by the templates
type TemplateData struct {
	StructName string
	Receiver   string // "Page[K, V]" or "Article"
	Runtime    string // import alias of the runtime package
	Generic    bool
	Register   bool
	CloneSteps []string
}

// RenderedItem holds the formatted capability and implementation blocks of one struct
type RenderedItem struct {
	StructName     string
	Capabilities   string
	Implementation string
}

// FileData holds the values of one generated file
type FileData struct {
	PackageName      string
	SourceFile       string
	GeneratorVersion string
	ImportSpec       string
	Items            []RenderedItem
}

// TemplateEngine renders generated code
type TemplateEngine struct {
	capabilities   *template.Template
	implementation *template.Template
	file           *template.Template
}

// NewTemplateEngine parses the generator templates
func NewTemplateEngine() (*TemplateEngine, error) {
	capabilities, err := template.New("capabilities").Parse(capabilitiesTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse capabilities template: %w", err)
	}
	implementation, err := template.New("implementation").Parse(implementationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse implementation template: %w", err)
	}
	file, err := template.New("file").Parse(fileTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file template: %w", err)
	}

	return &TemplateEngine{
		capabilities:   capabilities,
		implementation: implementation,
		file:           file,
	}, nil
}

// BuildTemplateData derives the template values of a struct. known lists the
// augmented structs of the same package; their fields are cloned through
// their own Clone method. It fails when a field cannot be deep copied.
func BuildTemplateData(info StructInfo, known map[string]bool, config GenerationConfig) (TemplateData, error) {
	withSelf := make(map[string]bool, len(known)+1)
	for name, ok := range known {
		withSelf[name] = ok
	}
	withSelf[info.StructName] = true

	params := make(map[string]bool)
	for _, p := range info.TypeParams {
		for _, name := range p.Names {
			params[name] = true
		}
	}

	steps, err := cloneSteps(info.StructName, info.Fields, cloneScope{
		known:   withSelf,
		locals:  info.locals,
		params:  params,
		runtime: config.Alias(),
	})
	if err != nil {
		return TemplateData{}, err
	}

	data := TemplateData{
		StructName: info.StructName,
		Receiver:   info.StructName,
		Runtime:    config.Alias(),
		Generic:    info.IsGeneric(),
		Register:   config.Register && !info.IsGeneric(),
		CloneSteps: steps,
	}

	if info.IsGeneric() {
		var args []string
		for _, p := range info.TypeParams {
			args = append(args, p.Names...)
		}
		data.Receiver = info.StructName + "[" + strings.Join(args, ", ") + "]"
	}

	return data, nil
}

// RenderItem renders and formats the capability and implementation blocks of one struct
func (e *TemplateEngine) RenderItem(data TemplateData) (RenderedItem, error) {
	capabilities, err := e.execute(e.capabilities, data)
	if err != nil {
		return RenderedItem{}, itemerr.NewTemplateError(data.StructName, itemerr.Augment, err)
	}
	implementation, err := e.execute(e.implementation, data)
	if err != nil {
		return RenderedItem{}, itemerr.NewTemplateError(data.StructName, itemerr.Augment, err)
	}

	capabilities, err = formatDecls(capabilities)
	if err != nil {
		return RenderedItem{}, itemerr.NewFormatError(data.StructName, err)
	}
	implementation, err = formatDecls(implementation)
	if err != nil {
		return RenderedItem{}, itemerr.NewFormatError(data.StructName, err)
	}

	return RenderedItem{
		StructName:     data.StructName,
		Capabilities:   capabilities,
		Implementation: implementation,
	}, nil
}

// GenerateFile renders a complete, gofmt-formatted Go file
func (e *TemplateEngine) GenerateFile(data FileData) ([]byte, error) {
	src, err := e.execute(e.file, data)
	if err != nil {
		return nil, itemerr.NewTemplateError(data.SourceFile, itemerr.Generate, err)
	}
	formatted, err := format.Source([]byte(src))
	if err != nil {
		return nil, itemerr.NewFormatError(data.SourceFile, err)
	}
	return formatted, nil
}

func (e *TemplateEngine) execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatDecls gofmts a list of declarations without a package clause
func formatDecls(src string) (string, error) {
	formatted, err := format.Source([]byte(strings.TrimSpace(src) + "\n"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(formatted)), nil
}

// ImportSpec renders the import spec of the runtime package
func (c GenerationConfig) ImportSpec() string {
	return importSpec(c.withDefaults())
}

// importSpec renders the runtime import, aliased only when the alias differs
// from the last path element
func importSpec(config GenerationConfig) string {
	if config.Alias() == path.Base(config.RuntimeImport) {
		return fmt.Sprintf("%q", config.RuntimeImport)
	}
	return fmt.Sprintf("%s %q", config.Alias(), config.RuntimeImport)
}

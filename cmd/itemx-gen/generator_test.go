package main

import (
	"bytes"
	"context"
	"errors"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/itemx/internal/itemerr"
)

const articleSource = `package scrape

// Article is a scraped news article.
//
//itemx:item
type Article struct {
	Title   string   ` + "`json:\"title\"`" + `
	Content string   ` + "`json:\"content\"`" + `
	Tags    []string ` + "`json:\"tags,omitempty\"`" + `
	Author  *Author  ` + "`json:\"author,omitempty\"`" + `
}

//itemx:item
type Author struct {
	Name string
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	config := DefaultConfig()
	config.Cache.Path = filepath.Join(t.TempDir(), "cache.json")
	config.Workers = 2
	return config
}

func newTestGenerator(t *testing.T, config *Config, opts GeneratorOptions) *Generator {
	t.Helper()
	opts.Logger = zerolog.Nop()
	if opts.Out == nil {
		opts.Out = &bytes.Buffer{}
	}
	generator, err := NewGenerator(config, opts)
	require.NoError(t, err)
	return generator
}

func TestGenerateWritesItemFile(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)

	generator := newTestGenerator(t, testConfig(t), GeneratorOptions{})
	report, err := generator.Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)

	outputFile := filepath.Join(pkgDir, "article_item.go")
	assert.Equal(t, []string{outputFile}, report.Generated)

	code, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	src := string(code)

	assert.True(t, strings.HasPrefix(src, "// Code generated by itemx-gen 1.0.0. DO NOT EDIT.\n// Source: article.go\n"))
	assert.Contains(t, src, "package scrape")
	assert.Contains(t, src, "func (x Article) Clone() Article {")
	assert.Contains(t, src, "func (x Author) Clone() Author {")
	assert.Contains(t, src, "p0 := (*x.Author).Clone()", "known structs clone through their own method")
	assert.Contains(t, src, "itemx.MustRegister[Article]()")

	_, err = parser.ParseFile(token.NewFileSet(), outputFile, code, 0)
	assert.NoError(t, err)
}

func TestGenerateIsStable(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)
	outputFile := filepath.Join(pkgDir, "article_item.go")

	config := testConfig(t)
	config.Cache.Enabled = false

	_, err := newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	first, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	// The generated file of the first run must not be picked up as a source.
	_, err = newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	second, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestGenerateUsesCache(t *testing.T) {
	pkgDir := t.TempDir()
	sourceFile := writeFile(t, pkgDir, "article.go", articleSource)
	config := testConfig(t)

	report, err := newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Len(t, report.Generated, 1)

	report, err = newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Empty(t, report.Generated)
	assert.Equal(t, []string{pkgDir}, report.Cached)

	require.NoError(t, os.WriteFile(sourceFile, []byte(strings.Replace(articleSource, "Name string", "Name  string\n\tEmail string", 1)), 0644))
	report, err = newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Len(t, report.Generated, 1, "source change invalidates the cache")
}

func TestGenerateDryRun(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)

	var out bytes.Buffer
	generator := newTestGenerator(t, testConfig(t), GeneratorOptions{DryRun: true, Verbose: true, Out: &out})
	report, err := generator.Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)

	assert.Empty(t, report.Generated)
	assert.Contains(t, out.String(), "Would generate: "+filepath.Join(pkgDir, "article_item.go"))
	assert.Contains(t, out.String(), "func (x Article) Clone() Article {")

	_, err = os.Stat(filepath.Join(pkgDir, "article_item.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateRemovesStaleFiles(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)
	stale := writeFile(t, pkgDir, "removed_item.go", "// Code generated by itemx-gen 1.0.0. DO NOT EDIT.\n\npackage scrape\n")
	handWritten := writeFile(t, pkgDir, "manual_item.go", "package scrape\n\nconst Manual = true\n")

	config := testConfig(t)
	report, err := newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)

	assert.Equal(t, []string{stale}, report.Removed)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(handWritten)
	assert.NoError(t, err, "files without the generated header are kept")
}

func TestGenerateOutputDirOverride(t *testing.T) {
	pkgDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "gen")
	writeFile(t, pkgDir, "article.go", articleSource)

	report, err := newTestGenerator(t, testConfig(t), GeneratorOptions{OutputDir: outDir}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(outDir, "article_item.go")}, report.Generated)
}

func TestGenerateSkipsConfiguredPackages(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)

	config := testConfig(t)
	config.Packages[pkgDir] = PackageConfig{Skip: true}

	report, err := newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Equal(t, []string{pkgDir}, report.Skipped)
	assert.Empty(t, report.Generated)
}

func TestGenerateAggregatesPackageErrors(t *testing.T) {
	good := t.TempDir()
	writeFile(t, good, "article.go", articleSource)

	notStruct := t.TempDir()
	writeFile(t, notStruct, "color.go", "package labels\n\n//itemx:item\ntype Color int\n")

	conflict := t.TempDir()
	writeFile(t, conflict, "page.go", "package pages\n\n//itemx:item\ntype Page struct{ Body string }\n\nfunc (p Page) Clone() Page { return p }\n")

	report, err := newTestGenerator(t, testConfig(t), GeneratorOptions{}).Generate(context.Background(), []string{good, notStruct, conflict})
	require.Error(t, err)

	assert.True(t, errors.Is(err, itemerr.ErrNotStruct))
	assert.Contains(t, err.Error(), notStruct)
	assert.Contains(t, err.Error(), conflict)
	assert.Contains(t, err.Error(), "method Clone")

	// The valid package is still generated.
	assert.Equal(t, []string{filepath.Join(good, "article_item.go")}, report.Generated)
	_, statErr := os.Stat(filepath.Join(notStruct, "color_item.go"))
	assert.True(t, os.IsNotExist(statErr), "no partial output")
}

func TestGenerateHonoursCancellation(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGenerator(t, testConfig(t), GeneratorOptions{}).Generate(ctx, []string{pkgDir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGroupBySource(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "b.go", "package p\n\n//itemx:item\ntype B struct{}\n")
	writeFile(t, pkgDir, "a.go", "package p\n\n//itemx:item\ntype A1 struct{}\n\n//itemx:item\ntype A2 struct{}\n")

	sources, err := sourceFiles(pkgDir, "_item")
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	report, err := newTestGenerator(t, testConfig(t), GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(pkgDir, "a_item.go"), filepath.Join(pkgDir, "b_item.go")}, report.Generated)
}

func TestGenerateWithSQLiteCache(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)

	config := testConfig(t)
	config.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	report, err := newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Len(t, report.Generated, 1)

	report, err = newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	assert.Equal(t, []string{pkgDir}, report.Cached)
}

const eventSource = `package calendar

import (
	"time"
)

type Tags []string

type Labels map[string]string

// Meta is not an item itself.
type Meta struct {
	Labels    Labels
	Published *time.Time
}

type Window[T any] struct {
	Slots []T
}

//itemx:item
type Event struct {
	Title    string
	At       *time.Time
	Waits    map[string]time.Duration
	Reminder map[string]*time.Duration
	Tags     Tags
	Meta     Meta
	Sections map[string]Tags
	Windows  []Window[Tags]
	Venue    *Venue
}

//itemx:item
type Venue struct {
	Name  string
	Rooms []string
}
`

// runtimeStub declares the API of the runtime package that generated code uses
const runtimeStub = `package rt

import "maps"

type Value struct{ raw any }

type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type Item interface {
	AsAny() any
	BoxClone() Item
	ToValue() Value
}

func Debug(v any) string { return "" }

func MustToValue(x any) Value { return Value{raw: x} }

func MustRegister[T Item]() {}

func CloneMap[M ~map[K]V, K comparable, V any](m M) M { return maps.Clone(m) }
`

// typeCheckPackage type-checks every Go file of dir, resolving the runtime
// import to runtimeStub and everything else from source
func typeCheckPackage(t *testing.T, dir, runtimeImport string) error {
	t.Helper()
	fset := token.NewFileSet()
	fromSource := importer.ForCompiler(fset, "source", nil)

	stubFile, err := parser.ParseFile(fset, "rt.go", runtimeStub, 0)
	require.NoError(t, err)
	stub, err := (&types.Config{Importer: fromSource}).Check(runtimeImport, fset, []*ast.File{stubFile}, nil)
	require.NoError(t, err)

	pkgs, err := parser.ParseDir(fset, dir, nil, 0)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)

	var files []*ast.File
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			files = append(files, file)
		}
	}

	config := &types.Config{Importer: importerFunc(func(path string) (*types.Package, error) {
		if path == runtimeImport {
			return stub, nil
		}
		return fromSource.Import(path)
	})}
	_, err = config.Check("example.com/calendar", fset, files, nil)
	return err
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) {
	return f(path)
}

func TestGeneratedCodeTypeChecks(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "event.go", eventSource)

	config := testConfig(t)
	config.Cache.Enabled = false
	config.Generation.RuntimeImport = "example.com/rt"
	config.Generation.RuntimeAlias = "itemx"

	report, err := newTestGenerator(t, config, GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(pkgDir, "event_item.go")}, report.Generated)

	code, err := os.ReadFile(report.Generated[0])
	require.NoError(t, err)
	assert.Contains(t, string(code), `itemx "example.com/rt"`)
	assert.NotContains(t, string(code), "time.", "clone bodies never spell imported types")

	assert.NoError(t, typeCheckPackage(t, pkgDir, "example.com/rt"), "generated code:\n%s", code)
}

func TestGenerateRejectsRecursiveLocalType(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "list.go", `package lists

type Node struct {
	Value int
	Next  *Node
}

//itemx:item
type List struct {
	Head *Node
}
`)

	_, err := newTestGenerator(t, testConfig(t), GeneratorOptions{}).Generate(context.Background(), []string{pkgDir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, itemerr.ErrUnsupportedField))
	assert.Contains(t, err.Error(), "annotate it with //itemx:item")

	_, statErr := os.Stat(filepath.Join(pkgDir, "list_item.go"))
	assert.True(t, os.IsNotExist(statErr), "no partial output")
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command line with args and returns its standard output
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

// quiet disables logging for commands under test
var quiet = []string{"--log-level", "off"}

func TestExpandCommand(t *testing.T) {
	decl := "// Article is a scraped news article.\ntype Article struct {\n\tTitle string `json:\"title\"`\n}\n"

	out, err := execute(t, decl, append([]string{"expand", "-"}, quiet...)...)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "import \"github.com/hengadev/itemx\"\n\n//itemx:derive serialize,deserialize,clone,debug\n// Article is a scraped news article.\n"))
	assert.Contains(t, out, "func (x Article) ToValue() itemx.Value {")
}

func TestExpandCommandFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "decl.txt", "type Point struct{ X, Y int }\n")

	out, err := execute(t, "", append([]string{"expand", path}, quiet...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "func (x Point) Clone() Point {")
}

func TestExpandCommandRejectsNonStruct(t *testing.T) {
	_, err := execute(t, "type Color int\n", append([]string{"expand", "-"}, quiet...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot augment Color: not a struct declaration (found type int)")
}

func TestValidateCommand(t *testing.T) {
	good := t.TempDir()
	writeFile(t, good, "article.go", articleSource)

	out, err := execute(t, "", append([]string{"validate", good}, quiet...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 annotated structs in "+good)
	assert.Contains(t, out, "Article (article.go)")
	assert.Contains(t, out, "All validations passed!")

	bad := t.TempDir()
	writeFile(t, bad, "page.go", "package pages\n\n//itemx:item\ntype Page struct{ ToValue int }\n")

	out, err = execute(t, "", append([]string{"validate", good, bad}, quiet...)...)
	require.Error(t, err)
	assert.Contains(t, out, "field ToValue")
	assert.Contains(t, out, "Validation failed with errors.")
}

func TestGenerateCommand(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, pkgDir, "article.go", articleSource)
	configFile := filepath.Join(t.TempDir(), "itemx.yaml")

	config := DefaultConfig()
	config.Cache.Enabled = false
	require.NoError(t, SaveConfig(config, configFile))

	out, err := execute(t, "", "generate", "--config", configFile, "--log-level", "off", "-v", "--workers", "1", pkgDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated: "+filepath.Join(pkgDir, "article_item.go"))

	_, err = os.Stat(filepath.Join(pkgDir, "article_item.go"))
	assert.NoError(t, err)
}

func TestGenerateCommandMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "", "generate", "--config", filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "itemx.toml")

	out, err := execute(t, "", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)

	_, err = execute(t, "", "init", "--path", path)
	assert.Error(t, err, "existing file is not overwritten")

	_, err = execute(t, "", "init", "--path", path, "--force")
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "itemx-gen itemx v1.0.0")
}

package fastc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "fastc.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimalManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
name = "test_project"
`)
	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "test_project", manifest.Package.Name)
	assert.Equal(t, "0.1.0", manifest.Package.Version)
	assert.Equal(t, "binary", manifest.Package.Type)
}

func TestLoadFullManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
[package]
name = "my_lib"
version = "1.2.3"
type = "library"

[build]
include_dirs = ["include", "vendor"]
link_libs = ["nng", "pthread"]

[dependencies]
mylib = { git = "https://github.com/user/mylib", tag = "v1.0.0" }
utils = { git = "https://github.com/user/utils", branch = "main" }
local = { path = "../local_lib" }
`)
	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "my_lib", manifest.Package.Name)
	assert.Equal(t, "1.2.3", manifest.Package.Version)
	assert.Equal(t, "library", manifest.Package.Type)
	assert.Equal(t, []string{"include", "vendor"}, manifest.Build.IncludeDirs)
	assert.Equal(t, []string{"nng", "pthread"}, manifest.Build.LinkLibs)
	require.Len(t, manifest.Dependencies, 3)
	assert.Equal(t, "v1.0.0", manifest.Dependencies["mylib"].Tag)
	assert.Equal(t, "main", manifest.Dependencies["utils"].Branch)
	assert.Equal(t, "../local_lib", manifest.Dependencies["local"].Path)
}

func TestLoadManifestBadTOML(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[package\nname=")
	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestFindManifestWalksAncestors(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"p\"\n")

	nested := filepath.Join(root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found := FindManifest(filepath.Join(nested, "main.fc"))
	assert.Equal(t, filepath.Join(root, "fastc.toml"), found)
}

func TestFindManifestAbsent(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", FindManifest(filepath.Join(dir, "src", "main.fc")))
}

func TestProjectRootIsManifestDir(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"p\"\n")
	nested := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, root, findProjectRoot(filepath.Join(nested, "main.fc")))
}

// End to end: a project on disk with a module gets expanded during
// compilation because the manifest marks the root.
func TestCompileExpandsProjectModules(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"demo\"\n")
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(srcDir, "utils.fc"),
		[]byte("fn helper() -> i32 { return 42; }"), 0o644))

	mainPath := filepath.Join(srcDir, "main.fc")
	source := "mod utils;\nfn main() -> i32 { return helper(); }"
	require.NoError(t, os.WriteFile(mainPath, []byte(source), 0o644))

	cCode, err := Compile(source, mainPath)
	require.NoError(t, err)
	assert.Contains(t, cCode, "int32_t helper(void) {")
	assert.Contains(t, cCode, "return helper();")
}

package fastc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFile(t *testing.T, source string) *File {
	t.Helper()
	file, err := Parse(source, "main.fc")
	require.NoError(t, err)
	return file
}

func TestExpandSimpleModule(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/utils.fc", "fn helper() -> i32 { return 42; }")

	ast := parseFile(t, "mod utils;\nfn main() -> i32 { return 0; }")
	loader := NewModuleLoaderWith("proj", mem)
	require.NoError(t, loader.ExpandModules(ast, "src"))

	require.Len(t, ast.Items, 2)
	modDecl := ast.Items[0].(*ModDecl)
	assert.Equal(t, "utils", modDecl.Name)
	assert.True(t, modDecl.Loaded)
	require.Len(t, modDecl.Body, 1)

	helper := modDecl.Body[0].(*FnDecl)
	assert.Equal(t, "helper", helper.Name)
}

func TestExpandDirectoryModule(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/utils/mod.fc", "fn helper() -> i32 { return 1; }")

	ast := parseFile(t, "mod utils;")
	loader := NewModuleLoaderWith("proj", mem)
	require.NoError(t, loader.ExpandModules(ast, "src"))

	modDecl := ast.Items[0].(*ModDecl)
	assert.True(t, modDecl.Loaded)
	assert.Len(t, modDecl.Body, 1)
}

func TestDirectFileWinsOverDirectoryModule(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/utils.fc", "fn from_file() -> void { return; }")
	mem.Add("src/utils/mod.fc", "fn from_dir() -> void { return; }")

	ast := parseFile(t, "mod utils;")
	loader := NewModuleLoaderWith("proj", mem)
	require.NoError(t, loader.ExpandModules(ast, "src"))

	fn := ast.Items[0].(*ModDecl).Body[0].(*FnDecl)
	assert.Equal(t, "from_file", fn.Name)
}

func TestExpandNestedModules(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/outer.fc", "mod inner;\nfn outer_fn() -> void { return; }")
	mem.Add("src/inner.fc", "fn inner_fn() -> void { return; }")

	ast := parseFile(t, "mod outer;")
	loader := NewModuleLoaderWith("proj", mem)
	require.NoError(t, loader.ExpandModules(ast, "src"))

	outer := ast.Items[0].(*ModDecl)
	require.Len(t, outer.Body, 2)
	inner := outer.Body[0].(*ModDecl)
	assert.True(t, inner.Loaded)
	assert.Len(t, inner.Body, 1)
}

func TestCircularImportDetected(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/a.fc", "mod b;")
	mem.Add("src/b.fc", "mod a;")

	ast := parseFile(t, "mod a;")
	loader := NewModuleLoaderWith("proj", mem)
	err := loader.ExpandModules(ast, "src")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular import detected")
	assert.Contains(t, err.Error(), "module 'a'")
}

func TestModuleNotFound(t *testing.T) {
	ast := parseFile(t, "mod missing;")
	loader := NewModuleLoaderWith("proj", NewInMemoryFileLoader())
	err := loader.ExpandModules(ast, "src")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module 'missing' not found, searched:")
	assert.Contains(t, err.Error(), filepath.Join("src", "missing.fc"))
	assert.Contains(t, err.Error(), filepath.Join("src", "missing", "mod.fc"))
}

func TestParseErrorInModuleSurfaces(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/broken.fc", "fn oops( -> void { }")

	ast := parseFile(t, "mod broken;")
	loader := NewModuleLoaderWith("proj", mem)
	err := loader.ExpandModules(ast, "src")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestInlineModulesAreNotLoadedFromDisk(t *testing.T) {
	ast := parseFile(t, "mod inline { fn f() -> void { return; } }")
	loader := NewModuleLoaderWith("proj", NewInMemoryFileLoader())
	require.NoError(t, loader.ExpandModules(ast, "src"))
	assert.Len(t, ast.Items[0].(*ModDecl).Body, 1)
}

func TestOSLoaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "src", "utils.fc"),
		[]byte("fn helper() -> i32 { return 7; }"), 0o644))

	ast := parseFile(t, "mod utils;")
	loader := NewModuleLoader(dir)
	require.NoError(t, loader.ExpandModules(ast, filepath.Join(dir, "src")))
	assert.True(t, ast.Items[0].(*ModDecl).Loaded)
}

func TestExpandedModuleItemsResolve(t *testing.T) {
	mem := NewInMemoryFileLoader()
	mem.Add("src/utils.fc", "fn helper() -> i32 { return 42; }")

	source := "mod utils;\nfn main() -> i32 { return helper(); }"
	ast := parseFile(t, source)
	loader := NewModuleLoaderWith("proj", mem)
	require.NoError(t, loader.ExpandModules(ast, "src"))

	resolver := NewResolver(source)
	require.NoError(t, resolver.Resolve(ast))

	checker := NewTypeChecker(source, resolver.Symbols())
	assert.NoError(t, checker.Check(ast))
}

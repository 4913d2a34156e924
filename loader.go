package fastc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileLoader abstracts file access for module expansion so tests can
// run against an in-memory tree.
type FileLoader interface {
	// Exists reports whether path names a readable file.
	Exists(path string) bool

	// ReadFile returns the contents of path.
	ReadFile(path string) (string, error)

	// Canonical returns a canonical form of path used for cycle
	// detection.
	Canonical(path string) string
}

// OSFileLoader reads modules from the real filesystem.
type OSFileLoader struct{}

func NewOSFileLoader() *OSFileLoader {
	return &OSFileLoader{}
}

func (*OSFileLoader) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (*OSFileLoader) ReadFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (*OSFileLoader) Canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// InMemoryFileLoader serves modules from a path → source map.
type InMemoryFileLoader struct {
	files map[string]string
}

func NewInMemoryFileLoader() *InMemoryFileLoader {
	return &InMemoryFileLoader{files: map[string]string{}}
}

func (l *InMemoryFileLoader) Add(path, content string) {
	l.files[filepath.Clean(path)] = content
}

func (l *InMemoryFileLoader) Exists(path string) bool {
	_, ok := l.files[filepath.Clean(path)]
	return ok
}

func (l *InMemoryFileLoader) ReadFile(path string) (string, error) {
	content, ok := l.files[filepath.Clean(path)]
	if !ok {
		return "", fmt.Errorf("module file not found: %s", path)
	}
	return content, nil
}

func (l *InMemoryFileLoader) Canonical(path string) string {
	return filepath.Clean(path)
}

// ModuleLoader expands external `mod name;` declarations by loading
// and recursively parsing module files.  The set of currently-loading
// canonical paths is never shrunk within one expansion so cycles
// across sibling branches still trip.
type ModuleLoader struct {
	root   string
	loader FileLoader
	loaded map[string]bool
}

func NewModuleLoader(projectRoot string) *ModuleLoader {
	return NewModuleLoaderWith(projectRoot, NewOSFileLoader())
}

func NewModuleLoaderWith(projectRoot string, loader FileLoader) *ModuleLoader {
	return &ModuleLoader{
		root:   projectRoot,
		loader: loader,
		loaded: map[string]bool{},
	}
}

// Root returns the project root directory.
func (ml *ModuleLoader) Root() string { return ml.root }

// ExpandModules replaces every external module declaration in file
// with an inline module holding the loaded items.  This is the only
// AST mutation that crosses a phase boundary.
func (ml *ModuleLoader) ExpandModules(file *File, sourceDir string) error {
	for _, item := range file.Items {
		modDecl, ok := item.(*ModDecl)
		if !ok {
			continue
		}
		if !modDecl.Loaded {
			if err := ml.loadModule(modDecl, sourceDir); err != nil {
				return err
			}
			continue
		}
		// Inline module: expand any nested external modules.
		inner := &File{Items: modDecl.Body}
		if err := ml.ExpandModules(inner, sourceDir); err != nil {
			return err
		}
		modDecl.Body = inner.Items
	}
	return nil
}

func (ml *ModuleLoader) loadModule(modDecl *ModDecl, sourceDir string) error {
	modulePath, err := ml.resolveModulePath(modDecl.Name, sourceDir)
	if err != nil {
		return err
	}

	canonical := ml.loader.Canonical(modulePath)
	if ml.loaded[canonical] {
		return NewParseError(
			fmt.Sprintf("circular import detected: module '%s' at %s", modDecl.Name, modulePath),
			modDecl.Span(), "")
	}
	ml.loaded[canonical] = true

	source, err := ml.loader.ReadFile(modulePath)
	if err != nil {
		return NewParseError(
			fmt.Sprintf("failed to read %s: %v", modulePath, err),
			modDecl.Span(), "")
	}

	ast, err := ml.parseModule(source, modulePath)
	if err != nil {
		return err
	}

	moduleDir := filepath.Dir(modulePath)
	if err := ml.ExpandModules(ast, moduleDir); err != nil {
		return err
	}

	modDecl.Body = ast.Items
	modDecl.Loaded = true
	return nil
}

// resolveModulePath searches source_dir/name.fc, then
// source_dir/name/mod.fc.
func (ml *ModuleLoader) resolveModulePath(name, sourceDir string) (string, error) {
	directPath := filepath.Join(sourceDir, name+".fc")
	if ml.loader.Exists(directPath) {
		return directPath, nil
	}

	dirPath := filepath.Join(sourceDir, name, "mod.fc")
	if ml.loader.Exists(dirPath) {
		return dirPath, nil
	}

	searched := strings.Join([]string{directPath, dirPath}, ", ")
	return "", NewParseError(
		fmt.Sprintf("module '%s' not found, searched: %s", name, searched),
		NewSpan(0, 0), "")
}

func (ml *ModuleLoader) parseModule(source, path string) (*File, error) {
	tokens := StripComments(Tokenize(source))
	parser := NewParser(tokens, source, path)
	ast, err := parser.ParseFile()
	if err != nil {
		return nil, NewParseError(
			fmt.Sprintf("failed to parse %s: %v", path, err),
			NewSpan(0, 0), "")
	}
	return ast, nil
}

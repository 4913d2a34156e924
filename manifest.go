package fastc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest is a FastC project manifest (fastc.toml).  The core uses
// only FindManifest for project-root discovery; the full model is
// decoded so build-layer collaborators can reuse it.
type Manifest struct {
	Package      Package               `toml:"package"`
	Build        BuildConfig           `toml:"build"`
	Dependencies map[string]Dependency `toml:"dependencies"`
}

// Package is the [package] section.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Type    string `toml:"type"` // binary, library, ffi-wrapper
}

// BuildConfig is the [build] section.
type BuildConfig struct {
	IncludeDirs []string `toml:"include_dirs"`
	LinkLibs    []string `toml:"link_libs"`
}

// Dependency is one [dependencies] entry; either a git source with an
// optional version specifier or a local path.
type Dependency struct {
	Git    string `toml:"git"`
	Tag    string `toml:"tag"`
	Branch string `toml:"branch"`
	Rev    string `toml:"rev"`
	Path   string `toml:"path"`
}

const manifestFilename = "fastc.toml"

// LoadManifest reads and decodes a fastc.toml file.
func LoadManifest(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if m.Package.Version == "" {
		m.Package.Version = "0.1.0"
	}
	if m.Package.Type == "" {
		m.Package.Type = "binary"
	}
	return &m, nil
}

// FindManifest walks from start through its ancestors looking for a
// fastc.toml and returns its path, or "" when no manifest exists.
// Absence of a manifest disables module expansion.
func FindManifest(start string) string {
	current := start
	for {
		candidate := filepath.Join(current, manifestFilename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// findProjectRoot locates the directory holding fastc.toml for a
// source path, or "" when the file is not inside a project.
func findProjectRoot(sourcePath string) string {
	manifest := FindManifest(sourcePath)
	if manifest == "" {
		return ""
	}
	return filepath.Dir(manifest)
}

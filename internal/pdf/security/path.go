// Package security confines tool file access to the configured data directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator resolves user supplied paths against a root directory
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at root. The root does not have
// to exist yet.
func NewPathValidator(root string) (*PathValidator, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory
func (v *PathValidator) Root() string {
	return v.root
}

// ResolveInput returns the absolute path of an existing regular file under
// the root. Relative paths are taken relative to the root.
func (v *PathValidator) ResolveInput(path string) (string, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("not a regular file: %s", path)
	}
	return abs, nil
}

// ResolveOutput returns the absolute path of a file to be created under the
// root. Its parent directory must exist and the path must not be a directory.
func (v *PathValidator) ResolveOutput(path string) (string, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(filepath.Dir(abs)); err != nil || !info.IsDir() {
		return "", fmt.Errorf("output directory does not exist: %s", filepath.Dir(path))
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("output path is a directory: %s", path)
	}
	return abs, nil
}

// resolve cleans path and checks it, and its symlink target, stay in the root
func (v *PathValidator) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	clean := filepath.Clean(path)
	if !v.within(clean, v.root) {
		return "", fmt.Errorf("path is outside the data directory: %s", path)
	}

	// The root itself may be a symlink; compare real paths against real root
	realRoot := v.root
	if r, err := filepath.EvalSymlinks(v.root); err == nil {
		realRoot = r
	}
	if real, err := filepath.EvalSymlinks(clean); err == nil && !v.within(real, realRoot) {
		return "", fmt.Errorf("path resolves outside the data directory: %s", path)
	}
	return clean, nil
}

func (v *PathValidator) within(path, root string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}

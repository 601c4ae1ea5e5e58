// Package sandbox confines filesystem writes to a project root. Every
// destination path coming from a document must be resolved through a Root
// before anything touches the disk; the check runs on the final resolved
// path (symlinks included), not on the raw string.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned when a destination resolves to a location
// outside the project root.
var ErrOutsideRoot = errors.New("outside the project root")

// Root is a project root all write targets must stay within.
type Root struct {
	abs string // absolute root with symlinks resolved
}

// New binds a Root to the given directory. The path is resolved to an
// absolute, symlink-free directory; it must exist.
func New(root string) (*Root, error) {
	if root == "" {
		return nil, errors.New("sandbox: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: root %s is not a directory", abs)
	}
	return &Root{abs: abs}, nil
}

// Path returns the absolute root directory bound to this Root.
func (r *Root) Path() string {
	return r.abs
}

// Resolve validates that destination stays within the root and returns the
// absolute path to use for filesystem access. Relative destinations are
// joined onto the root; absolute destinations are accepted only when they
// already reside under it. The destination itself need not exist yet, but
// symlinks in any existing ancestor are followed before the containment
// check.
func (r *Root) Resolve(destination string) (string, error) {
	if destination == "" {
		return "", errors.New("sandbox: empty destination")
	}

	clean := filepath.Clean(destination)
	var joined string
	if filepath.IsAbs(clean) {
		joined = clean
	} else {
		joined = filepath.Join(r.abs, clean)
	}

	resolved, err := resolveExisting(joined)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, r.abs) {
		return "", fmt.Errorf("cannot write to %s: %w", destination, ErrOutsideRoot)
	}
	return resolved, nil
}

// resolveExisting canonicalizes path even when its tail does not exist yet:
// the deepest existing ancestor is resolved through EvalSymlinks and the
// remaining components are appended back.
func resolveExisting(path string) (string, error) {
	suffix := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Hit the filesystem root without finding anything.
			return filepath.Join(current, suffix), nil
		}
		suffix = filepath.Join(filepath.Base(current), suffix)
		current = parent
	}
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}

// Package dictionary loads per-engine resources such as word lists and
// dictionary blobs from the engines directory.
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dictionary errors.
var (
	ErrInvalidPath = errors.New("dictionary: path escapes engine namespace")
	ErrNotFound    = errors.New("dictionary: resource not found")
)

// Loader reads resources from Root/<engine>/<path>.
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{fsys: os.DirFS(dir)}
}

// NewLoaderFS creates a loader over an arbitrary file system.
func NewLoaderFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// Load returns the contents of path inside engineID's namespace.
func (l *Loader) Load(ctx context.Context, engineID, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, err := resolve(engineID, path)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return data, nil
}

// resolve joins engineID and path into an fs.FS name, rejecting anything
// that would leave the engine's directory.
func resolve(engineID, path string) (string, error) {
	if engineID == "" || !filepath.IsLocal(engineID) || filepath.Base(engineID) != engineID {
		return "", fmt.Errorf("%w: engine %q", ErrInvalidPath, engineID)
	}
	if path == "" || !filepath.IsLocal(path) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.ToSlash(filepath.Join(engineID, path)), nil
}

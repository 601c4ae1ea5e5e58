// Package index persists the provenance of previously materialized
// resources. The index is a TOML table-of-tables keyed by destination
// path; an entry exists exactly when a prior download for that
// destination completed successfully.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// DefaultFilename is the index location relative to the project root when
// the job doesn't configure one.
const DefaultFilename = "web-resource-index.toml"

// ErrCorrupt is returned when an existing index file cannot be parsed.
// A run must not proceed on a corrupt index.
var ErrCorrupt = errors.New("resource index is corrupt")

// Entry records where a destination's content last came from. The URL is
// compared for equality only; it is never re-interpreted.
type Entry struct {
	URL string `toml:"url"`
}

// Index is the in-memory form of the index file. It tracks whether it has
// diverged from the on-disk state so that saving an untouched index is a
// no-op.
type Index struct {
	path    string
	entries map[string]Entry
	dirty   bool
}

// Load reads the index at path. A missing file yields an empty index; a
// file that exists but cannot be parsed yields ErrCorrupt.
func Load(path string) (*Index, error) {
	ix := &Index{
		path:    path,
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ix, nil
		}
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &ix.entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return ix, nil
}

// Path returns the file the index was loaded from and will be saved to.
func (ix *Index) Path() string {
	return ix.path
}

// Lookup returns the entry for a destination, if any.
func (ix *Index) Lookup(destination string) (Entry, bool) {
	entry, ok := ix.entries[destination]
	return entry, ok
}

// Record inserts or overwrites the entry for a destination. Callers must
// only invoke it after the destination file has been fully written.
func (ix *Index) Record(destination, url string) {
	if entry, ok := ix.entries[destination]; ok && entry.URL == url {
		return
	}
	ix.entries[destination] = Entry{URL: url}
	ix.dirty = true
}

// Forget drops the entry for a destination, reporting whether one existed.
func (ix *Index) Forget(destination string) bool {
	if _, ok := ix.entries[destination]; !ok {
		return false
	}
	delete(ix.entries, destination)
	ix.dirty = true
	return true
}

// Destinations returns all recorded destinations in lexical order.
func (ix *Index) Destinations() []string {
	dests := make([]string, 0, len(ix.entries))
	for dest := range ix.entries {
		dests = append(dests, dest)
	}
	sort.Strings(dests)
	return dests
}

// Len returns the number of recorded entries.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Dirty reports whether the index changed since it was loaded or last saved.
func (ix *Index) Dirty() bool {
	return ix.dirty
}

// Save writes the index back to its file. It does nothing when the index
// is unchanged. The write goes to a temporary file next to the target and
// is renamed into place, so a crash mid-write never clobbers the previous
// valid index.
func (ix *Index) Save() error {
	if !ix.dirty {
		return nil
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(ix.entries); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := writeFileAtomic(ix.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write index %s: %w", ix.path, err)
	}
	ix.dirty = false
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

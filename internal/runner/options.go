package runner

import (
	"fmt"

	"github.com/SillyFreak/typst-preprocess/internal/index"
)

// webResourceConfig holds the job keys specific to the web-resource kind.
type webResourceConfig struct {
	// Overwrite downloads and overwrites all files regardless of index and
	// file state. Not meant to be set permanently; enabling it temporarily
	// is a way to re-check every resource.
	Overwrite bool `toml:"overwrite"`

	// Index names the index file, relative to the project root. A bare
	// `index = true` selects the default path. Note that two jobs sharing
	// one index file will fight over it.
	Index IndexOption `toml:"index"`

	// Evict deletes indexed files that the document no longer references.
	Evict bool `toml:"evict"`
}

// IndexOption is the "index" setting: unset, a path, or a boolean.
type IndexOption struct {
	set      bool
	disabled bool
	path     string
}

// UnmarshalTOML accepts either a boolean or a path string.
func (o *IndexOption) UnmarshalTOML(v interface{}) error {
	switch value := v.(type) {
	case bool:
		o.set = true
		o.disabled = !value
	case string:
		o.set = true
		o.path = value
	default:
		return fmt.Errorf(`"index" must be a boolean or string, got %T`, v)
	}
	return nil
}

// Disabled reports whether the manifest explicitly turned the index off.
func (o IndexOption) Disabled() bool { return o.disabled }

// Path returns the configured index path, or the default when unset.
func (o IndexOption) Path() string {
	if o.path != "" {
		return o.path
	}
	return index.DefaultFilename
}

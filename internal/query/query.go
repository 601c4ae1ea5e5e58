// Package query builds and executes `typst query` commands and decodes
// their JSON output.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/SillyFreak/typst-preprocess/internal/manifest"
	"github.com/SillyFreak/typst-preprocess/internal/observability"
)

// Query is a fully resolved document query. It is usually built from a
// manifest.QueryConfig through a Builder that supplies per-kind defaults.
type Query struct {
	// Selector to be queried, e.g. "<web-resource>".
	Selector string
	// Field to extract from matched elements; empty extracts whole elements.
	Field string
	// One expects exactly one result instead of an array.
	One bool
	// Inputs are extra --input key=value pairs given to the document.
	Inputs map[string]string
}

// Args returns the `typst query` command line arguments for this query.
// Regardless of the configured inputs, `prequery-fallback` is always set
// to true during queries.
func (q Query) Args(root, input string) []string {
	args := []string{"query"}
	if root != "" {
		args = append(args, "--root", root)
	}
	if q.Field != "" {
		args = append(args, "--field", q.Field)
	}
	if q.One {
		args = append(args, "--one")
	}

	keys := make([]string, 0, len(q.Inputs))
	for key := range q.Inputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--input", fmt.Sprintf("%s=%s", key, q.Inputs[key]))
	}
	args = append(args, "--input", "prequery-fallback=true")

	return append(args, input, q.Selector)
}

// Builder holds default values for query settings a job kind wants to
// provide. Settings missing from both the manifest and the defaults make
// Build fail.
type Builder struct {
	selector    string
	hasSelector bool
	field       string
	noField     bool
	hasField    bool
	one         bool
	hasOne      bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// DefaultSelector sets the selector used when the manifest has none.
func (b *Builder) DefaultSelector(selector string) *Builder {
	b.selector = selector
	b.hasSelector = true
	return b
}

// DefaultField sets the extracted field used when the manifest has none.
func (b *Builder) DefaultField(name string) *Builder {
	b.field = name
	b.hasField = true
	b.noField = false
	return b
}

// DefaultNoField makes "no field extraction" the default.
func (b *Builder) DefaultNoField() *Builder {
	b.hasField = true
	b.noField = true
	b.field = ""
	return b
}

// DefaultOne sets the default for the --one flag.
func (b *Builder) DefaultOne(one bool) *Builder {
	b.one = one
	b.hasOne = true
	return b
}

// Build combines the manifest configuration with the defaults.
func (b *Builder) Build(cfg manifest.QueryConfig) (Query, error) {
	q := Query{Inputs: cfg.Inputs}

	switch {
	case cfg.Selector != "":
		q.Selector = cfg.Selector
	case b.hasSelector:
		q.Selector = b.selector
	default:
		return Query{}, errors.New(`"selector" was not specified but is required`)
	}

	switch {
	case cfg.Field.IsSet():
		if !cfg.Field.Disabled() {
			q.Field = cfg.Field.Name()
		}
	case b.hasField:
		if !b.noField {
			q.Field = b.field
		}
	default:
		return Query{}, errors.New(`"field" was not specified but is required`)
	}

	switch {
	case cfg.One != nil:
		q.One = *cfg.One
	case b.hasOne:
		q.One = b.one
	default:
		return Query{}, errors.New(`"one" was not specified but is required`)
	}

	return q, nil
}

// Runner executes queries against one document using the typst binary.
type Runner struct {
	bin    string
	root   string
	input  string
	logger observability.Logger
}

// NewRunner creates a Runner for the document at input, compiled with the
// given project root.
func NewRunner(bin, root, input string, logger observability.Logger) *Runner {
	return &Runner{
		bin:    bin,
		root:   root,
		input:  input,
		logger: logger.WithFields(map[string]interface{}{"component": "query"}),
	}
}

// Select runs the query and decodes its JSON output into out.
func (r *Runner) Select(ctx context.Context, q Query, out interface{}) error {
	args := q.Args(r.root, r.input)
	r.logger.Debug("running query", "bin", r.bin, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("query command failed: %w", err)
	}
	if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
		return fmt.Errorf("query response was not valid JSON or did not fit the expected schema: %w", err)
	}
	return nil
}

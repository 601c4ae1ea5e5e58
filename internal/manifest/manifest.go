// Package manifest parses the [tool.prequery] section of a typst.toml
// file into preprocessing jobs. Kind-specific job settings are kept as an
// undecoded TOML primitive so each job kind can decode its own options.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Manifest is the complete [tool.prequery] configuration, usually written
// as multiple [[tool.prequery.jobs]] entries.
type Manifest struct {
	Jobs []Job
}

// Job is a single preprocessing job: a query to run against the document
// and a processor kind to feed the results to. Keys other than name, kind
// and query belong to the kind and are decoded via DecodeConfig.
type Job struct {
	// Name identifies the job in logs and status lines.
	Name string
	// Kind selects the processor implementation, e.g. "web-resource".
	Kind string
	// Query configures the document query; kinds fill in their own defaults.
	Query QueryConfig

	meta *toml.MetaData
	raw  toml.Primitive
}

// DecodeConfig decodes the job's remaining (kind-specific) keys into v.
func (j *Job) DecodeConfig(v interface{}) error {
	if j.meta == nil {
		return nil
	}
	if err := j.meta.PrimitiveDecode(j.raw, v); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", j.Kind, err)
	}
	return nil
}

// QueryConfig is the per-job query configuration. All fields are optional;
// job kinds define their own defaults.
type QueryConfig struct {
	// Selector to be queried, e.g. "<web-resource>".
	Selector string `toml:"selector"`
	// Field to extract from matched elements; false disables extraction.
	Field FieldOption `toml:"field"`
	// One expects exactly one query result.
	One *bool `toml:"one"`
	// Inputs are additional --input key=value pairs for the query.
	Inputs map[string]string `toml:"inputs"`
}

// FieldOption is the "field" setting: unset, disabled (false), or a field
// name.
type FieldOption struct {
	set      bool
	disabled bool
	name     string
}

// UnmarshalTOML accepts either a string or the literal false.
func (f *FieldOption) UnmarshalTOML(v interface{}) error {
	switch value := v.(type) {
	case bool:
		if value {
			return errors.New(`"field" must be a string or false`)
		}
		f.set = true
		f.disabled = true
	case string:
		f.set = true
		f.name = value
	default:
		return fmt.Errorf(`"field" must be a string or false, got %T`, v)
	}
	return nil
}

// IsSet reports whether the manifest specified the field at all.
func (f FieldOption) IsSet() bool { return f.set }

// Disabled reports whether field extraction was explicitly turned off.
func (f FieldOption) Disabled() bool { return f.disabled }

// Name returns the configured field name; empty when unset or disabled.
func (f FieldOption) Name() string { return f.name }

// Read loads and parses the given typst.toml file.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse extracts the [tool.prequery] section from typst.toml contents.
func Parse(data []byte) (*Manifest, error) {
	var root struct {
		Tool struct {
			Prequery toml.Primitive `toml:"prequery"`
		} `toml:"tool"`
	}

	md, err := toml.Decode(string(data), &root)
	if err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}
	if !md.IsDefined("tool") {
		return nil, errors.New("typst.toml does not contain a `tool` section")
	}
	if !md.IsDefined("tool", "prequery") {
		return nil, errors.New("typst.toml does not contain a `tool.prequery` section")
	}

	var section struct {
		Jobs []toml.Primitive `toml:"jobs"`
	}
	if err := md.PrimitiveDecode(root.Tool.Prequery, &section); err != nil {
		return nil, fmt.Errorf("`tool.prequery` is not a valid preprocessor configuration: %w", err)
	}
	if len(section.Jobs) == 0 {
		return nil, errors.New("`tool.prequery` does not define any jobs")
	}

	m := &Manifest{Jobs: make([]Job, 0, len(section.Jobs))}
	for i, prim := range section.Jobs {
		var header struct {
			Name  string      `toml:"name"`
			Kind  string      `toml:"kind"`
			Query QueryConfig `toml:"query"`
		}
		if err := md.PrimitiveDecode(prim, &header); err != nil {
			return nil, fmt.Errorf("job %d is not valid: %w", i, err)
		}
		if header.Name == "" {
			return nil, fmt.Errorf("job %d has no name", i)
		}
		if header.Kind == "" {
			return nil, fmt.Errorf("job %q has no kind", header.Name)
		}
		m.Jobs = append(m.Jobs, Job{
			Name:  header.Name,
			Kind:  header.Kind,
			Query: header.Query,
			meta:  &md,
			raw:   prim,
		})
	}
	return m, nil
}

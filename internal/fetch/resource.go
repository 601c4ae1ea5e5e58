package fetch

import (
	"context"
	"fmt"
	"io"
)

// Resource is one external resource declared by the document: the URL to
// download from and the project-relative path to download to. Options are
// forwarded to the transport with the request.
type Resource struct {
	URL     string            `json:"url"`
	Path    string            `json:"path"`
	Options map[string]string `json:"options,omitempty"`
}

// Validate checks the parts of a resource the engine relies on. Path
// confinement is the sandbox's job, not Validate's.
func (r Resource) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("resource has no url")
	}
	if r.Path == "" {
		return fmt.Errorf("resource %s has no path", r.URL)
	}
	return nil
}

// Transport fetches the bytes of one remote resource. Implementations must
// return an error for any response that isn't usable as resource content.
type Transport interface {
	Fetch(ctx context.Context, url string, options map[string]string) (io.ReadCloser, error)
}

// Status classifies the outcome of processing one resource.
type Status string

const (
	// StatusFinished means the resource was downloaded and written.
	StatusFinished Status = "finished"
	// StatusSkipped means the local file is already current.
	StatusSkipped Status = "skipped"
	// StatusFailed means the resource could not be materialized.
	StatusFailed Status = "failed"
)

// Outcome is the per-resource result the orchestrator aggregates.
type Outcome struct {
	Resource Resource
	Status   Status
	Err      *Error
}

// Failed reports whether this outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// String renders the status line a user sees for this resource.
func (o Outcome) String() string {
	switch o.Status {
	case StatusFinished:
		return fmt.Sprintf("finished: downloaded %s to %s", o.Resource.URL, o.Resource.Path)
	case StatusSkipped:
		return fmt.Sprintf("skipped (file exists): %s", o.Resource.Path)
	default:
		return fmt.Sprintf("failed: %v", o.Err)
	}
}

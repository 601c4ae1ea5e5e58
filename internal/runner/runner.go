// Package runner orchestrates a preprocessing run: it validates all jobs,
// loads each job's resource index, threads every queried resource through
// the fetch engine sequentially, and turns the aggregated outcomes into a
// process exit status.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/SillyFreak/typst-preprocess/internal/fetch"
	"github.com/SillyFreak/typst-preprocess/internal/index"
	"github.com/SillyFreak/typst-preprocess/internal/manifest"
	"github.com/SillyFreak/typst-preprocess/internal/observability"
	"github.com/SillyFreak/typst-preprocess/internal/query"
	"github.com/SillyFreak/typst-preprocess/internal/sandbox"
)

// WebResourceKind is the only job kind this tool implements.
const WebResourceKind = "web-resource"

// QueryService runs a document query and decodes its results.
type QueryService interface {
	Select(ctx context.Context, q query.Query, out interface{}) error
}

// Runner executes the jobs of one manifest against one document.
type Runner struct {
	root            *sandbox.Root
	queries         QueryService
	transport       fetch.Transport
	maxResourceSize int64
	out             io.Writer
	logger          observability.Logger
	metrics         observability.Metrics
}

// New creates a Runner. Status lines for individual resources are written
// to out as they happen.
func New(
	root *sandbox.Root,
	queries QueryService,
	transport fetch.Transport,
	maxResourceSize int64,
	out io.Writer,
	logger observability.Logger,
	metrics observability.Metrics,
) *Runner {
	return &Runner{
		root:            root,
		queries:         queries,
		transport:       transport,
		maxResourceSize: maxResourceSize,
		out:             out,
		logger:          logger.WithFields(map[string]interface{}{"component": "runner"}),
		metrics:         metrics,
	}
}

// JobResult aggregates one job's outcomes. Err is set for job-level
// failures (query execution, index persistence) that produced no
// per-resource outcome.
type JobResult struct {
	Name     string
	Outcomes []fetch.Outcome
	Err      error
}

// Failed reports whether the job had any failure.
func (r JobResult) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, outcome := range r.Outcomes {
		if outcome.Failed() {
			return true
		}
	}
	return false
}

// jobWriter prefixes status lines the fetch engine emits with the job name,
// matching the runner's own output lines. The engine writes whole lines.
type jobWriter struct {
	out  io.Writer
	name string
}

func (w jobWriter) Write(p []byte) (int, error) {
	if _, err := fmt.Fprintf(w.out, "[%s] %s", w.name, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

type preparedJob struct {
	job       *manifest.Job
	cfg       webResourceConfig
	query     query.Query
	indexPath string
	index     *index.Index
}

// Run executes all jobs sequentially. Configuration problems in any job
// and index load failures abort the run before any resource is processed;
// afterwards, one job's (or resource's) failure never prevents the others
// from being attempted.
func (r *Runner) Run(ctx context.Context, jobs []manifest.Job) ([]JobResult, error) {
	prepared := make([]*preparedJob, 0, len(jobs))
	var configErrs *multierror.Error
	for i := range jobs {
		p, err := r.prepare(&jobs[i])
		if err != nil {
			r.logger.Error("job has configuration errors", "job", jobs[i].Name, "error", err)
			configErrs = multierror.Append(configErrs, fmt.Errorf("[%s] %w", jobs[i].Name, err))
			continue
		}
		prepared = append(prepared, p)
	}
	if err := configErrs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("at least one job has configuration errors: %w", err)
	}

	// A corrupt index means the cache state cannot be trusted; surface it
	// before any resource is touched.
	for _, p := range prepared {
		ix, err := index.Load(p.indexPath)
		if err != nil {
			return nil, fmt.Errorf("[%s] %w", p.job.Name, err)
		}
		p.index = ix
	}

	results := make([]JobResult, 0, len(prepared))
	for _, p := range prepared {
		fmt.Fprintf(r.out, "[%s] beginning job...\n", p.job.Name)
		result := r.runJob(ctx, p)
		if result.Err != nil {
			fmt.Fprintf(r.out, "[%s] job failed: %v\n", p.job.Name, result.Err)
		} else {
			fmt.Fprintf(r.out, "[%s] job finished\n", p.job.Name)
		}
		results = append(results, result)
	}
	return results, nil
}

// prepare validates a job's configuration and resolves its query and index
// path. It performs no queries, downloads, or writes.
func (r *Runner) prepare(job *manifest.Job) (*preparedJob, error) {
	if job.Kind != WebResourceKind {
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}

	var cfg webResourceConfig
	if err := job.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Index.Disabled() {
		return nil, errors.New(`"index" cannot be disabled: provenance tracking requires it`)
	}

	q, err := query.NewBuilder().
		DefaultSelector("<web-resource>").
		DefaultField("value").
		DefaultOne(false).
		Build(job.Query)
	if err != nil {
		return nil, err
	}
	if q.One {
		return nil, errors.New(`web-resource queries do not support "one"`)
	}

	indexPath, err := r.root.Resolve(cfg.Index.Path())
	if err != nil {
		return nil, fmt.Errorf("index path: %w", err)
	}

	return &preparedJob{job: job, cfg: cfg, query: q, indexPath: indexPath}, nil
}

func (r *Runner) runJob(ctx context.Context, p *preparedJob) JobResult {
	result := JobResult{Name: p.job.Name}
	logger := r.logger.WithFields(map[string]interface{}{"job": p.job.Name})

	var resources []fetch.Resource
	if err := r.queries.Select(ctx, p.query, &resources); err != nil {
		result.Err = err
		return result
	}
	for _, res := range resources {
		if err := res.Validate(); err != nil {
			result.Err = fmt.Errorf("query returned an invalid resource: %w", err)
			return result
		}
	}
	logger.Info("query finished", "resources", len(resources))

	engine := fetch.NewEngine(r.root, p.index, r.transport, fetch.Options{
		Overwrite:       p.cfg.Overwrite,
		MaxResourceSize: r.maxResourceSize,
	}, jobWriter{out: r.out, name: p.job.Name}, logger, r.metrics)

	referenced := make(map[string]bool, len(resources))
	for _, res := range resources {
		outcome := engine.Process(ctx, res)
		fmt.Fprintf(r.out, "[%s] %s\n", p.job.Name, outcome)
		referenced[res.Path] = true
		result.Outcomes = append(result.Outcomes, outcome)
	}

	if p.cfg.Evict {
		r.evict(p, referenced, logger)
	}

	if err := p.index.Save(); err != nil {
		result.Err = err
		return result
	}
	return result
}

// evict removes indexed files the document no longer references. Only
// entries absent from the current run are touched; eviction failures are
// logged but don't fail the job, since the document's own resources are
// all in place.
func (r *Runner) evict(p *preparedJob, referenced map[string]bool, logger observability.Logger) {
	for _, dest := range p.index.Destinations() {
		if referenced[dest] {
			continue
		}
		resolved, err := r.root.Resolve(dest)
		if err != nil {
			logger.Warn("not evicting suspicious index entry", "path", dest, "error", err)
			p.index.Forget(dest)
			continue
		}
		if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to evict file", "path", dest, "error", err)
			continue
		}
		p.index.Forget(dest)
		fmt.Fprintf(r.out, "[%s] evicted %s (no longer referenced)\n", p.job.Name, dest)
	}
}

// ExitCode maps a run's results to the process exit status: 0 when every
// resource finished or was skipped, 1 otherwise.
func ExitCode(results []JobResult, runErr error) int {
	if runErr != nil {
		return 1
	}
	for _, result := range results {
		if result.Failed() {
			return 1
		}
	}
	return 0
}

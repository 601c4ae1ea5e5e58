// Package fetch decides, for each resource a document references, whether
// to skip, download, or re-download it, and materializes downloads
// atomically inside the project root.
//
// The resource index is the source of truth for "known current": a file
// that exists on disk without an index entry is re-downloaded. Index
// entries are only recorded after the destination file has been fully
// written, so the index never points at a partial download.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/SillyFreak/typst-preprocess/internal/index"
	"github.com/SillyFreak/typst-preprocess/internal/observability"
	"github.com/SillyFreak/typst-preprocess/internal/sandbox"
)

// Options tune the engine's behavior per job.
type Options struct {
	// Overwrite downloads every resource regardless of index and file state.
	Overwrite bool
	// MaxResourceSize caps a single download; zero or negative means no cap.
	MaxResourceSize int64
}

// Engine processes one resource at a time. It owns the index for the
// duration of a run; the orchestrator threads resources through it
// sequentially, so no locking is needed.
type Engine struct {
	root      *sandbox.Root
	index     *index.Index
	transport Transport
	opts      Options
	out       io.Writer
	logger    observability.Logger
	metrics   observability.Metrics
}

// NewEngine creates an engine bound to a project root, index and transport.
// Per-resource status lines go to out.
func NewEngine(
	root *sandbox.Root,
	ix *index.Index,
	transport Transport,
	opts Options,
	out io.Writer,
	logger observability.Logger,
	metrics observability.Metrics,
) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		root:      root,
		index:     ix,
		transport: transport,
		opts:      opts,
		out:       out,
		logger:    logger.WithFields(map[string]interface{}{"component": "fetch"}),
		metrics:   metrics,
	}
}

// Process materializes a single resource and reports the outcome. Failures
// are contained: an error here never aborts sibling resources.
func (e *Engine) Process(ctx context.Context, res Resource) Outcome {
	start := time.Now()
	logger := e.logger.WithFields(map[string]interface{}{
		"url":  res.URL,
		"path": res.Path,
	})

	// The sandbox check must come before any network or filesystem access.
	dest, err := e.root.Resolve(res.Path)
	if err != nil {
		errType := FilesystemError
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			errType = OutsideRootError
		}
		logger.Error("destination rejected", "error", err)
		e.metrics.RecordError("fetch", string(errType))
		return Outcome{Resource: res, Status: StatusFailed, Err: newError(errType, res, err)}
	}

	download, reason := e.decide(res, dest)
	if !download {
		logger.Debug("resource is up to date")
		e.metrics.RecordSuccess("skip")
		return Outcome{Resource: res, Status: StatusSkipped}
	}

	fmt.Fprintf(e.out, "Downloading %s to %s...\n", res.URL, res.Path)
	logger.Info("downloading resource", "reason", reason)
	if ferr := e.download(ctx, res, dest); ferr != nil {
		logger.Error("download failed", "error", ferr.Err, "error_type", string(ferr.Type))
		e.metrics.RecordError("fetch", string(ferr.Type))
		return Outcome{Resource: res, Status: StatusFailed, Err: ferr}
	}

	// The file is fully in place; only now may the index learn about it.
	e.index.Record(res.Path, res.URL)

	duration := time.Since(start)
	logger.Info("resource downloaded", "duration_ms", duration.Milliseconds())
	e.metrics.RecordSuccess("fetch")
	e.metrics.RecordDuration("fetch", duration.Seconds())
	return Outcome{Resource: res, Status: StatusFinished}
}

// decide applies the skip/download/re-download policy. dest is the
// sandbox-resolved absolute destination.
func (e *Engine) decide(res Resource, dest string) (download bool, reason string) {
	if e.opts.Overwrite {
		return true, "overwrite enabled"
	}

	entry, indexed := e.index.Lookup(res.Path)
	exists := fileExists(dest)
	switch {
	case !indexed && !exists:
		return true, "new resource"
	case !indexed:
		// Present on disk but unknown to the index: not trusted as current.
		return true, "file not tracked by index"
	case entry.URL != res.URL:
		return true, "source url changed"
	case !exists:
		return true, "file missing"
	default:
		return false, ""
	}
}

func (e *Engine) download(ctx context.Context, res Resource, dest string) *Error {
	body, err := e.transport.Fetch(ctx, res.URL, res.Options)
	if err != nil {
		return newError(TransportError, res, err)
	}
	defer body.Close()

	if err := writeAtomic(dest, body, e.opts.MaxResourceSize); err != nil {
		errType := FilesystemError
		if errors.Is(err, ErrTooLarge) {
			errType = TooLargeError
		}
		return newError(errType, res, err)
	}
	return nil
}

// writeAtomic streams r to a temporary file beside dest and renames it
// into place, so no partially-written file is ever visible at dest.
func writeAtomic(dest string, r io.Reader, maxSize int64) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".tmp.*")
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

	if maxSize > 0 {
		// maxSize+1 overflows for a cap of MaxInt64; a copy can never
		// exceed that cap anyway, so the sentinel byte is not needed there.
		limit := maxSize + 1
		if limit < 0 {
			limit = math.MaxInt64
		}
		n, err := io.Copy(tmp, io.LimitReader(r, limit))
		if err != nil {
			return err
		}
		if n > maxSize {
			return ErrTooLarge
		}
	} else {
		if _, err := io.Copy(tmp, r); err != nil {
			return err
		}
	}

	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return err
	}
	committed = true
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

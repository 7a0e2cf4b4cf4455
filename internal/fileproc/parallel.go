// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Sorted returns the collected errors ordered by path.
func (e *ProcessingErrors) Sorted() []ProcessingError {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]ProcessingError(nil), e.Errors...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	errs := e.Sorted()
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(errs), errs[0])
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *ProcessingErrors) Unwrap() []error {
	errs := e.Sorted()
	out := make([]error, len(errs))
	for i := range errs {
		out[i] = errs[i]
	}
	return out
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x suits the mostly I/O-bound manifest decoding.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// ErrorFunc is called when a file processing error occurs.
// Receives the file path and the error. If nil, errors are silently skipped.
type ErrorFunc func(path string, err error)

// Options tunes MapFiles.
type Options struct {
	// MaxWorkers bounds concurrency; <= 0 means 2x NumCPU.
	MaxWorkers int
	OnProgress ProgressFunc
	OnError    ErrorFunc
}

// MapFiles processes files in parallel and returns the successful results in
// input order. Files that fail are reported through OnError and skipped.
// Processing stops early when ctx is cancelled; the context error is returned
// along with whatever finished.
func MapFiles[T any](ctx context.Context, files []string, fn func(context.Context, string) (T, error), opts Options) ([]T, error) {
	if len(files) == 0 {
		return nil, nil
	}

	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	slots := make([]T, len(files))
	ok := make([]bool, len(files))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(maxWorkers)
	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := fn(ctx, path)
			if opts.OnProgress != nil {
				opts.OnProgress()
			}
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(path, err)
				}
				return nil
			}
			slots[i] = result
			ok[i] = true
			return nil
		})
	}
	waitErr := p.Wait()

	results := make([]T, 0, len(files))
	for i := range slots {
		if ok[i] {
			results = append(results, slots[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, waitErr
}

// MapFilesCollect is MapFiles with errors gathered into ProcessingErrors.
// The returned error is nil when every file succeeded.
func MapFilesCollect[T any](ctx context.Context, files []string, fn func(context.Context, string) (T, error), maxWorkers int, onProgress ProgressFunc) ([]T, error) {
	errs := &ProcessingErrors{}
	results, err := MapFiles(ctx, files, fn, Options{
		MaxWorkers: maxWorkers,
		OnProgress: onProgress,
		OnError:    errs.Add,
	})
	if err != nil {
		return results, err
	}
	if errs.HasErrors() {
		return results, errs
	}
	return results, nil
}

package p4k

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultExtractWorkers = 4

// ExtractResult reports the outcome of extracting one entry. A non-nil Err
// means that entry failed; other entries are unaffected.
type ExtractResult struct {
	Entry *Entry
	Path  string
	Err   error
}

// ExtractOption configures ExtractBatch.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	workers   int
	overwrite bool
}

// ExtractWithWorkers sets the number of parallel extraction workers
// (default 4). Each worker reads through its own file handle.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractBatch extracts entries under destDir in parallel.
//
// Entry reads are stateless given an offset and length, so workers operate
// on independent duplicates of the archive file handle. Per-entry failures
// are recorded in the results rather than aborting the batch; the returned
// error is reserved for cancellation and setup failures.
func (a *Archive) ExtractBatch(ctx context.Context, entries []*Entry, destDir string, opts ...ExtractOption) ([]ExtractResult, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	cfg := extractConfig{workers: defaultExtractWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]ExtractResult, len(entries))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)

	handles := make(chan *os.File, cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		f, err := os.Open(a.path)
		if err != nil {
			close(handles)
			for h := range handles {
				h.Close()
			}
			return nil, fmt.Errorf("p4k: duplicating archive handle: %w", err)
		}
		handles <- f
	}
	defer func() {
		close(handles)
		for h := range handles {
			h.Close()
		}
	}()

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f := <-handles
			defer func() { handles <- f }()

			dest, err := a.extractOne(ctx, f, entry, destDir, &cfg)
			mu.Lock()
			results[i] = ExtractResult{Entry: entry, Path: dest, Err: err}
			mu.Unlock()
			if err != nil {
				a.log().Warn("entry extraction failed", "entry", entry.Name, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// extractOne writes a single entry to destDir using an atomic temp-file
// rename, mirroring the entry's path below the destination.
func (a *Archive) extractOne(ctx context.Context, r *os.File, entry *Entry, destDir string, cfg *extractConfig) (string, error) {
	if entry.IsDirectory {
		return "", nil
	}
	if !fs.ValidPath(entry.Name) {
		return "", fmt.Errorf("%w: unsafe entry path %q", ErrFormat, entry.Name)
	}
	dest := filepath.Join(destDir, filepath.FromSlash(entry.Name))

	if !cfg.overwrite {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return dest, fmt.Errorf("creating directories: %w", err)
	}

	content, err := a.readFrom(ctx, r, entry)
	if err != nil {
		return dest, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".stardec-")
	if err != nil {
		return dest, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return dest, fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return dest, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return dest, fmt.Errorf("renaming to destination: %w", err)
	}
	success = true
	return dest, nil
}

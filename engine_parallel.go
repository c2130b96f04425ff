package lexiscope

import (
	"context"
	"fmt"
	goruntime "runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/lexiscope/internal/scope"
	"github.com/jward/lexiscope/internal/store"
)

// result is the outcome of resolving one prepared file.
type result struct {
	batch *store.BatchedStore
	ix    *scope.Index
	err   error
}

// indexFilesParallel indexes files in three phases:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Parse and resolve on a bounded worker pool, buffering
//	                    each file's rows in its own BatchedStore.
//	Phase C (serial):   Commit batches to SQLite in input order.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) (map[string]bool, error) {
	langs := make(map[string]bool)
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	// ---- Phase B: Parallel resolution ----
	results := make([]result, len(items))
	if len(items) > 0 {
		workers := e.workers
		if workers <= 0 {
			workers = goruntime.NumCPU()
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(min(workers, len(items)))
		for i, item := range items {
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = e.resolveInto(gctx, item)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			for _, item := range items {
				e.forget(item)
			}
			return langs, fmt.Errorf("parallel indexing: %w", err)
		}
	}

	// ---- Phase C: Serial commit ----
	for i, res := range results {
		item := items[i]
		if res.err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", item.path, res.err))
			e.forget(item)
			continue
		}
		if err := e.store.CommitBatch(res.batch); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", item.path, err))
			e.forget(item)
			continue
		}
		e.logIndexed(item, res.ix)
		langs[item.lang] = true
	}

	if len(errs) > 0 {
		return langs, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return langs, nil
}

// resolveInto resolves one file and buffers its rows.
func (e *Engine) resolveInto(ctx context.Context, item workItem) result {
	ix, err := e.resolve(ctx, item.lang, item.content)
	if err != nil {
		return result{err: err}
	}
	batch := store.NewBatchedStore()
	if err := store.WriteIndex(batch, item.fileID, ix); err != nil {
		return result{err: err}
	}
	return result{batch: batch, ix: ix}
}

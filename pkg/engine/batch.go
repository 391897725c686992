package engine

import (
	"context"
	"sync"

	"meridian-hq/veristat/pkg/rules/ast"
)

// BatchItem pairs a record with the instrument it is validated as.
type BatchItem struct {
	Instrument *ast.Instrument
	Record     *ast.Record
}

// BatchResult pairs one record's validation outcome with any fatal error.
// Exactly one of Result and Err is set.
type BatchResult struct {
	Result *Result
	Err    error
}

// ValidateBatch validates records over a bounded worker pool and returns
// results in input order. Per-record failures (missing base rules) land in
// the corresponding BatchResult rather than aborting the batch; the skip or
// abort policy belongs to the caller. Cancelling the context abandons
// unstarted records with ctx.Err() in their slots.
func (e *Engine) ValidateBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))
	if len(items) == 0 {
		return results
	}

	workers := e.config.Workers
	if workers > len(items) {
		workers = len(items)
	}

	indexCh := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexCh {
				result, err := e.ValidateRecord(ctx, items[i].Instrument, items[i].Record)
				results[i] = BatchResult{Result: result, Err: err}
			}
		}()
	}

feed:
	for i := range items {
		select {
		case <-ctx.Done():
			for j := i; j < len(items); j++ {
				results[j] = BatchResult{Err: ctx.Err()}
			}
			break feed
		case indexCh <- i:
		}
	}
	close(indexCh)
	wg.Wait()

	return results
}

// Package bulk applies a single-item operation across an id set,
// isolating per-item failures. One record in an invalid state must not
// stall progress on the rest of the batch.
package bulk

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/duewell/duewell/internal/shared"
)

// DefaultConcurrency bounds the fan-out when the caller passes 0.
const DefaultConcurrency = 8

// ItemResult records the settlement of one item.
type ItemResult struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error,omitempty"`
}

// Result aggregates per-item outcomes across the batch.
type Result struct {
	Updated int          `json:"updated"`
	Failed  int          `json:"failed"`
	Total   int          `json:"total"`
	Items   []ItemResult `json:"items"`
}

// Execute runs fn for every id independently. Item errors are captured in
// the result, never returned: the only error case is an empty id list.
// Item ordering within the result follows the input; execution order is
// unspecified.
func Execute(ctx context.Context, ids []uuid.UUID, concurrency int, fn func(ctx context.Context, id uuid.UUID) error) (Result, error) {
	if len(ids) == 0 {
		return Result{}, shared.Invalid("ids", "at least one id is required")
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	res := Result{Total: len(ids), Items: make([]ItemResult, len(ids))}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		g.Go(func() error {
			err := fn(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			res.Items[i] = ItemResult{ID: id}
			if err != nil {
				res.Items[i].Error = err.Error()
				res.Failed++
			} else {
				res.Updated++
			}
			return nil
		})
	}
	_ = g.Wait()

	return res, nil
}

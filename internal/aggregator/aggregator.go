// Package aggregator implements the two optional aggregation capability
// interfaces a Step may satisfy and the dispatch logic that picks
// between them by type assertion rather than inheritance, replacing
// class-hierarchy polymorphism with Go's implicit interface satisfaction.
package aggregator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// DefaultPageSize is the Provider.GetChunksForStep page size aggregator.Run
// uses unless a caller overrides it via RunWithPageSize.
const DefaultPageSize = 200

// SimpleAggregator collapses an entire Step's chunk set into a result in
// one call — appropriate when the chunk set comfortably fits in memory.
type SimpleAggregator interface {
	Aggregate(ctx *runtime.Context, chunks []*sagatypes.Chunk) (map[string]any, error)
}

// BatchAggregator streams a Step's chunk set through an accumulator
// state, one page at a time — appropriate when the chunk set may be too
// large to load in one slice.
type BatchAggregator interface {
	StartAggregation(ctx *runtime.Context) (any, error)
	ExecuteAggregation(ctx *runtime.Context, state any, chunkBatch []*sagatypes.Chunk) (any, error)
	FinishAggregation(ctx *runtime.Context, state any) (map[string]any, error)
}

// Run dispatches on step's capabilities (step is a resolved stepexec.Step,
// taken as `any` here to avoid an import cycle with stepexec/examples,
// which needs this package's interfaces): BatchAggregator is preferred
// over SimpleAggregator when a Step implements both, since streaming is
// always safe for small result sets but loading everything into memory
// is not always safe for large ones. A Step implementing neither returns
// an empty, non-error result — aggregation is optional.
func Run(ctx context.Context, step any, rc *runtime.Context, prov provider.Provider, stepID uuid.UUID) (map[string]any, error) {
	return RunWithPageSize(ctx, step, rc, prov, stepID, DefaultPageSize)
}

func RunWithPageSize(ctx context.Context, step any, rc *runtime.Context, prov provider.Provider, stepID uuid.UUID, pageSize int) (map[string]any, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if ba, ok := step.(BatchAggregator); ok {
		return runBatch(ctx, ba, rc, prov, stepID, pageSize)
	}
	if sa, ok := step.(SimpleAggregator); ok {
		return runSimple(ctx, sa, rc, prov, stepID, pageSize)
	}
	return map[string]any{}, nil
}

func runSimple(ctx context.Context, sa SimpleAggregator, rc *runtime.Context, prov provider.Provider, stepID uuid.UUID, pageSize int) (map[string]any, error) {
	var all []*sagatypes.Chunk
	cursor := ""
	for {
		page, next, err := prov.GetChunksForStep(ctx, stepID, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("aggregator: get chunks for step %s: %w", stepID, err)
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	return sa.Aggregate(rc, all)
}

func runBatch(ctx context.Context, ba BatchAggregator, rc *runtime.Context, prov provider.Provider, stepID uuid.UUID, pageSize int) (map[string]any, error) {
	state, err := ba.StartAggregation(rc)
	if err != nil {
		return nil, fmt.Errorf("aggregator: start aggregation for step %s: %w", stepID, err)
	}
	cursor := ""
	for {
		page, next, err := prov.GetChunksForStep(ctx, stepID, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("aggregator: get chunks for step %s: %w", stepID, err)
		}
		if len(page) > 0 {
			state, err = ba.ExecuteAggregation(rc, state, page)
			if err != nil {
				return nil, fmt.Errorf("aggregator: execute aggregation for step %s: %w", stepID, err)
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return ba.FinishAggregation(rc, state)
}

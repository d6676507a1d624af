package aggregator

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/provider/memprovider"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

type simpleSum struct{}

func (simpleSum) Aggregate(ctx *runtime.Context, chunks []*sagatypes.Chunk) (map[string]any, error) {
	return map[string]any{"count": len(chunks)}, nil
}

type batchSum struct{ seen int }

func (b *batchSum) StartAggregation(ctx *runtime.Context) (any, error) {
	return 0, nil
}

func (b *batchSum) ExecuteAggregation(ctx *runtime.Context, state any, chunkBatch []*sagatypes.Chunk) (any, error) {
	n := state.(int)
	return n + len(chunkBatch), nil
}

func (b *batchSum) FinishAggregation(ctx *runtime.Context, state any) (map[string]any, error) {
	return map[string]any{"total": state.(int)}, nil
}

// Aggregate also makes batchSum a SimpleAggregator; it reports "count",
// not "total", so a result with "total" shows the batch path was chosen.
func (b *batchSum) Aggregate(ctx *runtime.Context, chunks []*sagatypes.Chunk) (map[string]any, error) {
	return map[string]any{"count": len(chunks)}, nil
}

type neither struct{}

func seedChunks(t *testing.T, prov *memprovider.Provider, stepID uuid.UUID, n int) {
	t.Helper()
	chunks := make([]*sagatypes.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = &sagatypes.Chunk{
			ID:           uuid.New(),
			ParentStepID: stepID,
			ChunkIndex:   i,
			Status:       sagatypes.ChunkCompleted,
		}
	}
	if err := prov.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("seed chunks: %v", err)
	}
}

func TestRunDispatchesToSimpleAggregator(t *testing.T) {
	prov := memprovider.New()
	stepID := uuid.New()
	seedChunks(t, prov, stepID, 5)

	out, err := Run(context.Background(), simpleSum{}, &runtime.Context{}, prov, stepID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out["count"] != 5 {
		t.Fatalf("expected count 5, got %v", out["count"])
	}
}

func TestRunDispatchesToBatchAggregatorOverSimple(t *testing.T) {
	prov := memprovider.New()
	stepID := uuid.New()
	seedChunks(t, prov, stepID, 7)

	out, err := RunWithPageSize(context.Background(), &batchSum{}, &runtime.Context{}, prov, stepID, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out["total"] != 7 {
		t.Fatalf("expected total 7 across pages, got %v", out["total"])
	}
}

func TestRunReturnsEmptyForNeitherCapability(t *testing.T) {
	prov := memprovider.New()
	stepID := uuid.New()
	seedChunks(t, prov, stepID, 2)

	out, err := Run(context.Background(), neither{}, &runtime.Context{}, prov, stepID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}

func TestRunWithPageSizePagesCorrectly(t *testing.T) {
	prov := memprovider.New()
	stepID := uuid.New()
	seedChunks(t, prov, stepID, 10)

	out, err := RunWithPageSize(context.Background(), simpleSum{}, &runtime.Context{}, prov, stepID, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out["count"] != 10 {
		t.Fatalf("expected all 10 chunks gathered across pages, got %v", out["count"])
	}
}

func TestRunWithZeroChunks(t *testing.T) {
	prov := memprovider.New()
	stepID := uuid.New()

	out, err := Run(context.Background(), simpleSum{}, &runtime.Context{}, prov, stepID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out["count"] != 0 {
		t.Fatalf("expected count 0 for a step with no chunks, got %v", out["count"])
	}
}

package examples

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

const ChunkedCountStepName = "chunked_count"

// ChunkedCountStep emits TotalChunks chunks of ItemsPerChunk synthetic
// words each, resuming from ProgressState's "next_chunk_index" across
// repeated Execute calls the way any real chunked step would. It also
// implements both SimpleAggregator and BatchAggregator, and both produce
// the same "concatenated" result over the same chunk sequence.
type ChunkedCountStep struct {
	TotalChunks   int
	ItemsPerChunk int
}

func NewChunkedCountStep(totalChunks, itemsPerChunk int) *ChunkedCountStep {
	if totalChunks < 1 {
		totalChunks = 1
	}
	if itemsPerChunk < 1 {
		itemsPerChunk = 1
	}
	return &ChunkedCountStep{TotalChunks: totalChunks, ItemsPerChunk: itemsPerChunk}
}

func (s *ChunkedCountStep) nextIndex(ctx *runtime.Context) int {
	raw, ok := ctx.StepProgressState()["next_chunk_index"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (s *ChunkedCountStep) Execute(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	idx := s.nextIndex(ctx)
	words := make([]string, s.ItemsPerChunk)
	for i := range words {
		words[i] = fmt.Sprintf("item-%d-%d", idx, i)
	}
	result := map[string]any{"words": words}
	// NextChunkIndex is the index of the chunk just produced this call;
	// ProgressState (opaque to the orchestrator) is how this Step tracks
	// which index to use on its next invocation.
	if idx+1 >= s.TotalChunks {
		return &sagatypes.StepCompletionState{
			IsChunkCompleted: true,
			NextChunkIndex:   idx,
			PartialResult:    result,
		}, nil
	}
	return &sagatypes.StepCompletionState{
		IsChunkCompleted: false,
		NextChunkIndex:   idx,
		ProgressState:    map[string]any{"next_chunk_index": idx + 1},
		PartialResult:    result,
	}, nil
}

func (s *ChunkedCountStep) Compensate(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

// Aggregate implements aggregator.SimpleAggregator: concatenate every
// chunk's "words" field, in chunk_index order, into one string.
func (s *ChunkedCountStep) Aggregate(ctx *runtime.Context, chunks []*sagatypes.Chunk) (map[string]any, error) {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeWords(&b, c.PartialResult)
	}
	return map[string]any{"concatenated": b.String()}, nil
}

// concatState is ChunkedCountStep's BatchAggregator accumulator.
type concatState struct {
	b strings.Builder
}

func (s *ChunkedCountStep) StartAggregation(ctx *runtime.Context) (any, error) {
	return &concatState{}, nil
}

func (s *ChunkedCountStep) ExecuteAggregation(ctx *runtime.Context, state any, chunkBatch []*sagatypes.Chunk) (any, error) {
	st, ok := state.(*concatState)
	if !ok {
		return nil, fmt.Errorf("chunked_count: unexpected aggregation state type %T", state)
	}
	for _, c := range chunkBatch {
		if st.b.Len() > 0 {
			st.b.WriteByte(' ')
		}
		writeWords(&st.b, c.PartialResult)
	}
	return st, nil
}

func (s *ChunkedCountStep) FinishAggregation(ctx *runtime.Context, state any) (map[string]any, error) {
	st, ok := state.(*concatState)
	if !ok {
		return nil, fmt.Errorf("chunked_count: unexpected aggregation state type %T", state)
	}
	return map[string]any{"concatenated": st.b.String()}, nil
}

// writeWords decodes a Chunk's raw jsonb PartialResult and appends its
// "words" field, space-joined, to b.
func writeWords(b *strings.Builder, partialResult []byte) {
	if len(partialResult) == 0 {
		return
	}
	var partial map[string]any
	if err := json.Unmarshal(partialResult, &partial); err != nil {
		return
	}
	raw, ok := partial["words"]
	if !ok {
		return
	}
	items, ok := raw.([]any)
	if !ok {
		return
	}
	strs := make([]string, 0, len(items))
	for _, it := range items {
		strs = append(strs, fmt.Sprint(it))
	}
	b.WriteString(strings.Join(strs, " "))
}

// Package examples holds reference Step implementations exercising every
// corner of the Execute/Compensate and aggregation contracts: a
// single-shot step, a transient-failure step for the Retrier, a
// permanent-failure step, and a chunked step that implements both
// aggregator interfaces. None of these are meant for production use;
// they exist so orchestrator/batch tests have concrete Steps to drive.
package examples

import (
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

const EchoStepName = "echo"

// EchoStep completes in a single Execute call, copying its payload's
// "message" field into PartialResult unchanged. Compensate is a no-op
// completion, since an echo has no side effect to undo.
type EchoStep struct{}

func NewEchoStep() *EchoStep { return &EchoStep{} }

func (s *EchoStep) Execute(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	msg, _ := ctx.Payload()["message"].(string)
	return &sagatypes.StepCompletionState{
		IsChunkCompleted: true,
		PartialResult:    map[string]any{"echoed": msg},
	}, nil
}

func (s *EchoStep) Compensate(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

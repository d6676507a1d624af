package examples

import (
	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

const AlwaysFailStepName = "always_fail"

// AlwaysFailStep always returns a PermanentFailure, exercising the
// orchestrator's fail-without-compensation policy and the
// Retrier's "never retry a PermanentFailure" rule.
type AlwaysFailStep struct {
	Reason string
}

func NewAlwaysFailStep(reason string) *AlwaysFailStep {
	if reason == "" {
		reason = "always_fail: unconditional failure"
	}
	return &AlwaysFailStep{Reason: reason}
}

func (s *AlwaysFailStep) Execute(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return nil, errtax.NewPermanentFailure(s.Reason, nil)
}

func (s *AlwaysFailStep) Compensate(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

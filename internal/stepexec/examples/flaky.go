package examples

import (
	"fmt"
	"sync/atomic"

	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

const FlakyStepName = "flaky"

// FlakyStep fails its first failUntilAttempt-1 Execute calls with a
// transient (retryable) error, then succeeds — driving the Retrier's
// backoff loop in tests without depending on real external flakiness.
type FlakyStep struct {
	FailUntilAttempt int32
	attempt          int32
}

func NewFlakyStep(failUntilAttempt int32) *FlakyStep {
	if failUntilAttempt < 1 {
		failUntilAttempt = 1
	}
	return &FlakyStep{FailUntilAttempt: failUntilAttempt}
}

func (s *FlakyStep) Execute(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	n := atomic.AddInt32(&s.attempt, 1)
	if n < s.FailUntilAttempt {
		return nil, fmt.Errorf("flaky: transient failure on attempt %d", n)
	}
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

func (s *FlakyStep) Compensate(ctx *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

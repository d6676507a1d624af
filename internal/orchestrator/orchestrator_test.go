package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/finalizer"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/provider/memprovider"
	"github.com/yungbote/sagacore/internal/retrier"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
	"github.com/yungbote/sagacore/internal/stepexec/examples"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("construct test logger: %v", err)
	}
	return log
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	reg := stepexec.NewRegistry()
	if err := examples.Register(reg); err != nil {
		t.Fatalf("register demo steps: %v", err)
	}
	rt := retrier.New(3, retrier.BackoffPolicy{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, JitterFrac: 0})
	fin := finalizer.NewGuard(finalizer.NoOp{}, testLogger(t))
	return New(reg, rt, fin, testLogger(t))
}

func newJob(direction sagatypes.Direction, status sagatypes.JobStatus, steps ...*sagatypes.Step) *sagatypes.Job {
	id := uuid.New()
	for _, s := range steps {
		s.JobID = id
	}
	return &sagatypes.Job{
		ID:        id,
		OwnerID:   uuid.New(),
		Status:    status,
		Direction: direction,
		Steps:     steps,
	}
}

func newStep(index int, executor string) *sagatypes.Step {
	return &sagatypes.Step{
		ID:               uuid.New(),
		StepIndex:        index,
		StepExecutorName: executor,
		Status:           sagatypes.StepPending,
	}
}

func TestRunCompletesSingleStepJob(t *testing.T) {
	o := newTestOrchestrator(t)
	prov := memprovider.New()
	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew, newStep(0, examples.EchoStepName))
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != sagatypes.JobCompleted {
		t.Fatalf("expected job completed, got %v", job.Status)
	}
	if !job.FinalizerExecuted {
		t.Fatal("expected finalizer to have run")
	}
}

func TestRunAdvancesMultiStepJob(t *testing.T) {
	o := newTestOrchestrator(t)
	prov := memprovider.New()
	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew,
		newStep(0, examples.EchoStepName),
		newStep(1, examples.EchoStepName),
	)
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if job.Status != sagatypes.JobInProgress {
		t.Fatalf("expected job still in progress after step 0, got %v", job.Status)
	}
	if job.CurrentStepIndex != 1 {
		t.Fatalf("expected current step index 1, got %d", job.CurrentStepIndex)
	}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if job.Status != sagatypes.JobCompleted {
		t.Fatalf("expected job completed after step 1, got %v", job.Status)
	}
}

func TestRunPermanentFailureTriggersTerminalFail(t *testing.T) {
	o := newTestOrchestrator(t)
	prov := memprovider.New()
	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew, newStep(0, examples.AlwaysFailStepName))
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no orchestrator-level error, got %v", err)
	}
	if job.Status != sagatypes.JobFailed {
		t.Fatalf("expected job failed, got %v", job.Status)
	}
	if !job.FinalizerExecuted {
		t.Fatal("expected finalizer to have run for a permanent failure")
	}
}

func TestRunRetryExhaustionTriggersTerminalFail(t *testing.T) {
	prov := memprovider.New()
	// FlakyStep registered via examples.Register fails until attempt 3;
	// with only 3 total Retrier attempts it should just barely succeed,
	// so use a fresh registry with a flakier step to force exhaustion.
	reg := stepexec.NewRegistry()
	_ = reg.Register("always_flaky", func() stepexec.Step { return examples.NewFlakyStep(100) })
	rt := retrier.New(2, retrier.BackoffPolicy{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, JitterFrac: 0})
	fin := finalizer.NewGuard(finalizer.NoOp{}, testLogger(t))
	o2 := New(reg, rt, fin, testLogger(t))

	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew, newStep(0, "always_flaky"))
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o2.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no orchestrator-level error, got %v", err)
	}
	// Retry exhaustion is a permanent failure: the job fails terminally
	// with no compensation, it does not flip to Up and await it.
	if job.Direction != sagatypes.DirectionDown {
		t.Fatalf("expected direction to remain down after exhausted retries, got %v", job.Direction)
	}
	if job.Status != sagatypes.JobFailed {
		t.Fatalf("expected job failed after exhausted retries, got %v", job.Status)
	}
	if !job.FinalizerExecuted {
		t.Fatal("expected finalizer to have run for an exhausted-retry failure")
	}
}

// flakyAggregateStep succeeds on Execute every time but fails Aggregate
// until its own internal counter clears a threshold, surfacing a plain
// (non-permanent) error from outside the Retrier's scope — aggregation
// runs once per completed chunk set, it is never retried by design.
type flakyAggregateStep struct {
	failures int
}

func (s *flakyAggregateStep) Execute(rc *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

func (s *flakyAggregateStep) Compensate(rc *runtime.Context) (*sagatypes.StepCompletionState, error) {
	return &sagatypes.StepCompletionState{IsChunkCompleted: true}, nil
}

func (s *flakyAggregateStep) Aggregate(rc *runtime.Context, chunks []*sagatypes.Chunk) (map[string]any, error) {
	if s.failures > 0 {
		s.failures--
		return nil, fmt.Errorf("aggregate: transient backend error")
	}
	return map[string]any{"ok": true}, nil
}

func TestRunReversibleAggregationFailureRoutesToCompensation(t *testing.T) {
	prov := memprovider.New()
	reg := stepexec.NewRegistry()
	agg := &flakyAggregateStep{failures: 1}
	_ = reg.Register("flaky_aggregate", func() stepexec.Step { return agg })
	rt := retrier.New(3, retrier.BackoffPolicy{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, JitterFrac: 0})
	fin := finalizer.NewGuard(finalizer.NoOp{}, testLogger(t))
	o2 := New(reg, rt, fin, testLogger(t))

	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew, newStep(0, "flaky_aggregate"))
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o2.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no orchestrator-level error, got %v", err)
	}
	if job.Direction != sagatypes.DirectionUp {
		t.Fatalf("expected direction flipped to up after a reversible aggregation failure, got %v", job.Direction)
	}
	if job.Status != sagatypes.JobAwaitingCompensation {
		t.Fatalf("expected job awaiting compensation, got %v", job.Status)
	}
}

func TestRunCompensatesBackPastFirstStep(t *testing.T) {
	o := newTestOrchestrator(t)
	prov := memprovider.New()
	job := newJob(sagatypes.DirectionUp, sagatypes.JobAwaitingCompensation, newStep(0, examples.EchoStepName))
	job.CurrentStepIndex = 0
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != sagatypes.JobFailed {
		t.Fatalf("expected job failed once compensation walks past step 0, got %v", job.Status)
	}
	if job.CurrentStepIndex != -1 {
		t.Fatalf("expected current step index -1, got %d", job.CurrentStepIndex)
	}
}

func TestRunTerminalCleanupIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(t)
	prov := memprovider.New()
	job := newJob(sagatypes.DirectionDown, sagatypes.JobCompleted, newStep(0, examples.EchoStepName))
	job.FinalizerExecuted = true
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != sagatypes.JobCompleted {
		t.Fatalf("expected job to remain completed, got %v", job.Status)
	}
}

func TestRunUnresolvableExecutorFailsDown(t *testing.T) {
	o := newTestOrchestrator(t)
	prov := memprovider.New()
	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew, newStep(0, "no_such_executor"))
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	if err := o.Run(context.Background(), jc); err != nil {
		t.Fatalf("expected no orchestrator-level error, got %v", err)
	}
	if job.Status != sagatypes.JobFailed {
		t.Fatalf("expected job failed for an unresolvable executor, got %v", job.Status)
	}
}

func TestRunChunkedStepPersistsChunksAcrossCalls(t *testing.T) {
	prov := memprovider.New()
	reg := stepexec.NewRegistry()
	_ = reg.Register("counter", func() stepexec.Step { return examples.NewChunkedCountStep(3, 2) })
	rt := retrier.New(2, retrier.BackoffPolicy{MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, JitterFrac: 0})
	o2 := New(reg, rt, finalizer.NewGuard(finalizer.NoOp{}, testLogger(t)), testLogger(t))

	job := newJob(sagatypes.DirectionDown, sagatypes.JobNew, newStep(0, "counter"))
	jc := &runtime.Context{Ctx: context.Background(), Provider: prov, Job: job}

	for i := 0; i < 3; i++ {
		if err := o2.Run(context.Background(), jc); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if job.Status == sagatypes.JobCompleted {
			break
		}
	}
	if job.Status != sagatypes.JobCompleted {
		t.Fatalf("expected job completed after chunking through 3 chunks, got %v", job.Status)
	}
	if prov.Mutations == 0 {
		t.Fatal("expected chunk inserts to register as provider mutations")
	}
}

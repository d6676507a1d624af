package batch

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/batch/budget"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/provider/memprovider"
	"github.com/yungbote/sagacore/internal/retrier"
	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
	"github.com/yungbote/sagacore/internal/stepexec/examples"
)

type stubEngine struct {
	started [][]*sagatypes.Job
}

func (s *stubEngine) Start(ctx context.Context, jobs []*sagatypes.Job) error {
	s.started = append(s.started, jobs)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("construct test logger: %v", err)
	}
	return log
}

func seedJob(t *testing.T, prov *memprovider.Provider, executor string) *sagatypes.Job {
	t.Helper()
	job := &sagatypes.Job{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Status:    sagatypes.JobNew,
		Direction: sagatypes.DirectionDown,
		Steps: []*sagatypes.Step{
			{ID: uuid.New(), StepIndex: 0, StepExecutorName: executor, Status: sagatypes.StepPending},
		},
	}
	created, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return created[0]
}

func newBatchOrchestrator(t *testing.T, prov *memprovider.Provider, retry *stubEngine) *BatchOrchestrator {
	t.Helper()
	reg := stepexec.NewRegistry()
	if err := examples.Register(reg); err != nil {
		t.Fatalf("register demo steps: %v", err)
	}
	rt := retrier.New(2, retrier.BackoffPolicy{})
	return &BatchOrchestrator{
		Provider:    prov,
		RetryEngine: retry,
		Registry:    reg,
		Retrier:     rt,
		Ceilings:    budget.DefaultCeilings(),
		Log:         testLogger(t),
	}
}

func TestRunBatchCompletesSingleStepJobs(t *testing.T) {
	prov := memprovider.New()
	job := seedJob(t, prov, examples.EchoStepName)
	bo := newBatchOrchestrator(t, prov, &stubEngine{})

	result, err := bo.RunBatch(context.Background(), []*sagatypes.Job{{ID: job.ID}}, 80)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Completed) != 1 || result.Completed[0] != job.ID {
		t.Fatalf("expected job %s completed, got %+v", job.ID, result.Completed)
	}
	if result.CriticalErrors != nil {
		t.Fatalf("expected no critical errors, got %v", result.CriticalErrors)
	}
}

func TestRunBatchSkipsMissingJobID(t *testing.T) {
	prov := memprovider.New()
	bo := newBatchOrchestrator(t, prov, &stubEngine{})

	result, err := bo.RunBatch(context.Background(), []*sagatypes.Job{{}}, 80)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.CriticalErrors == nil {
		t.Fatal("expected a critical error for a job reference with no job_id")
	}
}

func TestRunBatchEmptyInputIsNoop(t *testing.T) {
	prov := memprovider.New()
	bo := newBatchOrchestrator(t, prov, &stubEngine{})

	result, err := bo.RunBatch(context.Background(), nil, 80)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Completed) != 0 || len(result.Requeued) != 0 {
		t.Fatalf("expected an empty result, got %+v", result)
	}
}

func TestRunBatchAggregatesCriticalErrorsAcrossRefs(t *testing.T) {
	prov := memprovider.New()
	good := seedJob(t, prov, examples.EchoStepName)
	bo := newBatchOrchestrator(t, prov, &stubEngine{})

	result, err := bo.RunBatch(context.Background(), []*sagatypes.Job{{ID: good.ID}, {}}, 80)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Completed) != 1 || result.Completed[0] != good.ID {
		t.Fatalf("expected the well-formed job to still complete, got %+v", result.Completed)
	}
	if result.CriticalErrors == nil {
		t.Fatal("expected the missing job_id ref to surface as a critical error alongside the successful job")
	}
}

func TestRunBatchAdvancesMultiStepJobInOnePass(t *testing.T) {
	prov := memprovider.New()
	job := &sagatypes.Job{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Status:    sagatypes.JobNew,
		Direction: sagatypes.DirectionDown,
		Steps: []*sagatypes.Step{
			{ID: uuid.New(), StepIndex: 0, StepExecutorName: examples.EchoStepName, Status: sagatypes.StepPending},
			{ID: uuid.New(), StepIndex: 1, StepExecutorName: examples.EchoStepName, Status: sagatypes.StepPending},
		},
	}
	created, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	bo := newBatchOrchestrator(t, prov, &stubEngine{})

	result, err := bo.RunBatch(context.Background(), []*sagatypes.Job{{ID: created[0].ID}}, 90)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Completed) != 1 {
		t.Fatalf("expected the two-step job to complete within one FIFO pass, got %+v", result)
	}
}

package orchestrator

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
	"github.com/yungbote/sagacore/internal/stepexec/examples"
)

func registeredRegistry(t *testing.T) *stepexec.Registry {
	t.Helper()
	reg := stepexec.NewRegistry()
	if err := examples.Register(reg); err != nil {
		t.Fatalf("register demo steps: %v", err)
	}
	return reg
}

func TestValidatePlanAcceptsContiguousRegisteredSteps(t *testing.T) {
	job := &sagatypes.Job{
		ID: uuid.New(),
		Steps: []*sagatypes.Step{
			newStep(0, examples.EchoStepName),
			newStep(1, examples.EchoStepName),
		},
	}
	if err := ValidatePlan(job, registeredRegistry(t)); err != nil {
		t.Fatalf("expected valid plan, got %v", err)
	}
}

func TestValidatePlanRejectsNilJob(t *testing.T) {
	if err := ValidatePlan(nil, registeredRegistry(t)); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestValidatePlanRejectsEmptySteps(t *testing.T) {
	job := &sagatypes.Job{ID: uuid.New()}
	if err := ValidatePlan(job, registeredRegistry(t)); err == nil {
		t.Fatal("expected error for a job with no steps")
	}
}

func TestValidatePlanRejectsNilStep(t *testing.T) {
	job := &sagatypes.Job{ID: uuid.New(), Steps: []*sagatypes.Step{nil}}
	if err := ValidatePlan(job, registeredRegistry(t)); err == nil {
		t.Fatal("expected error for a nil step entry")
	}
}

func TestValidatePlanRejectsDuplicateStepIndex(t *testing.T) {
	job := &sagatypes.Job{
		ID: uuid.New(),
		Steps: []*sagatypes.Step{
			newStep(0, examples.EchoStepName),
			newStep(0, examples.EchoStepName),
		},
	}
	if err := ValidatePlan(job, registeredRegistry(t)); err == nil {
		t.Fatal("expected error for duplicate step_index")
	}
}

func TestValidatePlanRejectsNonContiguousStepIndex(t *testing.T) {
	job := &sagatypes.Job{
		ID: uuid.New(),
		Steps: []*sagatypes.Step{
			newStep(0, examples.EchoStepName),
			newStep(2, examples.EchoStepName),
		},
	}
	if err := ValidatePlan(job, registeredRegistry(t)); err == nil {
		t.Fatal("expected error for non-contiguous step_index")
	}
}

func TestValidatePlanRejectsUnregisteredExecutor(t *testing.T) {
	job := &sagatypes.Job{
		ID:    uuid.New(),
		Steps: []*sagatypes.Step{newStep(0, "no_such_executor")},
	}
	if err := ValidatePlan(job, registeredRegistry(t)); err == nil {
		t.Fatal("expected error for an unregistered step_executor_name")
	}
}

func TestValidatePlanSkipsExecutorCheckWithNilRegistry(t *testing.T) {
	job := &sagatypes.Job{
		ID:    uuid.New(),
		Steps: []*sagatypes.Step{newStep(0, "whatever")},
	}
	if err := ValidatePlan(job, nil); err != nil {
		t.Fatalf("expected nil registry to skip the executor check, got %v", err)
	}
}

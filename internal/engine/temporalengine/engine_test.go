package temporalengine

import (
	"context"
	"testing"

	"github.com/yungbote/sagacore/internal/sagatypes"
)

func TestNewDefaultsTaskQueueFromConfig(t *testing.T) {
	t.Setenv("TEMPORAL_TASK_QUEUE", "")
	e := New(nil, "")
	if e.TaskQueue != "sagacore" {
		t.Fatalf("expected default task queue, got %q", e.TaskQueue)
	}
}

func TestNewKeepsExplicitTaskQueue(t *testing.T) {
	e := New(nil, "custom-queue")
	if e.TaskQueue != "custom-queue" {
		t.Fatalf("expected explicit task queue, got %q", e.TaskQueue)
	}
}

func TestStartWithNoClientConfiguredErrors(t *testing.T) {
	e := New(nil, "q")
	err := e.Start(context.Background(), []*sagatypes.Job{{}})
	if err == nil {
		t.Fatal("expected an error when the Temporal client is not configured")
	}
}

func TestStartWithNoJobsOnUnconfiguredEngineErrors(t *testing.T) {
	e := New(nil, "q")
	err := e.Start(context.Background(), nil)
	if err == nil {
		t.Fatal("expected the nil-client check to fire even with no jobs")
	}
}

func TestNilEngineStartErrors(t *testing.T) {
	var e *Engine
	if err := e.Start(context.Background(), nil); err == nil {
		t.Fatal("expected a nil *Engine to error rather than panic")
	}
}

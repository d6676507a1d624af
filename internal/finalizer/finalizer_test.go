package finalizer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/sagatypes"
)

type countingFinalizable struct {
	calls int
	err   error
}

func (c *countingFinalizable) OnFinish(ctx context.Context, job *sagatypes.Job) error {
	c.calls++
	return c.err
}

func TestGuardRunInvokesNext(t *testing.T) {
	f := &countingFinalizable{}
	g := NewGuard(f, nil)
	job := &sagatypes.Job{ID: uuid.New(), Status: sagatypes.JobCompleted}

	g.Run(context.Background(), job)
	if f.calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", f.calls)
	}
}

func TestGuardRunSwallowsError(t *testing.T) {
	f := &countingFinalizable{err: errors.New("boom")}
	g := NewGuard(f, nil)
	job := &sagatypes.Job{ID: uuid.New(), Status: sagatypes.JobFailed}

	// Must not panic even though OnFinish returns an error, and must not
	// mutate job's status.
	g.Run(context.Background(), job)
	if job.Status != sagatypes.JobFailed {
		t.Fatalf("expected job status untouched, got %v", job.Status)
	}
}

func TestGuardRunNilSafety(t *testing.T) {
	var g *Guard
	g.Run(context.Background(), &sagatypes.Job{ID: uuid.New()})

	g2 := NewGuard(nil, nil)
	g2.Run(context.Background(), &sagatypes.Job{ID: uuid.New()})

	g3 := NewGuard(&countingFinalizable{}, nil)
	g3.Run(context.Background(), nil)
}

func TestNoOpOnFinishReturnsNil(t *testing.T) {
	if err := (NoOp{}).OnFinish(context.Background(), &sagatypes.Job{}); err != nil {
		t.Fatalf("expected NoOp to never error, got %v", err)
	}
}

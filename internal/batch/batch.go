// Package batch implements a limit-aware batch orchestrator: a FIFO pass
// over a set of jobs, each advanced by exactly one unit of work through
// the single-job Orchestrator, yielding the remainder of the queue back
// to a retry Engine once the Budget says to stop.
package batch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/yungbote/sagacore/internal/batch/budget"
	"github.com/yungbote/sagacore/internal/engine"
	"github.com/yungbote/sagacore/internal/orchestrator"
	"github.com/yungbote/sagacore/internal/platform/lock"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/retrier"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
)

// BatchOrchestrator is the batch-pass entry point: given a set of job
// references (only JobID need be populated — the bulk load happens
// here), drive each one unit of work at a time until the Budget says to
// yield.
//
// MainEngine and RetryEngine are the same interface injected twice:
// within one RunBatch call, a job with more work pending is simply
// re-queued to the tail of the in-process FIFO queue — no Engine
// round-trip needed while the budget allows it. MainEngine is the slot
// the caller uses to publish brand-new jobs (Job.Status=New) for their
// first batch tick; RetryEngine is used only for the overflow requeue
// once the Budget yields.
type BatchOrchestrator struct {
	Provider    provider.Provider
	MainEngine  engine.Engine
	RetryEngine engine.Engine
	Registry    *stepexec.Registry
	Retrier     *retrier.Retrier
	Locker      *lock.AdvisoryLocker
	Notify      runtime.Notifier
	Ceilings    budget.Ceilings
	Log         *logger.Logger
}

// BatchResult reports what RunBatch did with the input job set.
// CriticalErrors accumulates every independent per-item failure via
// go-multierror rather than discarding all but the last one, the same
// "don't lose any of them" shape buildbeaver's dto.JobGraph.Validate uses
// to accumulate per-step validation failures into one inspectable error.
type BatchResult struct {
	Completed      []uuid.UUID
	Requeued       []uuid.UUID
	SkippedLocked  []uuid.UUID
	CriticalErrors error
}

func (b *BatchOrchestrator) RunBatch(ctx context.Context, jobRefs []*sagatypes.Job, safetyFactor int) (*BatchResult, error) {
	result := &BatchResult{}
	var criticalErr *multierror.Error

	ids := make([]uuid.UUID, 0, len(jobRefs))
	for _, ref := range jobRefs {
		if ref == nil || ref.ID == uuid.Nil {
			criticalErr = multierror.Append(criticalErr, fmt.Errorf("batch: job reference missing job_id"))
			continue
		}
		ids = append(ids, ref.ID)
	}
	if len(ids) == 0 {
		result.CriticalErrors = criticalErr.ErrorOrNil()
		return result, nil
	}

	jobs, err := b.Provider.GetJobStates(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch: load job states: %w", err)
	}

	budg := budget.New(b.Ceilings, safetyFactor)
	prevCounter := b.Provider.SetCounter(budg.Count)
	defer b.Provider.SetCounter(prevCounter)
	orch := orchestrator.New(b.Registry, b.Retrier, nil, b.Log)

	queue := make([]*sagatypes.Job, 0, len(jobs))
	queue = append(queue, jobs...)

	released := make(map[uuid.UUID]func(), len(jobs))
	defer func() {
		for _, release := range released {
			release()
		}
	}()

	var requeue []*sagatypes.Job
	for len(queue) > 0 {
		if !budg.CanContinue() {
			requeue = append(requeue, queue...)
			break
		}
		job := queue[0]
		queue = queue[1:]

		if _, locked := released[job.ID]; !locked {
			ok, release, lockErr := b.tryLock(ctx, job.ID)
			if lockErr != nil {
				criticalErr = multierror.Append(criticalErr, fmt.Errorf("batch: lock job %s: %w", job.ID, lockErr))
				continue
			}
			if !ok {
				result.SkippedLocked = append(result.SkippedLocked, job.ID)
				continue
			}
			released[job.ID] = release
		}

		jc := runtime.New(ctx, b.Provider, job, nil, b.Notify)
		if err := orch.Run(ctx, jc); err != nil {
			criticalErr = multierror.Append(criticalErr, fmt.Errorf("batch: run job %s: %w", job.ID, err))
			continue
		}

		if isTerminal(job.Status) {
			result.Completed = append(result.Completed, job.ID)
			continue
		}
		queue = append(queue, job)
	}

	if err := b.Provider.Flush(ctx); err != nil {
		return nil, fmt.Errorf("batch: flush: %w", err)
	}

	if len(requeue) > 0 {
		result.Requeued = jobIDs(requeue)
		if b.RetryEngine != nil {
			if err := b.RetryEngine.Start(ctx, requeue); err != nil {
				criticalErr = multierror.Append(criticalErr, fmt.Errorf("batch: retry engine start: %w", err))
			}
		}
	}

	result.CriticalErrors = criticalErr.ErrorOrNil()
	return result, nil
}

func (b *BatchOrchestrator) tryLock(ctx context.Context, id uuid.UUID) (bool, func(), error) {
	if b.Locker == nil {
		return true, func() {}, nil
	}
	return b.Locker.TryLock(ctx, id)
}

func isTerminal(status sagatypes.JobStatus) bool {
	switch status {
	case sagatypes.JobCompleted, sagatypes.JobFailed, sagatypes.JobCompensationFailed:
		return true
	default:
		return false
	}
}

func jobIDs(jobs []*sagatypes.Job) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		if j != nil {
			ids = append(ids, j.ID)
		}
	}
	return ids
}

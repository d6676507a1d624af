package temporalengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/orchestrator"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"

	"go.temporal.io/sdk/activity"
)

// Activities wraps the single-job Orchestrator behind one Temporal
// activity, Tick: one activity call advances the job by exactly one
// unit of work and reports back whether it reached a terminal status.
type Activities struct {
	Log          *logger.Logger
	Provider     provider.Provider
	Orchestrator *orchestrator.Orchestrator
	Notify       runtime.Notifier
}

// Tick loads the job, drives one Orchestrator.Run call, flushes the
// buffered writes, and reports the resulting status. The calling
// Workflow loops this until Terminal is true.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.Provider == nil || a.Orchestrator == nil {
		return res, fmt.Errorf("temporalengine: activity not configured")
	}

	id, err := uuid.Parse(res.JobID)
	if err != nil || id == uuid.Nil {
		return res, fmt.Errorf("temporalengine: invalid job_id %q", jobID)
	}

	stopHB := a.startHeartbeat(ctx, id)
	defer stopHB()

	jobs, err := a.Provider.GetJobStates(ctx, []uuid.UUID{id})
	if err != nil {
		return res, fmt.Errorf("temporalengine: load job: %w", err)
	}
	if len(jobs) == 0 || jobs[0] == nil {
		return res, fmt.Errorf("temporalengine: job %s not found", id)
	}
	job := jobs[0]

	jc := runtime.New(ctx, a.Provider, job, nil, a.Notify)
	if err := a.Orchestrator.Run(ctx, jc); err != nil {
		return res, fmt.Errorf("temporalengine: orchestrator run: %w", err)
	}
	if err := a.Provider.Flush(ctx); err != nil {
		return res, fmt.Errorf("temporalengine: flush: %w", err)
	}

	res.Status = string(job.Status)
	res.Terminal = isTerminal(job.Status)
	res.LastError = job.Error
	return res, nil
}

func isTerminal(status sagatypes.JobStatus) bool {
	switch status {
	case sagatypes.JobCompleted, sagatypes.JobFailed, sagatypes.JobCompensationFailed:
		return true
	default:
		return false
	}
}

// startHeartbeat runs a ticker that records activity heartbeats so a
// long-running Tick (many chunks behind a single activity-level timeout)
// isn't mistaken for a stuck worker.
func (a *Activities) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		hb := time.NewTicker(10 * time.Second)
		defer hb.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-hb.C:
				activity.RecordHeartbeat(ctx, jobID.String())
			}
		}
	}()
	return func() { close(done) }
}

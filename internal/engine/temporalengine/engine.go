package temporalengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/sagatypes"

	temporalsdkclient "go.temporal.io/sdk/client"
)

// Engine implements engine.Engine over a Temporal client: each Job
// starts its own Workflow execution, keyed by Job.ID so a duplicate
// Start for the same job is a safe no-op (the default WorkflowIDReusePolicy
// rejects a second start against a still-running execution rather than
// silently doubling up the saga).
type Engine struct {
	Client    temporalsdkclient.Client
	TaskQueue string
}

func New(client temporalsdkclient.Client, taskQueue string) *Engine {
	if taskQueue == "" {
		taskQueue = LoadConfig().TaskQueue
	}
	return &Engine{Client: client, TaskQueue: taskQueue}
}

func (e *Engine) Start(ctx context.Context, jobs []*sagatypes.Job) error {
	if e == nil || e.Client == nil {
		return fmt.Errorf("temporalengine: client not configured")
	}
	if len(jobs) == 0 {
		return nil
	}

	var succeeded, failed []uuid.UUID
	errsByIndex := map[int]error{}

	for i, job := range jobs {
		if job == nil {
			errsByIndex[i] = fmt.Errorf("temporalengine: nil job at index %d", i)
			continue
		}
		opts := temporalsdkclient.StartWorkflowOptions{
			ID:        job.ID.String(),
			TaskQueue: e.TaskQueue,
		}
		if _, err := e.Client.ExecuteWorkflow(ctx, opts, Workflow); err != nil {
			errsByIndex[i] = err
			failed = append(failed, job.ID)
			continue
		}
		succeeded = append(succeeded, job.ID)
	}

	if len(errsByIndex) == 0 {
		return nil
	}
	return &errtax.PublishingError{
		SuccessfulJobs: succeeded,
		FailedJobs:     failed,
		ErrorsByIndex:  errsByIndex,
	}
}

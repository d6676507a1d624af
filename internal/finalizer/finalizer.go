// Package finalizer implements the terminal hook: a callback the
// orchestrator invokes exactly once per job, when that job reaches any
// terminal status. Modeled on a "guarded update, check rows affected"
// idiom for at-most-once semantics.
package finalizer

import (
	"context"

	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// Finalizable receives a job's final, read-only state once it reaches a
// terminal status. Implementations should not mutate job.
type Finalizable interface {
	OnFinish(ctx context.Context, job *sagatypes.Job) error
}

// Guard invokes Next.OnFinish for a job (a nil Guard, Next or job makes
// Run a no-op). It neither reads nor sets job.FinalizerExecuted: the
// orchestrator checks and sets that flag before calling Run. Finalizer
// errors are logged and swallowed — they never change the job's terminal
// status.
type Guard struct {
	Next Finalizable
	Log  *logger.Logger
}

func NewGuard(next Finalizable, log *logger.Logger) *Guard {
	return &Guard{Next: next, Log: log}
}

func (g *Guard) Run(ctx context.Context, job *sagatypes.Job) {
	if g == nil || g.Next == nil || job == nil {
		return
	}
	if err := g.Next.OnFinish(ctx, job); err != nil {
		if g.Log != nil {
			g.Log.Error("Finalizer failed", "job_id", job.ID, "status", job.Status, "error", err)
		}
	}
}

// NoOp satisfies Finalizable for jobs/tests with no finalization hook.
type NoOp struct{}

func (NoOp) OnFinish(ctx context.Context, job *sagatypes.Job) error { return nil }

// Package orchestrator is the single-job state machine: ordered named
// stages with inline/child execution modes, generalized to sagacore's
// Job/Step/Chunk/Direction model. Run advances exactly one unit of work
// per call: one chunk of the current Step, an aggregation finalization,
// or a terminal transition plus finalizer invocation.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/sagacore/internal/aggregator"
	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/finalizer"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/platform/tracing"
	"github.com/yungbote/sagacore/internal/retrier"
	"github.com/yungbote/sagacore/internal/runtime"
	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
)

// Orchestrator advances a single Job by one logical unit of work per Run
// call. It holds no per-job state of its own — everything it needs comes
// from jc (Job, Step, Provider) — so one Orchestrator value is safe to
// reuse across every job a batch pass touches.
type Orchestrator struct {
	Registry  *stepexec.Registry
	Retrier   *retrier.Retrier
	Finalizer *finalizer.Guard
	PageSize  int
	Log       *logger.Logger
}

func New(reg *stepexec.Registry, rt *retrier.Retrier, fin *finalizer.Guard, log *logger.Logger) *Orchestrator {
	return &Orchestrator{Registry: reg, Retrier: rt, Finalizer: fin, PageSize: aggregator.DefaultPageSize, Log: log.With("component", "Orchestrator")}
}

// Run dispatches on (jc.Job.Direction, jc.Job.Status) against the
// state-transition table, mutating jc.Job/jc.Step in place. Callers
// persist via jc.Provider — Run itself calls SaveJobs/SaveSteps/InsertChunks
// so a crash between chunk persistence and in-memory interpretation always
// resumes from what's actually on disk.
func (o *Orchestrator) Run(ctx context.Context, jc *runtime.Context) error {
	if jc == nil || jc.Job == nil {
		return fmt.Errorf("orchestrator: nil job context")
	}
	tr := tracing.Tracer()
	ctx, span := tr.Start(ctx, "sagacore.orchestrator.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", jc.Job.ID.String()),
		attribute.String("job.direction", string(jc.Job.Direction)),
		attribute.Int("job.current_step_index", jc.Job.CurrentStepIndex),
	)

	step, err := o.currentStep(jc.Job)
	if err != nil {
		return o.terminalFail(ctx, jc, err)
	}
	jc.Step = step

	switch dispatch(jc.Job) {
	case actionPromoteThenExecute:
		jc.Job.Status = sagatypes.JobInProgress
		if step != nil {
			step.Status = sagatypes.StepInProgress
		}
		return o.executeUnit(ctx, jc)
	case actionExecute:
		return o.executeUnit(ctx, jc)
	case actionCompensate:
		return o.compensateUnit(ctx, jc)
	case actionTerminalCleanup:
		return o.terminalCleanup(ctx, jc)
	default:
		return nil
	}
}

// currentStep returns jc.Job.Steps[jc.Job.CurrentStepIndex], or nil if the
// index is out of the plan's bounds (terminal cleanup paths only).
func (o *Orchestrator) currentStep(job *sagatypes.Job) (*sagatypes.Step, error) {
	if job.CurrentStepIndex < 0 || job.CurrentStepIndex >= len(job.Steps) {
		return nil, nil
	}
	for _, s := range job.Steps {
		if s != nil && s.StepIndex == job.CurrentStepIndex {
			return s, nil
		}
	}
	return nil, fmt.Errorf("orchestrator: job %s: no step at index %d", job.ID, job.CurrentStepIndex)
}

// executeUnit runs Down direction: resolve the Step, invoke Execute under
// the Retrier, persist the produced chunk, and interpret the result.
func (o *Orchestrator) executeUnit(ctx context.Context, jc *runtime.Context) error {
	step := jc.Step
	if step == nil {
		return o.terminalFail(ctx, jc, fmt.Errorf("orchestrator: no current step to execute"))
	}
	impl, err := o.Registry.Resolve(step.StepExecutorName)
	if err != nil {
		return o.handleDownError(ctx, jc, err)
	}

	var completion *sagatypes.StepCompletionState
	runErr := o.Retrier.Execute(ctx, func(ctx context.Context) error {
		c, err := impl.Execute(jc)
		if err != nil {
			return err
		}
		completion = c
		return nil
	})
	if runErr != nil {
		return o.handleDownError(ctx, jc, runErr)
	}
	if completion == nil {
		completion = &sagatypes.StepCompletionState{IsChunkCompleted: true}
	}

	if err := o.persistChunk(ctx, jc, completion); err != nil {
		return err
	}
	step.Attempts++
	step.LastError = ""

	if !completion.IsChunkCompleted {
		return jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step})
	}

	// Step finished: aggregate, advance, and either move to the next step
	// or complete the job.
	result, err := aggregator.RunWithPageSize(ctx, impl, jc, jc.Provider, step.ID, o.PageSize)
	if err != nil {
		return o.handleDownError(ctx, jc, fmt.Errorf("orchestrator: aggregation for step %s: %w", step.ID, err))
	}
	if err := setResult(step, result); err != nil {
		return o.terminalFail(ctx, jc, err)
	}
	step.Status = sagatypes.StepCompleted
	jc.Job.CurrentStepIndex++

	if jc.Job.CurrentStepIndex >= len(jc.Job.Steps) {
		jc.Job.Status = sagatypes.JobCompleted
		if err := jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step}); err != nil {
			return err
		}
		return o.finishTerminal(ctx, jc)
	}
	if err := jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step}); err != nil {
		return err
	}
	return jc.Provider.SaveJobs(ctx, []*sagatypes.Job{jc.Job})
}

// compensateUnit runs one step of Up-direction (compensating) execution.
func (o *Orchestrator) compensateUnit(ctx context.Context, jc *runtime.Context) error {
	step := jc.Step
	if step == nil {
		// currentStepIndex has already been decremented past -1 by a
		// previous call without the job having been marked terminal;
		// treat as a structural inconsistency and fail the job outright
		// rather than loop forever.
		return o.terminalFail(ctx, jc, fmt.Errorf("orchestrator: no current step to compensate"))
	}
	impl, err := o.Registry.Resolve(step.StepExecutorName)
	if err != nil {
		return o.handleUpError(ctx, jc, err)
	}
	step.Status = sagatypes.StepCompensating

	var completion *sagatypes.StepCompletionState
	runErr := o.Retrier.Execute(ctx, func(ctx context.Context) error {
		c, err := impl.Compensate(jc)
		if err != nil {
			return err
		}
		completion = c
		return nil
	})
	if runErr != nil {
		return o.handleUpError(ctx, jc, runErr)
	}
	if completion == nil {
		completion = &sagatypes.StepCompletionState{IsChunkCompleted: true}
	}
	if err := o.persistChunk(ctx, jc, completion); err != nil {
		return err
	}
	step.Attempts++
	step.LastError = ""

	if !completion.IsChunkCompleted {
		return jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step})
	}

	step.Status = sagatypes.StepCompensated
	jc.Job.CurrentStepIndex--
	if err := jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step}); err != nil {
		return err
	}

	if jc.Job.CurrentStepIndex < 0 {
		jc.Job.Status = sagatypes.JobFailed
		return o.finishTerminal(ctx, jc)
	}
	return jc.Provider.SaveJobs(ctx, []*sagatypes.Job{jc.Job})
}

// handleDownError implements the reversible-vs-permanent split between
// "Reversible failure during Down" and "Permanent failure during Down":
// the failing step's own Compensate runs first on the next Up pass
// (CurrentStepIndex is not advanced either way).
func (o *Orchestrator) handleDownError(ctx context.Context, jc *runtime.Context, err error) error {
	step := jc.Step
	if errtax.IsPermanent(err) {
		if step != nil {
			step.Status = sagatypes.StepFailed
			step.LastError = err.Error()
		}
		jc.Job.Status = sagatypes.JobFailed
		jc.Job.Error = err.Error()
		if o.Log != nil {
			stepID := uuid.Nil
			if step != nil {
				stepID = step.ID
			}
			o.Log.WithJob(jc.Job.ID, stepID, 0).Error("permanent failure, failing job without compensation", "cause", err.Error())
		}
		if step != nil {
			if serr := jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step}); serr != nil {
				return serr
			}
		}
		return o.finishTerminal(ctx, jc)
	}

	if step != nil {
		step.Status = sagatypes.StepFailed
		step.LastError = err.Error()
	}
	jc.Job.Direction = sagatypes.DirectionUp
	jc.Job.Status = sagatypes.JobAwaitingCompensation
	jc.Job.Error = err.Error()
	if o.Log != nil {
		stepID := uuid.Nil
		if step != nil {
			stepID = step.ID
		}
		o.Log.WithJob(jc.Job.ID, stepID, 0).Warn("reversible failure, routing to compensation", "cause", err.Error())
	}
	if step != nil {
		if serr := jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step}); serr != nil {
			return serr
		}
	}
	return jc.Provider.SaveJobs(ctx, []*sagatypes.Job{jc.Job})
}

// handleUpError implements the "on reversible failure during compensate"
// / exhausted-or-permanent compensate failure rule: either
// way the job ends Compensation_Failed, and the failing step is marked
// Failed even though compensation (not forward execution) is what failed.
func (o *Orchestrator) handleUpError(ctx context.Context, jc *runtime.Context, err error) error {
	step := jc.Step
	if step != nil {
		step.Status = sagatypes.StepFailed
		step.LastError = err.Error()
	}
	jc.Job.Status = sagatypes.JobCompensationFailed
	jc.Job.Error = err.Error()
	if step != nil {
		if serr := jc.Provider.SaveSteps(ctx, []*sagatypes.Step{step}); serr != nil {
			return serr
		}
	}
	return o.finishTerminal(ctx, jc)
}

// terminalFail is the safety net for structural inconsistencies (a job
// referencing a step index outside its own plan) that are not part of
// the taxonomy's ordinary reversible/permanent split.
func (o *Orchestrator) terminalFail(ctx context.Context, jc *runtime.Context, err error) error {
	jc.Job.Status = sagatypes.JobFailed
	jc.Job.Error = err.Error()
	return o.finishTerminal(ctx, jc)
}

// terminalCleanup handles the dispatch table's already-terminal rows
// (Up_Completed, Up_Failed, and their Down-direction structural
// counterparts): idempotent no-op except for making sure the finalizer
// has in fact run, covering a resume that crashed between the terminal
// SaveJobs and the finalizer call.
func (o *Orchestrator) terminalCleanup(ctx context.Context, jc *runtime.Context) error {
	if jc.Job.FinalizerExecuted {
		return nil
	}
	return o.finishTerminal(ctx, jc)
}

// finishTerminal persists the job's terminal status and invokes the
// Finalizer exactly once, guarded by FinalizerExecuted.
func (o *Orchestrator) finishTerminal(ctx context.Context, jc *runtime.Context) error {
	if !jc.Job.FinalizerExecuted {
		jc.Job.FinalizerExecuted = true
		if o.Finalizer != nil {
			o.Finalizer.Run(ctx, jc.Job)
		}
	}
	if err := jc.Provider.SaveJobs(ctx, []*sagatypes.Job{jc.Job}); err != nil {
		return err
	}
	switch jc.Job.Status {
	case sagatypes.JobCompleted:
		jc.Succeed()
	case sagatypes.JobFailed, sagatypes.JobCompensationFailed:
		jc.Fail(string(jc.Job.Status), fmt.Errorf("%s", jc.Job.Error))
	}
	return nil
}

// persistChunk inserts a Chunk row for completion before anything about
// it is interpreted in memory, so a crash between "chunk executed" and
// "step advanced" always resumes by re-reading the last persisted chunk.
func (o *Orchestrator) persistChunk(ctx context.Context, jc *runtime.Context, completion *sagatypes.StepCompletionState) error {
	if jc.Step == nil {
		return nil
	}
	partial, err := encodeJSON(completion.PartialResult)
	if err != nil {
		return fmt.Errorf("orchestrator: encode partial result: %w", err)
	}
	previous, err := encodeJSON(completion.PreviousValues)
	if err != nil {
		return fmt.Errorf("orchestrator: encode previous values: %w", err)
	}
	chunk := &sagatypes.Chunk{
		ParentStepID:   jc.Step.ID,
		ChunkIndex:     completion.NextChunkIndex,
		Status:         sagatypes.ChunkCompleted,
		PartialResult:  partial,
		PreviousValues: previous,
	}
	if err := jc.Provider.InsertChunks(ctx, []*sagatypes.Chunk{chunk}); err != nil {
		return fmt.Errorf("orchestrator: insert chunk: %w", err)
	}
	progress, err := encodeJSON(completion.ProgressState)
	if err != nil {
		return fmt.Errorf("orchestrator: encode progress state: %w", err)
	}
	jc.Step.ProgressState = progress
	jc.Step.IsChunkCompleted = completion.IsChunkCompleted
	return nil
}

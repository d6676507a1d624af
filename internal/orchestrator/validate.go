package orchestrator

import (
	"fmt"

	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/sagatypes"
	"github.com/yungbote/sagacore/internal/stepexec"
)

// ValidatePlan checks a Job's Steps: StepIndex must be contiguous from 0,
// and every StepExecutorName must already be registered, catching a
// misconfigured job before it runs instead of letting it fail mid-run.
// Neither Provider's CreateJobs calls it.
func ValidatePlan(job *sagatypes.Job, reg *stepexec.Registry) error {
	if job == nil {
		return errtax.NewValidationError("orchestrator: nil job")
	}
	if len(job.Steps) == 0 {
		return errtax.NewValidationError(fmt.Sprintf("orchestrator: job %s: no steps", job.ID))
	}
	seen := make(map[int]bool, len(job.Steps))
	for _, s := range job.Steps {
		if s == nil {
			return errtax.NewValidationError(fmt.Sprintf("orchestrator: job %s: nil step", job.ID))
		}
		if seen[s.StepIndex] {
			return errtax.NewValidationError(fmt.Sprintf("orchestrator: job %s: duplicate step_index %d", job.ID, s.StepIndex))
		}
		seen[s.StepIndex] = true
		if reg != nil && !reg.Has(s.StepExecutorName) {
			return errtax.NewValidationError(fmt.Sprintf("orchestrator: job %s: step %d: unregistered step_executor_name %q", job.ID, s.StepIndex, s.StepExecutorName))
		}
	}
	for i := 0; i < len(job.Steps); i++ {
		if !seen[i] {
			return errtax.NewValidationError(fmt.Sprintf("orchestrator: job %s: step_index not contiguous from 0 (missing %d)", job.ID, i))
		}
	}
	return nil
}

package sagatypes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job is the durable root record for one saga execution. It owns an
// ordered sequence of Steps and tracks which one is currently active plus
// which Direction the orchestrator is driving it in.
type Job struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`

	Status    JobStatus `gorm:"column:status;not null;index" json:"status"`
	Direction Direction `gorm:"column:direction;not null" json:"direction"`

	CurrentStepIndex int `gorm:"column:current_step_index;not null;default:0" json:"current_step_index"`

	FinalizerExecuted bool `gorm:"column:finalizer_executed;not null;default:false" json:"finalizer_executed"`

	// Version is bumped on every SaveJobs write and checked with a
	// WHERE version = ? clause, resolving cross-transaction mutual
	// exclusion (see internal/platform/lock for the complementary
	// advisory-lock half of that guarantee).
	Version int `gorm:"column:version;not null;default:0" json:"version"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	Result  datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	Error   string         `gorm:"column:error" json:"error,omitempty"`

	Steps []*Step `gorm:"foreignKey:JobID" json:"steps,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Job) TableName() string { return "saga_job" }

// Validate enforces the structural invariants for a Job: a known
// status/direction pair and a non-negative current step index, except
// that an Up job may hold -1 once compensation has walked back past its
// first step. The upper bound against len(Steps) is not checked.
func (j *Job) Validate() error {
	if j == nil {
		return fmt.Errorf("sagatypes: nil job")
	}
	if j.ID == uuid.Nil {
		return fmt.Errorf("sagatypes: job missing id")
	}
	switch j.Direction {
	case DirectionDown, DirectionUp:
	default:
		return fmt.Errorf("sagatypes: job %s: unknown direction %q", j.ID, j.Direction)
	}
	switch j.Status {
	case JobNew, JobPending, JobInProgress, JobAwaitingCompensation, JobCompleted, JobFailed, JobCompensationFailed:
	default:
		return fmt.Errorf("sagatypes: job %s: unknown status %q", j.ID, j.Status)
	}
	if j.CurrentStepIndex < 0 && !(j.Direction == DirectionUp && j.CurrentStepIndex == -1) {
		return fmt.Errorf("sagatypes: job %s: negative current_step_index", j.ID)
	}
	return nil
}

// Step is one unit of work within a Job's ordered plan. StepIndex is the
// Job's stable ordering key (contiguous 0..N-1, which
// internal/orchestrator.ValidatePlan checks; CreateJobs does not).
type Step struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	JobID     uuid.UUID `gorm:"type:uuid;not null;index:idx_saga_step_job_index,unique,priority:1" json:"job_id"`
	StepIndex int       `gorm:"column:step_index;not null;index:idx_saga_step_job_index,unique,priority:2" json:"step_index"`

	// StepExecutorName resolves via stepexec.Registry to a Step
	// implementation; never a reflective type name.
	StepExecutorName string `gorm:"column:step_executor_name;not null" json:"step_executor_name"`

	Status StepStatus `gorm:"column:status;not null;index" json:"status"`

	Attempts int `gorm:"column:attempts;not null;default:0" json:"attempts"`

	// ProgressState is the opaque chunking cursor a Step hands back from
	// Execute/Compensate and receives back verbatim on the next call.
	ProgressState datatypes.JSON `gorm:"column:progress_state;type:jsonb" json:"progress_state,omitempty"`

	IsChunkCompleted bool `gorm:"column:is_chunk_completed;not null;default:false" json:"is_chunk_completed"`

	// Result holds the aggregation output once Status reaches Completed;
	// nil until then.
	Result datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`

	LastError string `gorm:"column:last_error" json:"last_error,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Step) TableName() string { return "saga_step" }

func (s *Step) Validate() error {
	if s == nil {
		return fmt.Errorf("sagatypes: nil step")
	}
	if s.JobID == uuid.Nil {
		return fmt.Errorf("sagatypes: step %s missing job_id", s.ID)
	}
	if s.StepIndex < 0 {
		return fmt.Errorf("sagatypes: step %s: negative step_index", s.ID)
	}
	if s.StepExecutorName == "" {
		return fmt.Errorf("sagatypes: step %s: missing step_executor_name", s.ID)
	}
	switch s.Status {
	case StepPending, StepInProgress, StepCompleted, StepCompensating, StepCompensated, StepFailed:
	default:
		return fmt.Errorf("sagatypes: step %s: unknown status %q", s.ID, s.Status)
	}
	return nil
}

// Chunk is one persisted unit of partial progress within a Step. Every
// Execute/Compensate call that advances a Step's chunking cursor produces
// exactly one Chunk row, inserted before the in-memory state is
// interpreted, so a crash can always resume from the last chunk on disk.
type Chunk struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	ParentStepID uuid.UUID `gorm:"type:uuid;not null;index:idx_saga_chunk_step_index,unique,priority:1" json:"parent_step_id"`
	ChunkIndex   int       `gorm:"column:chunk_index;not null;index:idx_saga_chunk_step_index,unique,priority:2" json:"chunk_index"`

	Status ChunkStatus `gorm:"column:status;not null;index" json:"status"`

	PartialResult datatypes.JSON `gorm:"column:partial_result;type:jsonb" json:"partial_result,omitempty"`

	// PreviousValues is the opaque pre-image a Step recorded on Execute so
	// a later Compensate call over the same chunk range can undo exactly
	// what that chunk did, independent of whatever the Step's current
	// state looks like.
	PreviousValues datatypes.JSON `gorm:"column:previous_values;type:jsonb" json:"previous_values,omitempty"`

	// Fingerprint is a blake2b-128 hex digest over
	// (ParentStepID, ChunkIndex, PartialResult), computed by the Provider
	// on insert. It guards the orchestrator's own bookkeeping against
	// accidental duplicate application under at-least-once engine
	// redelivery; it says nothing about business-data idempotence, which
	// remains the Step author's responsibility.
	Fingerprint string `gorm:"column:fingerprint;index" json:"fingerprint,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Chunk) TableName() string { return "saga_chunk" }

func (c *Chunk) Validate() error {
	if c == nil {
		return fmt.Errorf("sagatypes: nil chunk")
	}
	if c.ParentStepID == uuid.Nil {
		return fmt.Errorf("sagatypes: chunk %s missing parent_step_id", c.ID)
	}
	if c.ChunkIndex < 0 {
		return fmt.Errorf("sagatypes: chunk %s: negative chunk_index", c.ID)
	}
	switch c.Status {
	case ChunkPending, ChunkInProgress, ChunkCompleted, ChunkFailed:
	default:
		return fmt.Errorf("sagatypes: chunk %s: unknown status %q", c.ID, c.Status)
	}
	return nil
}

// StepCompletionState is the return value of Step.Execute/Step.Compensate:
// exactly five fields, nothing more. NextChunkIndex is the
// ChunkIndex of the chunk just produced THIS call (the orchestrator
// persists a Chunk row at that index) — it is not a hint about whether
// there is more work; IsChunkCompleted alone decides that. ProgressState
// is the Step's own opaque cursor for computing the index to use on its
// next invocation; the orchestrator round-trips it verbatim and never
// inspects it.
type StepCompletionState struct {
	IsChunkCompleted bool
	NextChunkIndex   int
	ProgressState    map[string]any
	PartialResult    map[string]any
	PreviousValues   map[string]any
}

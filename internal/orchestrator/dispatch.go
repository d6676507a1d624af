package orchestrator

import "github.com/yungbote/sagacore/internal/sagatypes"

// action names what unit of work the dispatch table selects for the
// (Direction, JobStatus) pair evaluated at the start of one Run call.
type action int

const (
	actionNoop action = iota
	actionPromoteThenExecute
	actionExecute
	actionCompensate
	actionTerminalCleanup
)

// dispatchTable mirrors the saga's state-transition table verbatim,
// including the Up_InProgress alias for Up_Compensating and the
// Down_New/Down_Pending promotion-then-execute collapse. Any (direction,
// status) pair absent
// from this table is a structural inconsistency the caller should treat
// as a no-op rather than panic on, since a persisted row can in principle
// predate a taxonomy change.
var dispatchTable = map[sagatypes.TransitionKey]action{
	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobNew):     actionPromoteThenExecute,
	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobPending): actionPromoteThenExecute,
	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobInProgress): actionExecute,

	sagatypes.NewTransitionKey(sagatypes.DirectionUp, sagatypes.JobAwaitingCompensation): actionCompensate,
	sagatypes.NewTransitionKey(sagatypes.DirectionUp, sagatypes.JobInProgress):            actionCompensate, // alias of Up_Compensating
	sagatypes.NewTransitionKey(sagatypes.DirectionUp, sagatypes.JobCompensationFailed):    actionTerminalCleanup,

	sagatypes.NewTransitionKey(sagatypes.DirectionUp, sagatypes.JobCompleted): actionTerminalCleanup,
	sagatypes.NewTransitionKey(sagatypes.DirectionUp, sagatypes.JobFailed):    actionTerminalCleanup,

	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobCompleted):            actionTerminalCleanup,
	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobFailed):                actionTerminalCleanup,
	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobCompensationFailed):    actionTerminalCleanup,
	sagatypes.NewTransitionKey(sagatypes.DirectionDown, sagatypes.JobAwaitingCompensation):  actionCompensate,
}

func dispatch(job *sagatypes.Job) action {
	key := sagatypes.NewTransitionKey(job.Direction, job.Status)
	if a, ok := dispatchTable[key]; ok {
		return a
	}
	return actionNoop
}

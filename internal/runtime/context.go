// Package runtime defines the execution contract between the
// orchestrator and Step code: Steps never touch storage directly, they
// only go through this object.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// Notifier is a side-channel for progress/fail/succeed events, kept
// transport-agnostic so the domain stack isn't hard-wired to SSE, Redis
// pub/sub, or any one delivery mechanism.
type Notifier interface {
	JobProgress(ownerID uuid.UUID, job *sagatypes.Job, stage string, pct int, msg string)
	JobFailed(ownerID uuid.UUID, job *sagatypes.Job, stage string, errMsg string)
	JobSucceeded(ownerID uuid.UUID, job *sagatypes.Job)
}

// Context wraps the current Job/Step, the Provider, and an optional
// Notifier. Progress/Fail/Succeed forward job events to the Notifier;
// none of them changes or persists job state.
type Context struct {
	Ctx      context.Context
	Provider provider.Provider
	Job      *sagatypes.Job
	Step     *sagatypes.Step
	Notify   Notifier

	payload map[string]any
}

func New(ctx context.Context, prov provider.Provider, job *sagatypes.Job, step *sagatypes.Step, notify Notifier) *Context {
	c := &Context{Ctx: ctx, Provider: prov, Job: job, Step: step, Notify: notify}
	c.decodePayload()
	return c
}

func (c *Context) decodePayload() {
	if c.Job == nil || len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil || m == nil {
		c.payload = map[string]any{}
		return
	}
	c.payload = m
}

// Payload returns the decoded Job.Payload map; never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// StepProgressState decodes c.Step.ProgressState (raw jsonb) into a map,
// the same opaque cursor a Step's previous Execute/Compensate call handed
// back. Never nil; a Step with no prior progress sees an empty map.
func (c *Context) StepProgressState() map[string]any {
	if c.Step == nil || len(c.Step.ProgressState) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(c.Step.ProgressState, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// PayloadUUID reads a payload field and attempts to parse it as a UUID.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Progress reports non-terminal progress for the Job this Context wraps.
// It does not persist by itself — the orchestrator's Run loop persists
// Job/Step state after every dispatch table action — Progress only
// forwards the event to the Notifier for UI/operational visibility.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Notify == nil || c.Job == nil {
		return
	}
	c.Notify.JobProgress(c.Job.OwnerID, c.Job, stage, pct, msg)
}

// Fail reports a terminal job failure to the Notifier. The orchestrator
// is responsible for setting Job.Status/Job.Error before calling this.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Notify == nil || c.Job == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.Notify.JobFailed(c.Job.OwnerID, c.Job, stage, msg)
}

// Succeed reports terminal job success to the Notifier.
func (c *Context) Succeed() {
	if c == nil || c.Notify == nil || c.Job == nil {
		return
	}
	c.Notify.JobSucceeded(c.Job.OwnerID, c.Job)
}

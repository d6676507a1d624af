// Package notify implements runtime.Notifier, the side-channel progress
// events the orchestrator emits as a Job advances. A pub/sub channel an
// operational dashboard (or the httpapi admin API in a future
// iteration) can subscribe to, instead of polling Provider.GetJobStates.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// Event is the wire shape published to the Redis channel.
type Event struct {
	Kind    string    `json:"kind"` // progress | failed | succeeded
	JobID   uuid.UUID `json:"job_id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Stage   string    `json:"stage,omitempty"`
	Percent int       `json:"percent,omitempty"`
	Message string    `json:"message,omitempty"`
}

// RedisNotifier publishes one Event per call to a single Redis channel:
// "one channel, JSON envelope, fire and forget".
type RedisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisNotifier(rdb *goredis.Client, channel string, log *logger.Logger) *RedisNotifier {
	if channel == "" {
		channel = "sagacore:job-events"
	}
	return &RedisNotifier{log: log.With("component", "RedisNotifier"), rdb: rdb, channel: channel}
}

func (n *RedisNotifier) publish(ev Event) {
	if n == nil || n.rdb == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		if n.log != nil {
			n.log.Warn("notify: marshal event failed", "error", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, n.channel, payload).Err(); err != nil {
		if n.log != nil {
			n.log.Warn("notify: publish failed", "channel", n.channel, "error", err)
		}
	}
}

func (n *RedisNotifier) JobProgress(ownerID uuid.UUID, job *sagatypes.Job, stage string, pct int, msg string) {
	if job == nil {
		return
	}
	n.publish(Event{Kind: "progress", JobID: job.ID, OwnerID: ownerID, Stage: stage, Percent: pct, Message: msg})
}

func (n *RedisNotifier) JobFailed(ownerID uuid.UUID, job *sagatypes.Job, stage string, errMsg string) {
	if job == nil {
		return
	}
	n.publish(Event{Kind: "failed", JobID: job.ID, OwnerID: ownerID, Stage: stage, Message: errMsg})
}

func (n *RedisNotifier) JobSucceeded(ownerID uuid.UUID, job *sagatypes.Job) {
	if job == nil {
		return
	}
	n.publish(Event{Kind: "succeeded", JobID: job.ID, OwnerID: ownerID})
}

// LogNotifier forwards every event to structured logging only, for
// deployments with no Redis configured (e.g. the inmem Engine demo path).
type LogNotifier struct {
	Log *logger.Logger
}

func (n LogNotifier) JobProgress(ownerID uuid.UUID, job *sagatypes.Job, stage string, pct int, msg string) {
	if n.Log == nil || job == nil {
		return
	}
	n.Log.Info("job progress", "job_id", job.ID, "owner_id", ownerID, "stage", stage, "percent", pct, "message", msg)
}

func (n LogNotifier) JobFailed(ownerID uuid.UUID, job *sagatypes.Job, stage string, errMsg string) {
	if n.Log == nil || job == nil {
		return
	}
	n.Log.Warn("job failed", "job_id", job.ID, "owner_id", ownerID, "stage", stage, "error", errMsg)
}

func (n LogNotifier) JobSucceeded(ownerID uuid.UUID, job *sagatypes.Job) {
	if n.Log == nil || job == nil {
		return
	}
	n.Log.Info("job succeeded", "job_id", job.ID, "owner_id", ownerID)
}

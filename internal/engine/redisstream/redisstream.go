// Package redisstream is a durable Engine backed by Redis Streams: the
// closest Go analogue available in this module's dependency graph to a
// full event-bus product. The bus product itself is out of scope, but
// the Engine interface and at least one durable transport implementing
// it are core to dispatch.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

const defaultField = "job"

// Engine XADDs one entry per job to a stream keyed by the job's first
// step's StepExecutorName — sagacore has no notion of "job type" of its
// own, so the first step's executor name is the closest stand-in for a
// routing key; jobs with no steps yet route to a fallback stream.
type Engine struct {
	rdb            *redis.Client
	streamPrefix   string
	fallbackStream string
}

func New(rdb *redis.Client, streamPrefix string) *Engine {
	if streamPrefix == "" {
		streamPrefix = "sagacore:jobs:"
	}
	return &Engine{rdb: rdb, streamPrefix: streamPrefix, fallbackStream: streamPrefix + "unrouted"}
}

func (e *Engine) streamFor(job *sagatypes.Job) string {
	if len(job.Steps) == 0 || job.Steps[0] == nil || job.Steps[0].StepExecutorName == "" {
		return e.fallbackStream
	}
	return e.streamPrefix + job.Steps[0].StepExecutorName
}

// Start pipelines one XADD per job. A partial pipeline failure is
// reported as *errtax.PublishingError naming exactly which jobs landed
// and which didn't, rather than aborting the whole batch on the first
// Redis error — some jobs genuinely did get durably queued and must not
// be silently re-published by a caller that only sees one aggregate
// error.
func (e *Engine) Start(ctx context.Context, jobs []*sagatypes.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	pipe := e.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(jobs))
	for i, job := range jobs {
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("redisstream: marshal job %s: %w", job.ID, err)
		}
		cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: e.streamFor(job),
			Values: map[string]any{defaultField: payload},
		})
	}
	_, pipeErr := pipe.Exec(ctx)
	if pipeErr == nil {
		return nil
	}

	var successIDs, failedIDs []uuid.UUID
	errsByIndex := map[int]error{}
	for i, cmd := range cmds {
		if err := cmd.Err(); err != nil {
			failedIDs = append(failedIDs, jobs[i].ID)
			errsByIndex[i] = err
			continue
		}
		successIDs = append(successIDs, jobs[i].ID)
	}
	return &errtax.PublishingError{
		SuccessfulJobs: successIDs,
		FailedJobs:     failedIDs,
		ErrorsByIndex:  errsByIndex,
	}
}

// Consume returns up to 100 decoded Jobs read from stream via XREAD,
// starting after lastID ("0" for the beginning, "$" for only-new), plus
// the ID of the last entry read. The
// caller is responsible for advancing lastID across calls (e.g. storing
// the last delivered entry ID in a consumer-group offset); this is the
// at-least-once read side, with no consumer-group ack bookkeeping, since
// sagacore's own Provider/Job.Version pair (not the transport) owns
// exactly-once application semantics.
func Consume(ctx context.Context, rdb *redis.Client, stream, lastID string) ([]*sagatypes.Job, string, error) {
	res, err := rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   100,
		Block:   0,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, lastID, nil
		}
		return nil, lastID, fmt.Errorf("redisstream: xread %s: %w", stream, err)
	}
	var jobs []*sagatypes.Job
	next := lastID
	for _, s := range res {
		for _, msg := range s.Messages {
			raw, ok := msg.Values[defaultField]
			if !ok {
				continue
			}
			var payload []byte
			switch v := raw.(type) {
			case string:
				payload = []byte(v)
			case []byte:
				payload = v
			default:
				continue
			}
			var job sagatypes.Job
			if err := json.Unmarshal(payload, &job); err != nil {
				continue
			}
			jobs = append(jobs, &job)
			next = msg.ID
		}
	}
	return jobs, next, nil
}

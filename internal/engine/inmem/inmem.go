// Package inmem is a channel-backed, single-process Engine (buffer depth
// set by New) for tests and the demo binary. It is not durable: a job handed to Start is lost if
// nothing is draining Jobs() when the process exits, which is why it is
// documented here as test/demo-only rather than a production transport.
package inmem

import (
	"context"
	"fmt"

	"github.com/yungbote/sagacore/internal/sagatypes"
)

type Engine struct {
	jobs chan *sagatypes.Job
}

// New constructs an Engine with the given channel buffer depth. A depth
// of 0 makes Start block until something is ranging over Jobs(), which is
// the right default for tests that want to observe exactly what was
// published without an intervening buffer masking a bug.
func New(bufferDepth int) *Engine {
	if bufferDepth < 0 {
		bufferDepth = 0
	}
	return &Engine{jobs: make(chan *sagatypes.Job, bufferDepth)}
}

// Jobs exposes the channel a worker loop ranges over to consume
// published jobs. Closed only by Close.
func (e *Engine) Jobs() <-chan *sagatypes.Job {
	return e.jobs
}

func (e *Engine) Start(ctx context.Context, jobs []*sagatypes.Job) error {
	for i, job := range jobs {
		select {
		case e.jobs <- job:
		case <-ctx.Done():
			return fmt.Errorf("inmem: start: %w (published %d/%d jobs)", ctx.Err(), i, len(jobs))
		}
	}
	return nil
}

// Close shuts down the jobs channel. Must only be called once, after no
// further Start calls are expected.
func (e *Engine) Close() {
	close(e.jobs)
}

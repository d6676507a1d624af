// Package memprovider is an in-memory Provider used by orchestrator and
// batch unit tests, keeping orchestrator/*.go pure and database-free
// while provider's own integration tests are the only layer that
// touches Postgres.
package memprovider

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/provider"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

type Provider struct {
	mu sync.Mutex

	jobs  map[uuid.UUID]*sagatypes.Job
	steps map[uuid.UUID]*sagatypes.Step
	// chunks keyed by ParentStepID, stored sorted by ChunkIndex on insert.
	chunks map[uuid.UUID][]*sagatypes.Chunk

	Queries   int
	Mutations int
}

func New() *Provider {
	return &Provider{
		jobs:   map[uuid.UUID]*sagatypes.Job{},
		steps:  map[uuid.UUID]*sagatypes.Step{},
		chunks: map[uuid.UUID][]*sagatypes.Chunk{},
	}
}

var _ provider.Provider = (*Provider)(nil)

func (p *Provider) CreateJobs(ctx context.Context, jobs []*sagatypes.Job) ([]*sagatypes.Job, error) {
	if len(jobs) == 0 {
		return []*sagatypes.Job{}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if err := j.Validate(); err != nil {
			return nil, errtax.NewValidationError(err.Error())
		}
		p.jobs[j.ID] = j
		for _, s := range j.Steps {
			if s.ID == uuid.Nil {
				s.ID = uuid.New()
			}
			s.JobID = j.ID
			p.steps[s.ID] = s
		}
	}
	p.Mutations += len(jobs)
	return jobs, nil
}

func (p *Provider) GetJobStates(ctx context.Context, ids []uuid.UUID) ([]*sagatypes.Job, error) {
	if len(ids) == 0 {
		return []*sagatypes.Job{}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*sagatypes.Job, 0, len(ids))
	for _, id := range ids {
		if j, ok := p.jobs[id]; ok {
			out = append(out, j)
		}
	}
	p.Queries++
	return out, nil
}

func (p *Provider) SaveJobs(ctx context.Context, jobs []*sagatypes.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
		j.Version++
		p.jobs[j.ID] = j
	}
	p.Mutations += len(jobs)
	return nil
}

func (p *Provider) SaveSteps(ctx context.Context, steps []*sagatypes.Step) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
		p.steps[s.ID] = s
	}
	p.Mutations += len(steps)
	return nil
}

func (p *Provider) SaveChunks(ctx context.Context, chunks []*sagatypes.Chunk) error {
	return p.InsertChunks(ctx, chunks)
}

func (p *Provider) InsertChunks(ctx context.Context, chunks []*sagatypes.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if err := c.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
		existing := p.chunks[c.ParentStepID]
		dup := false
		for i, e := range existing {
			if e.ChunkIndex == c.ChunkIndex {
				existing[i] = c
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, c)
			sort.Slice(existing, func(i, j int) bool { return existing[i].ChunkIndex < existing[j].ChunkIndex })
		}
		p.chunks[c.ParentStepID] = existing
	}
	p.Mutations += len(chunks)
	return nil
}

func (p *Provider) GetChunksForStep(ctx context.Context, stepID uuid.UUID, pageCursor string, pageSize int) ([]*sagatypes.Chunk, string, error) {
	if pageSize <= 0 {
		pageSize = 200
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries++
	all := p.chunks[stepID]

	start := 0
	if pageCursor != "" {
		cursor, err := strconv.Atoi(pageCursor)
		if err != nil {
			return nil, "", fmt.Errorf("memprovider: invalid page cursor %q", pageCursor)
		}
		for i, c := range all {
			if c.ChunkIndex > cursor {
				start = i
				break
			}
			start = i + 1
		}
	}
	if start >= len(all) {
		return []*sagatypes.Chunk{}, "", nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	next := ""
	if end < len(all) {
		next = strconv.Itoa(page[len(page)-1].ChunkIndex)
	}
	return page, next, nil
}

func (p *Provider) Flush(ctx context.Context) error { return nil }

func (p *Provider) InvalidateCache() {}

// SetCounter is a no-op: tests observe pressure directly via the exported
// Queries/Mutations fields rather than through a CounterFunc callback.
func (p *Provider) SetCounter(count provider.CounterFunc) provider.CounterFunc { return nil }

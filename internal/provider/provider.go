// Package provider implements the sagacore persistence contract: batched,
// cache-fronted reads and writes against the three saga tables
// (saga_job, saga_step, saga_chunk).
package provider

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/sagacore/internal/errtax"
	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// Provider is the persistence contract every storage backend implements.
type Provider interface {
	CreateJobs(ctx context.Context, jobs []*sagatypes.Job) ([]*sagatypes.Job, error)
	GetJobStates(ctx context.Context, ids []uuid.UUID) ([]*sagatypes.Job, error)
	SaveJobs(ctx context.Context, jobs []*sagatypes.Job) error
	SaveSteps(ctx context.Context, steps []*sagatypes.Step) error
	SaveChunks(ctx context.Context, chunks []*sagatypes.Chunk) error
	InsertChunks(ctx context.Context, chunks []*sagatypes.Chunk) error
	GetChunksForStep(ctx context.Context, stepID uuid.UUID, pageCursor string, pageSize int) ([]*sagatypes.Chunk, string, error)
	Flush(ctx context.Context) error
	InvalidateCache()

	// SetCounter swaps the active CounterFunc, returning the previous one
	// so a caller can restore it afterward. The BatchOrchestrator uses
	// this to point a shared, long-lived Provider at a fresh per-RunBatch
	// Budget, since the Budget itself cannot outlive a single batch pass.
	SetCounter(count CounterFunc) CounterFunc
}

// CounterFunc is called once per logical storage operation (query or
// mutation) so a Budget can observe per-transaction resource usage the
// way a platform governor limit would, without Go having an ambient
// per-transaction counter of its own.
type CounterFunc func(queries, mutations int)

type gormProvider struct {
	db  *gorm.DB
	log *logger.Logger

	count CounterFunc

	mu    sync.RWMutex
	cache map[uuid.UUID]*sagatypes.Job

	pendingMu     sync.Mutex
	pendingJobs   []*sagatypes.Job
	pendingSteps  []*sagatypes.Step
	pendingChunks []*sagatypes.Chunk
}

// New constructs a Provider backed by db (postgres in production, sqlite
// in tests). count may be nil; when set, it is invoked after every
// storage call so a Budget can track query/mutation pressure.
func New(db *gorm.DB, baseLog *logger.Logger, count CounterFunc) Provider {
	return &gormProvider{
		db:    db,
		log:   baseLog.With("component", "Provider"),
		count: count,
		cache: map[uuid.UUID]*sagatypes.Job{},
	}
}

func (p *gormProvider) bump(queries, mutations int) {
	p.mu.RLock()
	count := p.count
	p.mu.RUnlock()
	if count != nil {
		count(queries, mutations)
	}
}

func (p *gormProvider) SetCounter(count CounterFunc) CounterFunc {
	p.mu.Lock()
	prev := p.count
	p.count = count
	p.mu.Unlock()
	return prev
}

func (p *gormProvider) CreateJobs(ctx context.Context, jobs []*sagatypes.Job) ([]*sagatypes.Job, error) {
	if len(jobs) == 0 {
		return []*sagatypes.Job{}, nil
	}
	for _, j := range jobs {
		if j.ID == uuid.Nil {
			j.ID = uuid.New()
		}
		if err := j.Validate(); err != nil {
			return nil, errtax.NewValidationError(err.Error())
		}
	}
	if err := p.db.WithContext(ctx).Create(&jobs).Error; err != nil {
		return nil, fmt.Errorf("provider: create jobs: %w", err)
	}
	p.bump(0, len(jobs))
	p.mu.Lock()
	for _, j := range jobs {
		p.cache[j.ID] = j
	}
	p.mu.Unlock()
	return jobs, nil
}

func (p *gormProvider) GetJobStates(ctx context.Context, ids []uuid.UUID) ([]*sagatypes.Job, error) {
	if len(ids) == 0 {
		return []*sagatypes.Job{}, nil
	}
	out := make([]*sagatypes.Job, 0, len(ids))
	var missing []uuid.UUID

	p.mu.RLock()
	for _, id := range ids {
		if j, ok := p.cache[id]; ok {
			out = append(out, j)
		} else {
			missing = append(missing, id)
		}
	}
	p.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	var rows []*sagatypes.Job
	if err := p.db.WithContext(ctx).
		Preload("Steps").
		Where("id IN ?", missing).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("provider: get job states: %w", err)
	}
	p.bump(1, 0)

	p.mu.Lock()
	for _, j := range rows {
		p.cache[j.ID] = j
	}
	p.mu.Unlock()

	out = append(out, rows...)
	return out, nil
}

// SaveJobs buffers jobs for the next Flush: each entity kind is saved
// with a single batched write.
func (p *gormProvider) SaveJobs(ctx context.Context, jobs []*sagatypes.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	p.pendingMu.Lock()
	p.pendingJobs = append(p.pendingJobs, jobs...)
	p.pendingMu.Unlock()
	return nil
}

func (p *gormProvider) SaveSteps(ctx context.Context, steps []*sagatypes.Step) error {
	if len(steps) == 0 {
		return nil
	}
	p.pendingMu.Lock()
	p.pendingSteps = append(p.pendingSteps, steps...)
	p.pendingMu.Unlock()
	return nil
}

func (p *gormProvider) SaveChunks(ctx context.Context, chunks []*sagatypes.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	p.pendingMu.Lock()
	p.pendingChunks = append(p.pendingChunks, chunks...)
	p.pendingMu.Unlock()
	return nil
}

// InsertChunks is unbuffered: chunk persistence must land before the
// orchestrator interprets the in-memory Step state, so it cannot wait for
// the next Flush without weakening resumability after a crash.
func (p *gormProvider) InsertChunks(ctx context.Context, chunks []*sagatypes.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.Fingerprint = fingerprint(c.ParentStepID, c.ChunkIndex, c.PartialResult)
		if err := c.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
	}
	if err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "parent_step_id"}, {Name: "chunk_index"}},
			DoNothing: true,
		}).
		Create(&chunks).Error; err != nil {
		return fmt.Errorf("provider: insert chunks: %w", err)
	}
	p.bump(0, len(chunks))
	return nil
}

// GetChunksForStep pages chunks in chunk_index ascending order, never
// loading an unbounded result set.
func (p *gormProvider) GetChunksForStep(ctx context.Context, stepID uuid.UUID, pageCursor string, pageSize int) ([]*sagatypes.Chunk, string, error) {
	if stepID == uuid.Nil {
		return []*sagatypes.Chunk{}, "", nil
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	q := p.db.WithContext(ctx).Where("parent_step_id = ?", stepID)
	if pageCursor != "" {
		q = q.Where("chunk_index > ?", pageCursor)
	}
	var rows []*sagatypes.Chunk
	if err := q.Order("chunk_index ASC").Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, "", fmt.Errorf("provider: get chunks for step: %w", err)
	}
	p.bump(1, 0)
	next := ""
	if len(rows) == pageSize {
		next = fmt.Sprintf("%d", rows[len(rows)-1].ChunkIndex)
	}
	return rows, next, nil
}

// Flush commits every buffered Save* call in one GORM transaction,
// running the three batched writes concurrently via errgroup since they
// touch independent tables.
func (p *gormProvider) Flush(ctx context.Context) error {
	p.pendingMu.Lock()
	jobs := p.pendingJobs
	steps := p.pendingSteps
	chunks := p.pendingChunks
	p.pendingJobs = nil
	p.pendingSteps = nil
	p.pendingChunks = nil
	p.pendingMu.Unlock()

	if len(jobs) == 0 && len(steps) == 0 && len(chunks) == 0 {
		return nil
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, gctx := errgroup.WithContext(ctx)
		_ = gctx
		if len(jobs) > 0 {
			g.Go(func() error { return p.saveJobsTx(tx, jobs) })
		}
		if len(steps) > 0 {
			g.Go(func() error { return p.saveStepsTx(tx, steps) })
		}
		if len(chunks) > 0 {
			g.Go(func() error { return p.saveChunksTx(tx, chunks) })
		}
		return g.Wait()
	})
}

func (p *gormProvider) saveJobsTx(tx *gorm.DB, jobs []*sagatypes.Job) error {
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
		expected := j.Version
		j.Version++
		res := tx.Model(&sagatypes.Job{}).
			Where("id = ? AND version = ?", j.ID, expected).
			Updates(map[string]any{
				"status":              j.Status,
				"direction":           j.Direction,
				"current_step_index": j.CurrentStepIndex,
				"finalizer_executed": j.FinalizerExecuted,
				"version":             j.Version,
				"payload":             j.Payload,
				"result":              j.Result,
				"error":               j.Error,
			})
		if res.Error != nil {
			return fmt.Errorf("provider: save job %s: %w", j.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("provider: save job %s: %w", j.ID, errtax.ErrStaleVersion)
		}
	}
	p.bump(0, len(jobs))
	p.mu.Lock()
	for _, j := range jobs {
		p.cache[j.ID] = j
	}
	p.mu.Unlock()
	return nil
}

func (p *gormProvider) saveStepsTx(tx *gorm.DB, steps []*sagatypes.Step) error {
	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
		if err := tx.Save(s).Error; err != nil {
			return fmt.Errorf("provider: save step %s: %w", s.ID, err)
		}
	}
	p.bump(0, len(steps))
	return nil
}

func (p *gormProvider) saveChunksTx(tx *gorm.DB, chunks []*sagatypes.Chunk) error {
	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return errtax.NewValidationError(err.Error())
		}
		if err := tx.Save(c).Error; err != nil {
			return fmt.Errorf("provider: save chunk %s: %w", c.ID, err)
		}
	}
	p.bump(0, len(chunks))
	return nil
}

func (p *gormProvider) InvalidateCache() {
	p.mu.Lock()
	p.cache = map[uuid.UUID]*sagatypes.Job{}
	p.mu.Unlock()
}

func fingerprint(stepID uuid.UUID, chunkIndex int, partial json.RawMessage) string {
	h, _ := blake2b.New(16, nil)
	_, _ = h.Write([]byte(stepID.String()))
	_, _ = h.Write([]byte(fmt.Sprintf(":%d:", chunkIndex)))
	_, _ = h.Write(partial)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

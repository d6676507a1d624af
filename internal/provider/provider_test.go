package provider

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sagacore/internal/provider/providertest"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

func TestCreateJobsThenGetJobStatesUsesCache(t *testing.T) {
	db := providertest.DB(t)
	tx := providertest.Tx(t, db)
	prov := New(tx, providertest.Logger(t), nil)

	job := &sagatypes.Job{
		OwnerID:   uuid.New(),
		Status:    sagatypes.JobNew,
		Direction: sagatypes.DirectionDown,
	}
	created, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job})
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	if len(created) != 1 || created[0].ID == uuid.Nil {
		t.Fatalf("expected one created job with an assigned id, got %+v", created)
	}

	got, err := prov.GetJobStates(context.Background(), []uuid.UUID{created[0].ID})
	if err != nil {
		t.Fatalf("get job states: %v", err)
	}
	if len(got) != 1 || got[0].ID != created[0].ID {
		t.Fatalf("expected cached job to be returned, got %+v", got)
	}
}

func TestSaveJobsBumpsVersionAndDetectsStaleWrites(t *testing.T) {
	db := providertest.DB(t)
	tx := providertest.Tx(t, db)
	prov := New(tx, providertest.Logger(t), nil)

	job := &sagatypes.Job{OwnerID: uuid.New(), Status: sagatypes.JobNew, Direction: sagatypes.DirectionDown}
	created, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job})
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	job = created[0]

	job.Status = sagatypes.JobInProgress
	if err := prov.SaveJobs(context.Background(), []*sagatypes.Job{job}); err != nil {
		t.Fatalf("buffer save: %v", err)
	}
	if err := prov.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if job.Version != 1 {
		t.Fatalf("expected version bumped to 1 after one save, got %d", job.Version)
	}

	// A second save using a stale copy (version still at the pre-bump
	// value) must fail the optimistic-concurrency check.
	stale := &sagatypes.Job{ID: job.ID, OwnerID: job.OwnerID, Status: sagatypes.JobCompleted,
		Direction: sagatypes.DirectionDown, Version: 0}
	if err := prov.SaveJobs(context.Background(), []*sagatypes.Job{stale}); err != nil {
		t.Fatalf("buffer stale save: %v", err)
	}
	if err := prov.Flush(context.Background()); err == nil {
		t.Fatal("expected a stale version write to fail")
	}
}

func TestInsertChunksIsIdempotentOnConflict(t *testing.T) {
	db := providertest.DB(t)
	tx := providertest.Tx(t, db)
	prov := New(tx, providertest.Logger(t), nil)

	job := &sagatypes.Job{OwnerID: uuid.New(), Status: sagatypes.JobNew, Direction: sagatypes.DirectionDown}
	created, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job})
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	step := &sagatypes.Step{JobID: created[0].ID, StepIndex: 0, StepExecutorName: "demo", Status: sagatypes.StepPending}
	if err := prov.SaveSteps(context.Background(), []*sagatypes.Step{step}); err != nil {
		t.Fatalf("buffer save step: %v", err)
	}
	if err := prov.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	chunk := &sagatypes.Chunk{ParentStepID: step.ID, ChunkIndex: 0, Status: sagatypes.ChunkCompleted}
	if err := prov.InsertChunks(context.Background(), []*sagatypes.Chunk{chunk}); err != nil {
		t.Fatalf("insert chunk: %v", err)
	}
	// Re-inserting at the same (parent_step_id, chunk_index) must not
	// error, and must not create a second row.
	dup := &sagatypes.Chunk{ParentStepID: step.ID, ChunkIndex: 0, Status: sagatypes.ChunkCompleted}
	if err := prov.InsertChunks(context.Background(), []*sagatypes.Chunk{dup}); err != nil {
		t.Fatalf("duplicate insert chunk: %v", err)
	}

	chunks, next, err := prov.GetChunksForStep(context.Background(), step.ID, "", 10)
	if err != nil {
		t.Fatalf("get chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk row after a conflicting re-insert, got %d", len(chunks))
	}
	if next != "" {
		t.Fatalf("expected no further page, got cursor %q", next)
	}
}

func TestGetChunksForStepPaginates(t *testing.T) {
	db := providertest.DB(t)
	tx := providertest.Tx(t, db)
	prov := New(tx, providertest.Logger(t), nil)

	job := &sagatypes.Job{OwnerID: uuid.New(), Status: sagatypes.JobNew, Direction: sagatypes.DirectionDown}
	created, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job})
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	step := &sagatypes.Step{JobID: created[0].ID, StepIndex: 0, StepExecutorName: "demo", Status: sagatypes.StepPending}
	if err := prov.SaveSteps(context.Background(), []*sagatypes.Step{step}); err != nil {
		t.Fatalf("buffer save step: %v", err)
	}
	if err := prov.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	chunks := make([]*sagatypes.Chunk, 5)
	for i := range chunks {
		chunks[i] = &sagatypes.Chunk{ParentStepID: step.ID, ChunkIndex: i, Status: sagatypes.ChunkCompleted}
	}
	if err := prov.InsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("insert chunks: %v", err)
	}

	first, cursor, err := prov.GetChunksForStep(context.Background(), step.ID, "", 2)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(first) != 2 || cursor == "" {
		t.Fatalf("expected a 2-row page with a continuation cursor, got %d rows cursor=%q", len(first), cursor)
	}

	second, cursor2, err := prov.GetChunksForStep(context.Background(), step.ID, cursor, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second) != 2 || cursor2 == "" {
		t.Fatalf("expected a second 2-row page with a continuation cursor, got %d rows cursor=%q", len(second), cursor2)
	}

	third, cursor3, err := prov.GetChunksForStep(context.Background(), step.ID, cursor2, 2)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(third) != 1 || cursor3 != "" {
		t.Fatalf("expected a final 1-row page with no further cursor, got %d rows cursor=%q", len(third), cursor3)
	}
}

func TestCounterFuncObservesQueriesAndMutations(t *testing.T) {
	db := providertest.DB(t)
	tx := providertest.Tx(t, db)

	var queries, mutations int
	prov := New(tx, providertest.Logger(t), func(q, m int) {
		queries += q
		mutations += m
	})

	job := &sagatypes.Job{OwnerID: uuid.New(), Status: sagatypes.JobNew, Direction: sagatypes.DirectionDown}
	if _, err := prov.CreateJobs(context.Background(), []*sagatypes.Job{job}); err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	if mutations == 0 {
		t.Fatal("expected CreateJobs to bump the mutation counter")
	}

	if _, err := prov.GetJobStates(context.Background(), []uuid.UUID{uuid.New()}); err != nil {
		t.Fatalf("get job states: %v", err)
	}
	if queries == 0 {
		t.Fatal("expected a cache-miss GetJobStates to bump the query counter")
	}
}

func TestSetCounterReturnsPrevious(t *testing.T) {
	db := providertest.DB(t)
	tx := providertest.Tx(t, db)
	prov := New(tx, providertest.Logger(t), nil)

	var calls int
	first := func(q, m int) { calls++ }
	prev := prov.SetCounter(first)
	if prev != nil {
		t.Fatal("expected the initial counter to be nil")
	}

	second := func(q, m int) {}
	prevAgain := prov.SetCounter(second)
	if prevAgain == nil {
		t.Fatal("expected SetCounter to return the previously installed counter")
	}
}

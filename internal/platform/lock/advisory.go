// Package lock provides Postgres session-scoped advisory locks, the
// cross-transaction mutual exclusion half of job-level concurrency
// control (the other half is sagatypes.Job.Version optimistic
// concurrency). Uses
// github.com/jackc/pgx/v5 directly because GORM has no first-class
// support for pg_try_advisory_lock/pg_advisory_unlock.
package lock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker claims a session-scoped advisory lock per Job.ID before
// the BatchOrchestrator processes it, so two concurrent batch passes
// (same process or different ones) never run the same job at once.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// TryLock attempts to acquire the advisory lock for id without blocking.
// Returns (true, release, nil) on success; the caller must call release
// when done. Returns (false, nil, nil) if another session already holds
// it — the caller should skip this job for the current batch pass rather
// than treat the miss as an error.
func (l *AdvisoryLocker) TryLock(ctx context.Context, id uuid.UUID) (bool, func(), error) {
	if l == nil || l.pool == nil {
		// No Postgres configured (e.g. sqlite-backed dev/test run): treat
		// every lock as granted, since there is only ever one process.
		return true, func() {}, nil
	}
	key := lockKey(id)
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("lock: acquire pool conn: %w", err)
	}
	var got bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&got); err != nil {
		conn.Release()
		return false, nil, fmt.Errorf("lock: pg_try_advisory_lock: %w", err)
	}
	if !got {
		conn.Release()
		return false, nil, nil
	}
	release := func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key)
		conn.Release()
	}
	return true, release, nil
}

// lockKey folds a UUID into the int64 space pg_try_advisory_lock expects.
func lockKey(id uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(id[:])
	return int64(h.Sum64())
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/sagacore/internal/platform/logger"
)

// openRedis dials addr and pings it once so wiring failures surface at
// startup rather than on the first job. A blank addr is not an error: it
// just means no Redis-backed features (redisstream Engine, RedisNotifier)
// are wired.
func openRedis(addr string, baseLog *logger.Logger) (*goredis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("app: ping redis at %s: %w", addr, err)
	}
	baseLog.Info("Connected to Redis", "addr", addr)
	return rdb, nil
}

// openPGXPool opens a second, narrow connection pool alongside the GORM
// one purely for session-scoped advisory locks (lock.AdvisoryLocker),
// since GORM has no first-class support for pg_try_advisory_lock. A
// blank dsn (sqlite mode) means no locker — fine, since sqlite mode only
// ever runs one process.
func openPGXPool(dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("app: open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: ping pgx pool: %w", err)
	}
	return pool, nil
}

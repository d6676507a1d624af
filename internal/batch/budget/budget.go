// Package budget implements a resource governor: a read-only observer
// over four ambient counters (query count, mutation count, CPU time,
// heap) that the BatchOrchestrator consults between jobs to decide
// whether to keep processing the current transaction or yield the rest
// of the queue back to the retry Engine.
package budget

import (
	"runtime"
	"time"
)

// Ceilings are the 100% limits each counter is measured against; safety
// factor then scales them down to the threshold CanContinue actually
// checks.
type Ceilings struct {
	MaxQueries   int
	MaxMutations int
	MaxCPUTime   time.Duration
	MaxHeapBytes uint64
}

// DefaultCeilings are conservative values sized for a single batch
// transaction against a typical managed Postgres instance; callers
// wiring a production deployment should measure and override these.
func DefaultCeilings() Ceilings {
	return Ceilings{
		MaxQueries:   10000,
		MaxMutations: 5000,
		MaxCPUTime:   60 * time.Second,
		MaxHeapBytes: 512 * 1024 * 1024,
	}
}

// Budget samples ambient counters against Ceilings scaled by a
// safetyFactor in [50, 95] (values outside that range are clamped).
// CanContinue returns false as soon as any single counter first crosses
// safetyFactor% of its ceiling.
type Budget struct {
	ceilings     Ceilings
	safetyFactor int
	start        time.Time

	queries   int
	mutations int
}

// New clamps safetyFactor into [50, 95] and starts the CPU-time clock.
func New(ceilings Ceilings, safetyFactor int) *Budget {
	if safetyFactor < 50 {
		safetyFactor = 50
	}
	if safetyFactor > 95 {
		safetyFactor = 95
	}
	return &Budget{ceilings: ceilings, safetyFactor: safetyFactor, start: time.Now()}
}

// Count is the CounterFunc a Provider is constructed with, so every
// GetJobStates/Save*/InsertChunks call feeds this Budget's query and
// mutation counters without Go needing an ambient per-transaction
// governor of its own.
func (b *Budget) Count(queries, mutations int) {
	if b == nil {
		return
	}
	b.queries += queries
	b.mutations += mutations
}

func threshold(limit, safetyFactor int) int {
	if limit <= 0 {
		return 0
	}
	return (limit * safetyFactor) / 100
}

func thresholdDuration(limit time.Duration, safetyFactor int) time.Duration {
	if limit <= 0 {
		return 0
	}
	return limit * time.Duration(safetyFactor) / 100
}

// CanContinue samples all four counters and returns false on the first
// one to cross its safetyFactor% threshold.
func (b *Budget) CanContinue() bool {
	if b == nil {
		return true
	}
	if qt := threshold(b.ceilings.MaxQueries, b.safetyFactor); qt > 0 && b.queries >= qt {
		return false
	}
	if mt := threshold(b.ceilings.MaxMutations, b.safetyFactor); mt > 0 && b.mutations >= mt {
		return false
	}
	if ct := thresholdDuration(b.ceilings.MaxCPUTime, b.safetyFactor); ct > 0 && time.Since(b.start) >= ct {
		return false
	}
	if b.ceilings.MaxHeapBytes > 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		ht := uint64(threshold(int(b.ceilings.MaxHeapBytes), b.safetyFactor))
		if ht > 0 && ms.HeapAlloc >= ht {
			return false
		}
	}
	return true
}

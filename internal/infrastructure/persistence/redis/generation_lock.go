package redis

import (
	"context"
	"time"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATION LOCK
// Two concurrent batch generation runs over the same year/term would race on
// the same bulletins and double-count the summary. The lock serializes them
// per (school year, term) across processes.
// ══════════════════════════════════════════════════════════════════════════════

// GenerationLock is a Redis-backed mutex for batch generation runs.
type GenerationLock struct {
	cache *Cache
}

// NewGenerationLock creates a new GenerationLock.
func NewGenerationLock(cache *Cache) *GenerationLock {
	return &GenerationLock{cache: cache}
}

// lockPayload records who holds the lock, for operator debugging only.
type lockPayload struct {
	Owner      string    `json:"owner"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Acquire takes the lock for a year/term. Returns false without error when
// another run already holds it.
func (l *GenerationLock) Acquire(ctx context.Context, year shared.SchoolYear, term shared.Term, owner string) (bool, error) {
	key := GenerationLockKey(year.String(), term.Int())
	payload := lockPayload{Owner: owner, AcquiredAt: time.Now().UTC()}
	return l.cache.SetNX(ctx, key, payload, TTLGenerationLock)
}

// Release drops the lock. Safe to call even if the lock expired.
func (l *GenerationLock) Release(ctx context.Context, year shared.SchoolYear, term shared.Term) error {
	return l.cache.Delete(ctx, GenerationLockKey(year.String(), term.Int()))
}

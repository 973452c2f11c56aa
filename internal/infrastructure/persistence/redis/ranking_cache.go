package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING CACHE
// Caches the computed ranking table of one classroom/term so that read paths
// do not recompute it. Writers invalidate or overwrite the key after every
// ranking rebuild, the TTL only bounds staleness.
// ══════════════════════════════════════════════════════════════════════════════

// cachedEntry is the serialized form of one ranking entry. Averages travel
// as strings to keep their exact decimal representation.
type cachedEntry struct {
	StudentID  string `json:"student_id"`
	Average    string `json:"average"`
	HasAverage bool   `json:"has_average"`
	Rank       int    `json:"rank"`
}

// RankingCache implements ranking.Cache on top of Redis.
type RankingCache struct {
	cache *Cache
}

// NewRankingCache creates a new RankingCache.
func NewRankingCache(cache *Cache) *RankingCache {
	return &RankingCache{cache: cache}
}

// GetTable returns the cached ranking entries for a classroom/term, or nil
// when the table is not cached.
func (r *RankingCache) GetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]ranking.Entry, error) {
	key := RankingKey(classroomID.String(), year.String(), term.Int())

	var cached []cachedEntry
	if err := r.cache.Get(ctx, key, &cached); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]ranking.Entry, 0, len(cached))
	for _, ce := range cached {
		entry := ranking.Entry{
			StudentID:  shared.StudentID(ce.StudentID),
			HasAverage: ce.HasAverage,
			Rank:       shared.Rank(ce.Rank),
		}
		if ce.HasAverage {
			avg, err := decimal.NewFromString(ce.Average)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			entry.Average = avg
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SetTable stores the ranking entries for a classroom/term.
func (r *RankingCache) SetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, entries []ranking.Entry) error {
	key := RankingKey(classroomID.String(), year.String(), term.Int())

	cached := make([]cachedEntry, 0, len(entries))
	for _, e := range entries {
		ce := cachedEntry{
			StudentID:  e.StudentID.String(),
			HasAverage: e.HasAverage,
			Rank:       e.Rank.Int(),
		}
		if e.HasAverage {
			ce.Average = e.Average.String()
		}
		cached = append(cached, ce)
	}

	return r.cache.Set(ctx, key, cached, TTLRankingCache)
}

// Invalidate drops the cached table for a classroom/term.
func (r *RankingCache) Invalidate(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) error {
	return r.cache.Delete(ctx, RankingKey(classroomID.String(), year.String(), term.Int()))
}

// Ensure interfaces are implemented
var _ ranking.Cache = (*RankingCache)(nil)

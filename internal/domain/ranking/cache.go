package ranking

import (
	"context"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// Cache is the read-side cache of computed ranking tables, keyed by
// (classroom, year, term). A cached table is a pure acceleration of the
// persisted ranks: commands must invalidate it after every ranking pass.
type Cache interface {
	// GetTable returns the cached entries in rank order, or nil on a miss.
	GetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]Entry, error)

	// SetTable caches the entries of one computed table.
	SetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, entries []Entry) error

	// Invalidate drops the cached table for one classroom/term.
	Invalidate(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) error
}

// NopCache caches nothing. Used when Redis is disabled and in tests.
type NopCache struct{}

// GetTable always misses.
func (NopCache) GetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]Entry, error) {
	return nil, nil
}

// SetTable discards the entries.
func (NopCache) SetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, entries []Entry) error {
	return nil
}

// Invalidate does nothing.
func (NopCache) Invalidate(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) error {
	return nil
}

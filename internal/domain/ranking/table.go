// Package ranking computes classroom-wide ranks from overall averages.
//
// Ranks are only meaningful as a consistent batch: whenever one student's
// average changes, the whole classroom/term table is recomputed. Callers must
// never derive a single student's rank in isolation.
package ranking

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one student's position in a classroom ranking.
type Entry struct {
	StudentID shared.StudentID

	// Average is the overall average the entry was ranked on.
	Average decimal.Decimal

	// HasAverage is false for students with no scored subject this term.
	// Such students are excluded from ranking, from the classroom mean and
	// from the classroom size.
	HasAverage bool

	// Rank is assigned by Compute. Zero until then, and zero for entries
	// without an average.
	Rank shared.Rank
}

// Table accumulates the overall averages of one classroom/term and assigns
// ranks with ties: equal averages share a rank, and the next distinct lower
// average ranks 1 + (count of strictly greater averages).
type Table struct {
	entries  []*Entry
	byID     map[shared.StudentID]*Entry
	computed bool
}

// NewTable creates an empty ranking table.
func NewTable() *Table {
	return &Table{
		entries: make([]*Entry, 0),
		byID:    make(map[shared.StudentID]*Entry),
	}
}

// Add registers one student's overall average. hasAverage must be false for
// students without score data. Adding the same student twice is an error.
func (t *Table) Add(studentID shared.StudentID, average decimal.Decimal, hasAverage bool) error {
	if !studentID.IsValid() {
		return shared.NewDomainError("ranking", "Add", shared.ErrInvalidID, "student ID cannot be empty")
	}
	if _, exists := t.byID[studentID]; exists {
		return shared.ErrDuplicateStudent
	}
	entry := &Entry{StudentID: studentID, Average: average, HasAverage: hasAverage}
	t.entries = append(t.entries, entry)
	t.byID[studentID] = entry
	t.computed = false
	return nil
}

// Compute sorts the ranked entries by average descending and assigns ranks.
// Ties share a rank; ties are broken by student ID only for a deterministic
// iteration order, never for the rank value itself.
func (t *Table) Compute() {
	ranked := t.rankable()

	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Average.Equal(ranked[j].Average) {
			return ranked[i].Average.GreaterThan(ranked[j].Average)
		}
		return ranked[i].StudentID < ranked[j].StudentID
	})

	for i, entry := range ranked {
		if i > 0 && entry.Average.Equal(ranked[i-1].Average) {
			entry.Rank = ranked[i-1].Rank
		} else {
			entry.Rank = shared.Rank(i + 1)
		}
	}

	t.computed = true
}

// Result returns the computed rank of one student. ok is false for unknown
// students and for students excluded from ranking.
func (t *Table) Result(studentID shared.StudentID) (shared.Rank, bool) {
	entry, exists := t.byID[studentID]
	if !exists || !entry.HasAverage || !t.computed {
		return 0, false
	}
	return entry.Rank, true
}

// Ranked returns the ranked entries in rank order. Returns nil before
// Compute has run.
func (t *Table) Ranked() []*Entry {
	if !t.computed {
		return nil
	}
	ranked := t.rankable()
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank < ranked[j].Rank
		}
		return ranked[i].StudentID < ranked[j].StudentID
	})
	return ranked
}

// Excluded returns the students left out of the ranking (no average).
func (t *Table) Excluded() []shared.StudentID {
	var out []shared.StudentID
	for _, entry := range t.entries {
		if !entry.HasAverage {
			out = append(out, entry.StudentID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Size returns the classroom size: the number of students actually
// evaluated, i.e. entries carrying an average.
func (t *Table) Size() int {
	return len(t.rankable())
}

// ClassAverage returns the unweighted arithmetic mean of the included
// averages, unrounded. ok is false for an empty table.
func (t *Table) ClassAverage() (decimal.Decimal, bool) {
	ranked := t.rankable()
	if len(ranked) == 0 {
		return decimal.Zero, false
	}
	total := decimal.Zero
	for _, entry := range ranked {
		total = total.Add(entry.Average)
	}
	return total.Div(decimal.NewFromInt(int64(len(ranked)))), true
}

// rankable returns the entries that participate in ranking.
func (t *Table) rankable() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		if entry.HasAverage {
			out = append(out, entry)
		}
	}
	return out
}

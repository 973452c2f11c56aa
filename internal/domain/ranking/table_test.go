package ranking

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustAdd(t *testing.T, table *Table, studentID string, average string, hasAverage bool) {
	t.Helper()
	var avg decimal.Decimal
	if hasAverage {
		avg = dec(average)
	}
	require.NoError(t, table.Add(shared.StudentID(studentID), avg, hasAverage))
}

func TestTableAssignsDenseRanksWithSkips(t *testing.T) {
	table := NewTable()
	mustAdd(t, table, "s1", "15", true)
	mustAdd(t, table, "s2", "18", true)
	mustAdd(t, table, "s3", "12", true)

	table.Compute()

	tests := []struct {
		studentID string
		want      shared.Rank
	}{
		{"s2", 1},
		{"s1", 2},
		{"s3", 3},
	}
	for _, tt := range tests {
		rank, ok := table.Result(shared.StudentID(tt.studentID))
		require.True(t, ok, "student %s", tt.studentID)
		assert.Equal(t, tt.want, rank, "student %s", tt.studentID)
	}
}

func TestTableTiesShareRank(t *testing.T) {
	table := NewTable()
	mustAdd(t, table, "s1", "16", true)
	mustAdd(t, table, "s2", "16", true)
	mustAdd(t, table, "s3", "14", true)
	mustAdd(t, table, "s4", "14", true)
	mustAdd(t, table, "s5", "10", true)

	table.Compute()

	r1, _ := table.Result("s1")
	r2, _ := table.Result("s2")
	r3, _ := table.Result("s3")
	r4, _ := table.Result("s4")
	r5, _ := table.Result("s5")

	assert.Equal(t, shared.Rank(1), r1)
	assert.Equal(t, shared.Rank(1), r2)

	// The rank after a tie counts everyone strictly above, so two students
	// at rank 1 push the next distinct average to rank 3, not 2.
	assert.Equal(t, shared.Rank(3), r3)
	assert.Equal(t, shared.Rank(3), r4)
	assert.Equal(t, shared.Rank(5), r5)
}

func TestTableExcludesStudentsWithoutAverage(t *testing.T) {
	table := NewTable()
	mustAdd(t, table, "s1", "13", true)
	mustAdd(t, table, "s2", "", false)
	mustAdd(t, table, "s3", "11", true)

	table.Compute()

	assert.Equal(t, 2, table.Size())

	_, ok := table.Result("s2")
	assert.False(t, ok, "unevaluated student must not receive a rank")

	excluded := table.Excluded()
	require.Len(t, excluded, 1)
	assert.Equal(t, shared.StudentID("s2"), excluded[0])

	// The excluded student never weighs on the classroom mean as a zero.
	avg, hasAvg := table.ClassAverage()
	require.True(t, hasAvg)
	assert.True(t, avg.Equal(dec("12")), "got %s", avg)
}

func TestTableClassAverage(t *testing.T) {
	t.Run("empty table has no average", func(t *testing.T) {
		table := NewTable()
		_, ok := table.ClassAverage()
		assert.False(t, ok)
	})

	t.Run("only unevaluated students has no average", func(t *testing.T) {
		table := NewTable()
		mustAdd(t, table, "s1", "", false)
		_, ok := table.ClassAverage()
		assert.False(t, ok)
	})

	t.Run("unweighted mean of included averages", func(t *testing.T) {
		table := NewTable()
		mustAdd(t, table, "s1", "10", true)
		mustAdd(t, table, "s2", "15", true)
		mustAdd(t, table, "s3", "17", true)

		avg, ok := table.ClassAverage()
		require.True(t, ok)
		assert.True(t, avg.Equal(dec("14")), "got %s", avg)
	})
}

func TestTableRankedOrder(t *testing.T) {
	table := NewTable()
	mustAdd(t, table, "s3", "12", true)
	mustAdd(t, table, "s1", "15", true)
	mustAdd(t, table, "s2", "15", true)
	mustAdd(t, table, "s4", "", false)

	assert.Nil(t, table.Ranked(), "Ranked before Compute must return nil")

	table.Compute()

	ranked := table.Ranked()
	require.Len(t, ranked, 3)

	// Rank order, ties in student ID order for determinism.
	assert.Equal(t, shared.StudentID("s1"), ranked[0].StudentID)
	assert.Equal(t, shared.StudentID("s2"), ranked[1].StudentID)
	assert.Equal(t, shared.StudentID("s3"), ranked[2].StudentID)
	assert.Equal(t, shared.Rank(1), ranked[0].Rank)
	assert.Equal(t, shared.Rank(1), ranked[1].Rank)
	assert.Equal(t, shared.Rank(3), ranked[2].Rank)
}

func TestTableRejectsInvalidAdds(t *testing.T) {
	table := NewTable()

	err := table.Add("", decimal.Zero, false)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	mustAdd(t, table, "s1", "12", true)
	err = table.Add("s1", dec("14"), true)
	assert.ErrorIs(t, err, shared.ErrDuplicateStudent)
}

func TestTableResultBeforeCompute(t *testing.T) {
	table := NewTable()
	mustAdd(t, table, "s1", "12", true)

	_, ok := table.Result("s1")
	assert.False(t, ok, "rank is only defined after Compute")
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	cache := NopCache{}

	entries, err := cache.GetTable(ctx, "c1", "2025-2026", 1)
	assert.NoError(t, err)
	assert.Nil(t, entries)

	assert.NoError(t, cache.SetTable(ctx, "c1", "2025-2026", 1, nil))
	assert.NoError(t, cache.Invalidate(ctx, "c1", "2025-2026", 1))
}

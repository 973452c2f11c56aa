package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchoolYear(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2024-2025", false},
		{"2025-2026", false},
		{" 2025-2026 ", false},
		{"2025-2027", true},
		{"2026-2025", true},
		{"2025", true},
		{"25-26", true},
		{"abcd-efgh", true},
		{"1899-1900", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			year, err := NewSchoolYear(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.True(t, year.IsValid())
		})
	}
}

func TestSchoolYearStartYear(t *testing.T) {
	year, err := NewSchoolYear("2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 2025, year.StartYear())
}

func TestNewTerm(t *testing.T) {
	for _, valid := range []int{1, 2, 3} {
		term, err := NewTerm(valid)
		require.NoError(t, err)
		assert.True(t, term.IsValid())
		assert.Equal(t, valid, term.Int())
	}

	for _, invalid := range []int{0, -1, 4} {
		_, err := NewTerm(invalid)
		assert.ErrorIs(t, err, ErrValueOutOfRange, "term %d", invalid)
	}
}

func TestTermString(t *testing.T) {
	assert.Equal(t, "T2", Term2.String())
}

func TestNewStudentID(t *testing.T) {
	id, err := NewStudentID("  abc  ")
	require.NoError(t, err)
	assert.Equal(t, StudentID("abc"), id)

	_, err = NewStudentID("   ")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRank(t *testing.T) {
	assert.True(t, Rank(1).IsValid())
	assert.False(t, Rank(0).IsValid())
	assert.True(t, Rank(0).IsUnranked())
	assert.Equal(t, "#3", Rank(3).String())
	assert.Equal(t, "unranked", Rank(0).String())
}

package bulletin

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestBulletin(t *testing.T) *Bulletin {
	t.Helper()
	b, err := New("s1", "class-6a", "2025-2026", shared.Term1, "u-admin")
	require.NoError(t, err)
	return b
}

func TestNew(t *testing.T) {
	b := newTestBulletin(t)

	assert.True(t, b.ID.IsValid())
	assert.Equal(t, StatusDraft, b.Status)
	assert.Nil(t, b.OverallAverage)
	assert.Nil(t, b.Rank)
	assert.Equal(t, grading.MentionUndetermined, b.Mention)
	assert.Equal(t, grading.DecisionUndetermined, b.Decision)

	t.Run("rejects invalid inputs", func(t *testing.T) {
		_, err := New("", "class-6a", "2025-2026", shared.Term1, "u")
		assert.ErrorIs(t, err, shared.ErrInvalidID)

		_, err = New("s1", "class-6a", "2025-26", shared.Term1, "u")
		assert.ErrorIs(t, err, shared.ErrInvalidFormat)

		_, err = New("s1", "class-6a", "2025-2026", shared.Term(4), "u")
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	})
}

func TestApplyComputation(t *testing.T) {
	comp := Computation{
		OverallAverage: dec("14.2371"),
		HasAverage:     true,
		FailureCount:   1,
		Mention:        grading.MentionGood,
		Decision:       grading.DecisionPromote,
		Lines: []SubjectLine{
			{SubjectID: "math", Average: decPtr("15.5"), Coefficient: dec("4")},
			{SubjectID: "sport", Average: nil, Coefficient: dec("1")},
		},
		GeneratedComment: "Good work.",
	}

	t.Run("overwrites derived state and rounds the average", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.ApplyComputation(comp))

		require.NotNil(t, b.OverallAverage)
		assert.Equal(t, "14.24", b.OverallAverage.String())
		assert.Equal(t, grading.MentionGood, b.Mention)
		assert.Equal(t, grading.DecisionPromote, b.Decision)
		require.Len(t, b.Lines, 2)
		assert.Nil(t, b.Lines[1].Average, "unscored subject stays on the bulletin without an average")
	})

	t.Run("no average clears the previous one", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.ApplyComputation(comp))
		require.NotNil(t, b.OverallAverage)

		require.NoError(t, b.ApplyComputation(Computation{
			HasAverage: false,
			Mention:    grading.MentionUndetermined,
			Decision:   grading.DecisionUndetermined,
		}))
		assert.Nil(t, b.OverallAverage)
		assert.Empty(t, b.Lines)
	})

	t.Run("generated comment only fills an empty general comment", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.ApplyComputation(comp))
		assert.Equal(t, "Good work.", b.GeneralComment)

		b.GeneralComment = "Handwritten by the teacher."
		require.NoError(t, b.ApplyComputation(comp))
		assert.Equal(t, "Handwritten by the teacher.", b.GeneralComment)
	})

	t.Run("refused once published", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Publish(shared.NewAdminActor("u-admin")))

		err := b.ApplyComputation(comp)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestApplyRanking(t *testing.T) {
	t.Run("ranked student", func(t *testing.T) {
		b := newTestBulletin(t)
		rank := shared.Rank(3)
		avg := dec("12.3456")

		require.NoError(t, b.ApplyRanking(&rank, &avg, 25))

		require.NotNil(t, b.Rank)
		assert.Equal(t, shared.Rank(3), *b.Rank)
		require.NotNil(t, b.ClassroomAverage)
		assert.Equal(t, "12.35", b.ClassroomAverage.String())
		require.NotNil(t, b.ClassroomSize)
		assert.Equal(t, 25, *b.ClassroomSize)
	})

	t.Run("excluded student still gets the cohort figures", func(t *testing.T) {
		b := newTestBulletin(t)
		avg := dec("11")

		require.NoError(t, b.ApplyRanking(nil, &avg, 24))

		assert.Nil(t, b.Rank)
		require.NotNil(t, b.ClassroomSize)
		assert.Equal(t, 24, *b.ClassroomSize)
	})

	t.Run("refused once published", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Publish(shared.NewAdminActor("u-admin")))

		rank := shared.Rank(1)
		err := b.ApplyRanking(&rank, nil, 20)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestLifecycleTransitions(t *testing.T) {
	admin := shared.NewAdminActor("u-admin")
	homeroom := shared.NewHomeroomTeacherActor("u-homeroom", "class-6a")
	otherHomeroom := shared.NewHomeroomTeacherActor("u-other", "class-6b")

	t.Run("draft to pending to validated to published", func(t *testing.T) {
		b := newTestBulletin(t)

		require.NoError(t, b.Submit(homeroom))
		assert.Equal(t, StatusPending, b.Status)

		require.NoError(t, b.Validate(homeroom))
		assert.Equal(t, StatusValidated, b.Status)
		require.NotNil(t, b.ValidatedBy)
		assert.Equal(t, shared.UserID("u-homeroom"), *b.ValidatedBy)
		assert.NotNil(t, b.ValidatedAt)

		require.NoError(t, b.Publish(homeroom))
		assert.Equal(t, StatusPublished, b.Status)
		assert.NotNil(t, b.PublishedAt)
	})

	t.Run("validate straight from draft", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Validate(admin))
		assert.Equal(t, StatusValidated, b.Status)
	})

	t.Run("submit only from draft", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Validate(admin))

		err := b.Submit(admin)
		assert.ErrorIs(t, err, shared.ErrStateTransition)
	})

	t.Run("validate refused after publish", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Publish(admin))

		err := b.Validate(admin)
		assert.ErrorIs(t, err, shared.ErrStateTransition)
	})

	t.Run("publish is not idempotent", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Publish(admin))

		err := b.Publish(admin)
		assert.ErrorIs(t, err, shared.ErrStateTransition)
	})

	t.Run("wrong homeroom teacher is rejected", func(t *testing.T) {
		b := newTestBulletin(t)

		assert.ErrorIs(t, b.Submit(otherHomeroom), shared.ErrForbidden)
		assert.ErrorIs(t, b.Validate(otherHomeroom), shared.ErrForbidden)
		assert.ErrorIs(t, b.Publish(otherHomeroom), shared.ErrForbidden)
		assert.Equal(t, StatusDraft, b.Status, "failed transitions must not mutate")
	})

	t.Run("plain subject teacher cannot mutate", func(t *testing.T) {
		b := newTestBulletin(t)
		teacher := shared.NewTeacherActor("u-teacher")
		assert.ErrorIs(t, b.Validate(teacher), shared.ErrForbidden)
	})
}

func TestStatusAllowsRecompute(t *testing.T) {
	assert.True(t, StatusDraft.AllowsRecompute())
	assert.True(t, StatusPending.AllowsRecompute())
	assert.True(t, StatusValidated.AllowsRecompute())
	assert.False(t, StatusPublished.AllowsRecompute())
	assert.False(t, StatusArchived.AllowsRecompute())
}

func TestVisibleTo(t *testing.T) {
	admin := shared.NewAdminActor("u-admin")
	homeroom := shared.NewHomeroomTeacherActor("u-homeroom", "class-6a")
	otherHomeroom := shared.NewHomeroomTeacherActor("u-other", "class-6b")
	teacher := shared.NewTeacherActor("u-teacher")
	self := shared.NewStudentActor("u-s1", "s1")
	otherStudent := shared.NewStudentActor("u-s2", "s2")
	guardian := shared.NewGuardianActor("u-guardian", "s1")
	otherGuardian := shared.NewGuardianActor("u-guardian2", "s9")

	t.Run("draft", func(t *testing.T) {
		b := newTestBulletin(t)

		assert.True(t, b.VisibleTo(admin))
		assert.True(t, b.VisibleTo(homeroom))
		assert.False(t, b.VisibleTo(otherHomeroom))
		assert.False(t, b.VisibleTo(teacher))
		assert.False(t, b.VisibleTo(self), "students never see unpublished bulletins")
		assert.False(t, b.VisibleTo(guardian))
	})

	t.Run("published", func(t *testing.T) {
		b := newTestBulletin(t)
		require.NoError(t, b.Publish(admin))

		assert.True(t, b.VisibleTo(self))
		assert.True(t, b.VisibleTo(guardian))
		assert.False(t, b.VisibleTo(otherStudent))
		assert.False(t, b.VisibleTo(otherGuardian))
		assert.False(t, b.VisibleTo(teacher))
	})
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

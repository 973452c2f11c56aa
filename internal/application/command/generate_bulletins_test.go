package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

func newGenerateHandler(f *fixture) *GenerateBulletinsHandler {
	return NewGenerateBulletinsHandler(f.repo, f.scores, ranking.NopCache{}, f.sink, nil, GenerateBulletinsHandlerConfig{})
}

func generateCmd(actor shared.Actor) GenerateBulletinsCommand {
	return GenerateBulletinsCommand{
		SchoolYear: fixtureYear,
		Term:       fixtureTerm,
		Actor:      actor,
	}
}

var adminActor = shared.NewAdminActor("u-admin")

func TestGenerateBulletins(t *testing.T) {
	ctx := context.Background()

	t.Run("creates one bulletin per enrolled student", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Classrooms)
		assert.Equal(t, 3, summary.Created)
		assert.Equal(t, 0, summary.Updated)
		assert.Equal(t, 0, summary.Skipped)
		assert.False(t, summary.HasErrors())
		assert.False(t, summary.CompletedAt.Before(summary.StartedAt))

		b1, err := f.repo.GetByKey(ctx, "s1", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		require.NotNil(t, b1.OverallAverage)
		assert.Equal(t, "14", b1.OverallAverage.String())
		require.NotNil(t, b1.Rank)
		assert.Equal(t, 1, b1.Rank.Int())
		require.Len(t, b1.Lines, 2)
	})

	t.Run("ranking pass runs once per classroom", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		_, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		assert.Equal(t, 1, f.repo.rankingCalls)

		b2, err := f.repo.GetByKey(ctx, "s2", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		require.NotNil(t, b2.Rank)
		assert.Equal(t, 2, b2.Rank.Int())

		// The unevaluated student gets the cohort figures but no rank, and
		// never drags the classroom mean down as a zero.
		b3, err := f.repo.GetByKey(ctx, "s3", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		assert.Nil(t, b3.OverallAverage)
		assert.Nil(t, b3.Rank)
		require.NotNil(t, b3.ClassroomSize)
		assert.Equal(t, 2, *b3.ClassroomSize)
		require.NotNil(t, b3.ClassroomAverage)
		// (14 + 9.33) / 2 = 11.665, banker's rounding to 11.66.
		assert.Equal(t, "11.66", b3.ClassroomAverage.String())
	})

	t.Run("second run updates instead of creating", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		_, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		assert.Equal(t, 0, summary.Created)
		assert.Equal(t, 3, summary.Updated)
	})

	t.Run("emits ranking and run-summary events", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		_, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		rebuilt := f.sink.ofType(shared.EventRankingRebuilt)
		require.Len(t, rebuilt, 1)
		assert.Equal(t, fixtureClassroom.String(), rebuilt[0].AggregateID())

		finished := f.sink.ofType(shared.EventGenerationFinished)
		require.Len(t, finished, 1)
		assert.Equal(t, "u-admin", finished[0].ActorID())
	})

	t.Run("skips students with incomplete data unless forced", func(t *testing.T) {
		f := newFixture()
		f.scores.missing["s2"] = []bulletin.MissingEvaluation{
			{SubjectID: "math", SubjectName: "Mathematics", EvaluationID: "ev-9"},
		}
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Created)
		assert.Equal(t, 1, summary.Skipped)

		cmd := generateCmd(adminActor)
		cmd.Force = true
		summary, err = h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Created, "the skipped student is created on the forced run")
		assert.Equal(t, 0, summary.Skipped)
	})

	t.Run("subject without any evaluation counts as incomplete", func(t *testing.T) {
		f := newFixture()
		f.scores.missing["s2"] = []bulletin.MissingEvaluation{
			{SubjectID: "hist", SubjectName: "History", EvaluationID: ""},
		}
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Created)
		assert.Equal(t, 1, summary.Skipped)

		cmd := generateCmd(adminActor)
		cmd.Force = true
		summary, err = h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Created)
		assert.Equal(t, 0, summary.Skipped)
	})

	t.Run("auto-submit moves fresh drafts to pending", func(t *testing.T) {
		f := newFixture()
		h := NewGenerateBulletinsHandler(f.repo, f.scores, ranking.NopCache{}, f.sink, nil, GenerateBulletinsHandlerConfig{
			AutoSubmit: true,
		})

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Created)

		for _, id := range []shared.StudentID{"s1", "s2", "s3"} {
			b, err := f.repo.GetByKey(ctx, id, fixtureYear, fixtureTerm)
			require.NoError(t, err)
			assert.Equal(t, bulletin.StatusPending, b.Status)
		}

		// Bulletins already past draft are left where they are.
		summary, err = h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Updated)
		b, err := f.repo.GetByKey(ctx, "s1", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		assert.Equal(t, bulletin.StatusPending, b.Status)
	})

	t.Run("a failing ranking cache never fails the run", func(t *testing.T) {
		f := newFixture()
		cache := newFakeRankingCache()
		cache.tables[cacheKey(fixtureClassroom, fixtureYear, fixtureTerm)] = []ranking.Entry{{StudentID: "stale"}}
		cache.setErr = shared.ErrTransient
		h := NewGenerateBulletinsHandler(f.repo, f.scores, cache, f.sink, nil, GenerateBulletinsHandlerConfig{})

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Created)
		assert.False(t, summary.HasErrors())

		assert.Equal(t, 1, cache.invalidateCalls)
		entries, err := cache.GetTable(ctx, fixtureClassroom, fixtureYear, fixtureTerm)
		require.NoError(t, err)
		assert.Nil(t, entries, "the stale table is gone even though the overwrite failed")
	})

	t.Run("published bulletins are skipped but still ranked against", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		_, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		b1, err := f.repo.GetByKey(ctx, "s1", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		require.NoError(t, b1.Publish(adminActor))
		frozenRank := *b1.Rank

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Skipped)
		assert.Equal(t, 2, summary.Updated)

		// The frozen average keeps its place in the table, so s2 stays second.
		b2, err := f.repo.GetByKey(ctx, "s2", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		require.NotNil(t, b2.Rank)
		assert.Equal(t, 2, b2.Rank.Int())
		assert.Equal(t, frozenRank, *b1.Rank, "published rank fields are never rewritten")
	})

	t.Run("classroom without homeroom teacher is reported and skipped", func(t *testing.T) {
		f := newFixture()
		f.scores.classrooms[0].HomeroomTeacher = nil
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		assert.Equal(t, 0, summary.Classrooms)
		assert.Equal(t, 0, summary.Created)
		require.Len(t, summary.Errors, 1)
		assert.Contains(t, summary.Errors[0].Reason, "no homeroom teacher")
		assert.Empty(t, summary.Errors[0].StudentID)
	})

	t.Run("homeroom teacher may only generate their own classroom", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(shared.NewHomeroomTeacherActor("u-homeroom", fixtureClassroom)))
		require.NoError(t, err)
		assert.Equal(t, 3, summary.Created)

		f = newFixture()
		h = newGenerateHandler(f)
		summary, err = h.Handle(ctx, generateCmd(shared.NewHomeroomTeacherActor("u-other", "class-6b")))
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Created)
		require.Len(t, summary.Errors, 1)
		assert.Contains(t, summary.Errors[0].Reason, "not the homeroom teacher")
	})

	t.Run("unknown classroom name fails the run", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		cmd := generateCmd(adminActor)
		cmd.ClassroomName = "9Z"
		_, err := h.Handle(ctx, cmd)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("one failing student never aborts the run", func(t *testing.T) {
		f := newFixture()
		f.scores.scoresErr["s2"] = shared.NewDomainError("storage", "Scores", shared.ErrInvalidEntity, "corrupt score row")
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err, "per-student failures are reported, not returned")

		assert.Equal(t, 2, summary.Created)
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, "s2", summary.Errors[0].StudentID)

		// The others were still ranked.
		b1, err := f.repo.GetByKey(ctx, "s1", fixtureYear, fixtureTerm)
		require.NoError(t, err)
		assert.NotNil(t, b1.Rank)
	})

	t.Run("transient storage errors are retried", func(t *testing.T) {
		f := newFixture()
		f.repo.getOrCreateErrs["s1"] = []error{shared.ErrTransient}
		h := newGenerateHandler(f)

		summary, err := h.Handle(ctx, generateCmd(adminActor))
		require.NoError(t, err)

		assert.Equal(t, 3, summary.Created)
		assert.False(t, summary.HasErrors())
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		f := newFixture()
		h := newGenerateHandler(f)

		_, err := h.Handle(ctx, GenerateBulletinsCommand{SchoolYear: "2025-26", Term: 1, Actor: adminActor})
		assert.True(t, shared.IsValidation(err))

		_, err = h.Handle(ctx, GenerateBulletinsCommand{SchoolYear: fixtureYear, Term: 5, Actor: adminActor})
		assert.True(t, shared.IsValidation(err))
	})
}

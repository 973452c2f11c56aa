package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

func rankingQuery(actor shared.Actor) GetClassroomRankingQuery {
	return GetClassroomRankingQuery{
		ClassroomID: fixtureClassroom.String(),
		SchoolYear:  fixtureYear,
		Term:        fixtureTerm,
		Actor:       actor,
	}
}

func TestGetClassroomRanking(t *testing.T) {
	ctx := context.Background()
	admin := shared.NewAdminActor("u-admin")

	repo := func() *fakeRepo {
		return &fakeRepo{bulletins: []*bulletin.Bulletin{
			seedBulletin("s1", "15", 0, bulletin.StatusDraft),
			seedBulletin("s2", "15", 0, bulletin.StatusDraft),
			seedBulletin("s3", "11", 0, bulletin.StatusDraft),
			seedBulletin("s4", "", 0, bulletin.StatusDraft),
		}}
	}

	t.Run("rebuilds from bulletins on a cold cache", func(t *testing.T) {
		cache := &fakeRankingCache{}
		h := NewGetClassroomRankingHandler(repo(), cache)

		result, err := h.Handle(ctx, rankingQuery(admin))
		require.NoError(t, err)

		assert.False(t, result.FromCache)
		require.Len(t, result.Entries, 3)
		assert.Equal(t, 1, result.Entries[0].Rank)
		assert.Equal(t, 1, result.Entries[1].Rank, "equal averages share the rank")
		assert.Equal(t, 3, result.Entries[2].Rank)
		assert.Equal(t, "s3", result.Entries[2].StudentID)
		assert.Equal(t, 3, result.ClassroomSize)
		// (15 + 15 + 11) / 3
		assert.Equal(t, "13.67", result.ClassAverage)
		assert.Equal(t, []string{"s4"}, result.Excluded)

		assert.Equal(t, 1, cache.setCalls, "a rebuilt table warms the cache")
	})

	t.Run("serves a warm cache without touching the repository", func(t *testing.T) {
		cache := &fakeRankingCache{entries: []ranking.Entry{
			{StudentID: "s1", Average: mustDec("15"), HasAverage: true, Rank: 1},
			{StudentID: "s3", Average: mustDec("11"), HasAverage: true, Rank: 2},
		}}
		h := NewGetClassroomRankingHandler(&fakeRepo{}, cache)

		result, err := h.Handle(ctx, rankingQuery(admin))
		require.NoError(t, err)

		assert.True(t, result.FromCache)
		require.Len(t, result.Entries, 2)
		assert.Equal(t, "15.00", result.Entries[0].Average)
		assert.Equal(t, "13.00", result.ClassAverage)
	})

	t.Run("cache errors degrade to a rebuild", func(t *testing.T) {
		cache := &fakeRankingCache{getErr: errors.New("connection refused")}
		h := NewGetClassroomRankingHandler(repo(), cache)

		result, err := h.Handle(ctx, rankingQuery(admin))
		require.NoError(t, err)
		assert.False(t, result.FromCache)
		assert.Len(t, result.Entries, 3)
	})

	t.Run("restricted to admins and the homeroom teacher", func(t *testing.T) {
		h := NewGetClassroomRankingHandler(repo(), &fakeRankingCache{})

		_, err := h.Handle(ctx, rankingQuery(shared.NewHomeroomTeacherActor("u-homeroom", fixtureClassroom)))
		assert.NoError(t, err)

		_, err = h.Handle(ctx, rankingQuery(shared.NewStudentActor("u-s1", "s1")))
		assert.ErrorIs(t, err, shared.ErrForbidden)

		_, err = h.Handle(ctx, rankingQuery(shared.NewHomeroomTeacherActor("u-other", "class-6b")))
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("rejects malformed parameters", func(t *testing.T) {
		h := NewGetClassroomRankingHandler(repo(), &fakeRankingCache{})

		q := rankingQuery(admin)
		q.ClassroomID = ""
		_, err := h.Handle(ctx, q)
		assert.True(t, shared.IsValidation(err))

		q = rankingQuery(admin)
		q.Term = 0
		_, err = h.Handle(ctx, q)
		assert.True(t, shared.IsValidation(err))
	})
}

package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

func TestListClassroomBulletins(t *testing.T) {
	ctx := context.Background()
	admin := shared.NewAdminActor("u-admin")

	repo := &fakeRepo{bulletins: []*bulletin.Bulletin{
		seedBulletin("s1", "15", 1, bulletin.StatusPublished),
		seedBulletin("s2", "12", 2, bulletin.StatusValidated),
		seedBulletin("s3", "", 0, bulletin.StatusDraft),
	}}
	h := NewListClassroomBulletinsHandler(repo)

	listQuery := func(actor shared.Actor) ListClassroomBulletinsQuery {
		return ListClassroomBulletinsQuery{
			ClassroomID: fixtureClassroom.String(),
			SchoolYear:  fixtureYear,
			Term:        fixtureTerm,
			Actor:       actor,
		}
	}

	t.Run("lists every bulletin with status tallies", func(t *testing.T) {
		result, err := h.Handle(ctx, listQuery(admin))
		require.NoError(t, err)

		assert.Len(t, result.Bulletins, 3)
		assert.Equal(t, 1, result.CountByStatus["PUBLISHED"])
		assert.Equal(t, 1, result.CountByStatus["VALIDATED"])
		assert.Equal(t, 1, result.CountByStatus["DRAFT"])
	})

	t.Run("filters by status", func(t *testing.T) {
		q := listQuery(admin)
		q.Status = "DRAFT"

		result, err := h.Handle(ctx, q)
		require.NoError(t, err)

		require.Len(t, result.Bulletins, 1)
		assert.Equal(t, "s3", result.Bulletins[0].StudentID)
		assert.Nil(t, result.Bulletins[0].OverallAverage)
	})

	t.Run("rejects an unknown status filter", func(t *testing.T) {
		q := listQuery(admin)
		q.Status = "FROZEN"

		_, err := h.Handle(ctx, q)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("restricted to admins and the homeroom teacher", func(t *testing.T) {
		_, err := h.Handle(ctx, listQuery(shared.NewHomeroomTeacherActor("u-homeroom", fixtureClassroom)))
		assert.NoError(t, err)

		_, err = h.Handle(ctx, listQuery(shared.NewGuardianActor("u-guardian", "s1")))
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}

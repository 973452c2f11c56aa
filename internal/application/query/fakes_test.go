package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ-SIDE FAKES
// Queries only ever load; the write-side methods of the fake repository fail
// loudly if a query handler ever reaches for them.
// ══════════════════════════════════════════════════════════════════════════════

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := mustDec(s)
	return &d
}

type fakeRepo struct {
	bulletins []*bulletin.Bulletin
}

func (r *fakeRepo) Get(ctx context.Context, id shared.BulletinID) (*bulletin.Bulletin, error) {
	for _, b := range r.bulletins {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, shared.ErrBulletinNotFound
}

func (r *fakeRepo) GetByKey(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) (*bulletin.Bulletin, error) {
	for _, b := range r.bulletins {
		if b.StudentID == studentID && b.SchoolYear == year && b.Term == term {
			return b, nil
		}
	}
	return nil, shared.ErrBulletinNotFound
}

func (r *fakeRepo) GetOrCreate(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, createdBy shared.UserID) (*bulletin.Bulletin, bool, error) {
	return nil, false, fmt.Errorf("query handlers must not write")
}

func (r *fakeRepo) Save(ctx context.Context, b *bulletin.Bulletin) error {
	return fmt.Errorf("query handlers must not write")
}

func (r *fakeRepo) ListByClassroomTerm(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]*bulletin.Bulletin, error) {
	var out []*bulletin.Bulletin
	for _, b := range r.bulletins {
		if b.ClassroomID == classroomID && b.SchoolYear == year && b.Term == term {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) ApplyRanking(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, updates []bulletin.RankingUpdate) error {
	return fmt.Errorf("query handlers must not write")
}

var _ bulletin.Repository = (*fakeRepo)(nil)

// fakeRankingCache serves a pre-seeded table and records writes.
type fakeRankingCache struct {
	entries []ranking.Entry
	getErr  error

	setCalls int
}

func (c *fakeRankingCache) GetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]ranking.Entry, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries, nil
}

func (c *fakeRankingCache) SetTable(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, entries []ranking.Entry) error {
	c.setCalls++
	c.entries = entries
	return nil
}

func (c *fakeRankingCache) Invalidate(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) error {
	c.entries = nil
	return nil
}

var _ ranking.Cache = (*fakeRankingCache)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

const (
	fixtureYear      = "2025-2026"
	fixtureTerm      = 1
	fixtureClassroom = shared.ClassroomID("class-6a")
)

// seedBulletin builds a computed bulletin directly in the target state.
func seedBulletin(studentID shared.StudentID, average string, rank int, status bulletin.Status) *bulletin.Bulletin {
	b, err := bulletin.New(studentID, fixtureClassroom, fixtureYear, fixtureTerm, "u-admin")
	if err != nil {
		panic(err)
	}
	if average != "" {
		b.OverallAverage = decPtr(average)
	}
	if rank > 0 {
		r := shared.Rank(rank)
		b.Rank = &r
	}
	b.Status = status
	return b
}

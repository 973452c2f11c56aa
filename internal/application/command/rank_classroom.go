package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
	"github.com/ecole-hub/ecole-bulletins/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASSROOM RANKING PASS
// Ranks are only consistent as a whole classroom batch, so every command that
// changes an overall average finishes with this pass.
// ══════════════════════════════════════════════════════════════════════════════

// rebuildClassroomRanking recomputes the ranking table of one classroom/term
// from the persisted bulletins, batch-writes the rank fields and refreshes
// the ranking cache.
//
// Published and archived bulletins contribute their frozen average to the
// table (their classmates are ranked against the full cohort) but their own
// rank fields are never rewritten.
func rebuildClassroomRanking(
	ctx context.Context,
	repo bulletin.Repository,
	cache ranking.Cache,
	log *logger.Logger,
	classroomID shared.ClassroomID,
	year shared.SchoolYear,
	term shared.Term,
) (*ranking.Table, error) {
	bulletins, err := repo.ListByClassroomTerm(ctx, classroomID, year, term)
	if err != nil {
		return nil, fmt.Errorf("rank_classroom: failed to list bulletins: %w", err)
	}

	table := ranking.NewTable()
	for _, b := range bulletins {
		hasAverage := b.OverallAverage != nil
		average := decimal.Zero
		if hasAverage {
			average = *b.OverallAverage
		}
		if err := table.Add(b.StudentID, average, hasAverage); err != nil {
			return nil, fmt.Errorf("rank_classroom: failed to add student %s: %w", b.StudentID, err)
		}
	}
	table.Compute()

	classAverage, hasClassAverage := table.ClassAverage()
	size := table.Size()

	updates := make([]bulletin.RankingUpdate, 0, len(bulletins))
	for _, b := range bulletins {
		if !b.Status.AllowsRecompute() {
			continue
		}
		var rank *shared.Rank
		if r, ok := table.Result(b.StudentID); ok {
			rank = &r
		}
		var avg *decimal.Decimal
		if hasClassAverage {
			rounded := grading.RoundGrade(classAverage)
			avg = &rounded
		}
		updates = append(updates, bulletin.RankingUpdate{
			BulletinID:       b.ID,
			Rank:             rank,
			ClassroomAverage: avg,
			ClassroomSize:    size,
		})
	}

	if len(updates) > 0 {
		if err := repo.ApplyRanking(ctx, classroomID, year, term, updates); err != nil {
			return nil, fmt.Errorf("rank_classroom: failed to apply ranking: %w", err)
		}
	}

	if cache != nil {
		// Invalidate before overwriting: a failed write then degrades to a
		// miss and a rebuild instead of serving the previous table until
		// the TTL expires. Cache failures never break the ranking pass.
		if err := cache.Invalidate(ctx, classroomID, year, term); err != nil {
			log.Warn("failed to invalidate ranking cache",
				logger.ClassroomID(classroomID.String()),
				logger.Err(err))
		}
		entries := make([]ranking.Entry, 0, size)
		for _, e := range table.Ranked() {
			entries = append(entries, *e)
		}
		if err := cache.SetTable(ctx, classroomID, year, term, entries); err != nil {
			log.Warn("failed to refresh ranking cache",
				logger.ClassroomID(classroomID.String()),
				logger.Err(err))
		}
	}

	return table, nil
}

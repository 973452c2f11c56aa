package query

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASSROOM RANKING QUERY
// Returns the full ranking table of one classroom/term. Served from the
// ranking cache when warm, rebuilt from the persisted bulletins otherwise.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassroomRankingQuery identifies the classroom/term table.
type GetClassroomRankingQuery struct {
	// ClassroomID identifies the classroom.
	ClassroomID string

	// SchoolYear in "YYYY-YYYY" form.
	SchoolYear string

	// Term is the trimester, 1 to 3.
	Term int

	// Actor is the authenticated user reading the ranking.
	Actor shared.Actor
}

// Validate validates the query parameters.
func (q GetClassroomRankingQuery) Validate() error {
	if q.ClassroomID == "" {
		return shared.NewDomainError("query", "GetClassroomRanking", shared.ErrInvalidID, "classroom ID cannot be empty")
	}
	if _, err := shared.NewSchoolYear(q.SchoolYear); err != nil {
		return err
	}
	if _, err := shared.NewTerm(q.Term); err != nil {
		return err
	}
	return nil
}

// RankingEntryDTO is one row of the ranking table.
type RankingEntryDTO struct {
	// Rank is the shared-ties position, starting at 1.
	Rank int `json:"rank"`

	// StudentID identifies the student.
	StudentID string `json:"student_id"`

	// Average is the overall average on /20 with 2 decimals.
	Average string `json:"average"`
}

// GetClassroomRankingResult contains the ranking table.
type GetClassroomRankingResult struct {
	// ClassroomID identifies the classroom.
	ClassroomID string `json:"classroom_id"`

	// SchoolYear and Term identify the period.
	SchoolYear string `json:"school_year"`
	Term       int    `json:"term"`

	// Entries in rank order.
	Entries []RankingEntryDTO `json:"entries"`

	// ClassroomSize is the evaluated cohort size.
	ClassroomSize int `json:"classroom_size"`

	// ClassAverage is the mean of the included averages, empty when no
	// student has been evaluated.
	ClassAverage string `json:"class_average,omitempty"`

	// Excluded lists the students left out of the ranking (no average).
	Excluded []string `json:"excluded,omitempty"`

	// FromCache indicates the table was served from the cache.
	FromCache bool `json:"from_cache"`

	// GeneratedAt is when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetClassroomRankingHandler handles the GetClassroomRankingQuery.
type GetClassroomRankingHandler struct {
	bulletins bulletin.Repository
	cache     ranking.Cache
}

// NewGetClassroomRankingHandler creates a new GetClassroomRankingHandler.
func NewGetClassroomRankingHandler(bulletins bulletin.Repository, cache ranking.Cache) *GetClassroomRankingHandler {
	return &GetClassroomRankingHandler{bulletins: bulletins, cache: cache}
}

// Handle executes the query. Rankings expose every student's average, so
// they are restricted to admins and the classroom's homeroom teacher.
func (h *GetClassroomRankingHandler) Handle(ctx context.Context, query GetClassroomRankingQuery) (*GetClassroomRankingResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	classroomID := shared.ClassroomID(query.ClassroomID)
	year := shared.SchoolYear(query.SchoolYear)
	term := shared.Term(query.Term)

	if !query.Actor.IsAdmin() && !query.Actor.IsHomeroomOf(classroomID) {
		return nil, shared.ErrNotHomeroomTeacher
	}

	if entries := h.tryCache(ctx, classroomID, year, term); entries != nil {
		return buildRankingResult(query, entries, nil, true), nil
	}

	table, err := h.rebuild(ctx, classroomID, year, term)
	if err != nil {
		return nil, err
	}

	entries := make([]ranking.Entry, 0, table.Size())
	for _, e := range table.Ranked() {
		entries = append(entries, *e)
	}
	if h.cache != nil {
		_ = h.cache.SetTable(ctx, classroomID, year, term, entries)
	}

	excluded := make([]string, 0)
	for _, id := range table.Excluded() {
		excluded = append(excluded, id.String())
	}

	return buildRankingResult(query, entries, excluded, false), nil
}

// tryCache returns the cached entries, or nil on miss or cache error.
func (h *GetClassroomRankingHandler) tryCache(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) []ranking.Entry {
	if h.cache == nil {
		return nil
	}
	entries, err := h.cache.GetTable(ctx, classroomID, year, term)
	if err != nil || len(entries) == 0 {
		return nil
	}
	return entries
}

// rebuild recomputes the table from the persisted bulletins, without writing
// anything back: this is a read path.
func (h *GetClassroomRankingHandler) rebuild(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) (*ranking.Table, error) {
	bulletins, err := h.bulletins.ListByClassroomTerm(ctx, classroomID, year, term)
	if err != nil {
		return nil, shared.WrapError("query", "GetClassroomRanking", shared.ErrNotFound, "failed to list bulletins", err)
	}

	table := ranking.NewTable()
	for _, b := range bulletins {
		hasAverage := b.OverallAverage != nil
		average := decimal.Zero
		if hasAverage {
			average = *b.OverallAverage
		}
		if err := table.Add(b.StudentID, average, hasAverage); err != nil {
			return nil, err
		}
	}
	table.Compute()
	return table, nil
}

// buildRankingResult assembles the DTO.
func buildRankingResult(query GetClassroomRankingQuery, entries []ranking.Entry, excluded []string, fromCache bool) *GetClassroomRankingResult {
	dtos := make([]RankingEntryDTO, len(entries))
	total := decimal.Zero
	for i, e := range entries {
		dtos[i] = RankingEntryDTO{
			Rank:      e.Rank.Int(),
			StudentID: e.StudentID.String(),
			Average:   grading.RoundGrade(e.Average).StringFixed(2),
		}
		total = total.Add(e.Average)
	}

	result := &GetClassroomRankingResult{
		ClassroomID:   query.ClassroomID,
		SchoolYear:    query.SchoolYear,
		Term:          query.Term,
		Entries:       dtos,
		ClassroomSize: len(entries),
		Excluded:      excluded,
		FromCache:     fromCache,
		GeneratedAt:   time.Now().UTC(),
	}
	if len(entries) > 0 {
		avg := total.Div(decimal.NewFromInt(int64(len(entries))))
		result.ClassAverage = grading.RoundGrade(avg).StringFixed(2)
	}
	return result
}

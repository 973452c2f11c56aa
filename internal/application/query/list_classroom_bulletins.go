package query

import (
	"context"
	"time"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST CLASSROOM BULLETINS QUERY
// The homeroom teacher's overview: every bulletin of one classroom/term with
// its status, for driving the validate/publish workflow.
// ══════════════════════════════════════════════════════════════════════════════

// ListClassroomBulletinsQuery identifies the classroom/term to list.
type ListClassroomBulletinsQuery struct {
	// ClassroomID identifies the classroom.
	ClassroomID string

	// SchoolYear in "YYYY-YYYY" form.
	SchoolYear string

	// Term is the trimester, 1 to 3.
	Term int

	// Status filters by lifecycle status. Empty means all.
	Status string

	// Actor is the authenticated user.
	Actor shared.Actor
}

// Validate validates the query parameters.
func (q ListClassroomBulletinsQuery) Validate() error {
	if q.ClassroomID == "" {
		return shared.NewDomainError("query", "ListClassroomBulletins", shared.ErrInvalidID, "classroom ID cannot be empty")
	}
	if _, err := shared.NewSchoolYear(q.SchoolYear); err != nil {
		return err
	}
	if _, err := shared.NewTerm(q.Term); err != nil {
		return err
	}
	if q.Status != "" && !bulletin.Status(q.Status).IsValid() {
		return shared.NewDomainError("query", "ListClassroomBulletins", shared.ErrInvalidInput,
			"unknown status "+q.Status)
	}
	return nil
}

// BulletinSummaryDTO is one row of the classroom overview.
type BulletinSummaryDTO struct {
	BulletinID     string  `json:"bulletin_id"`
	StudentID      string  `json:"student_id"`
	Status         string  `json:"status"`
	OverallAverage *string `json:"overall_average,omitempty"`
	Rank           *int    `json:"rank,omitempty"`
	Mention        string  `json:"mention"`
	Decision       string  `json:"decision"`
}

// ListClassroomBulletinsResult contains the classroom overview.
type ListClassroomBulletinsResult struct {
	ClassroomID string               `json:"classroom_id"`
	SchoolYear  string               `json:"school_year"`
	Term        int                  `json:"term"`
	Bulletins   []BulletinSummaryDTO `json:"bulletins"`

	// CountByStatus tallies the listed bulletins per status.
	CountByStatus map[string]int `json:"count_by_status"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ListClassroomBulletinsHandler handles the ListClassroomBulletinsQuery.
type ListClassroomBulletinsHandler struct {
	bulletins bulletin.Repository
}

// NewListClassroomBulletinsHandler creates a new handler.
func NewListClassroomBulletinsHandler(bulletins bulletin.Repository) *ListClassroomBulletinsHandler {
	return &ListClassroomBulletinsHandler{bulletins: bulletins}
}

// Handle executes the query. Restricted to admins and the homeroom teacher.
func (h *ListClassroomBulletinsHandler) Handle(ctx context.Context, query ListClassroomBulletinsQuery) (*ListClassroomBulletinsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	classroomID := shared.ClassroomID(query.ClassroomID)
	if !query.Actor.IsAdmin() && !query.Actor.IsHomeroomOf(classroomID) {
		return nil, shared.ErrNotHomeroomTeacher
	}

	bulletins, err := h.bulletins.ListByClassroomTerm(ctx, classroomID,
		shared.SchoolYear(query.SchoolYear), shared.Term(query.Term))
	if err != nil {
		return nil, shared.WrapError("query", "ListClassroomBulletins", shared.ErrNotFound, "failed to list bulletins", err)
	}

	result := &ListClassroomBulletinsResult{
		ClassroomID:   query.ClassroomID,
		SchoolYear:    query.SchoolYear,
		Term:          query.Term,
		Bulletins:     make([]BulletinSummaryDTO, 0, len(bulletins)),
		CountByStatus: make(map[string]int),
		GeneratedAt:   time.Now().UTC(),
	}

	for _, b := range bulletins {
		if query.Status != "" && b.Status.String() != query.Status {
			continue
		}
		dto := BulletinSummaryDTO{
			BulletinID: b.ID.String(),
			StudentID:  b.StudentID.String(),
			Status:     b.Status.String(),
			Mention:    string(b.Mention),
			Decision:   string(b.Decision),
		}
		if b.OverallAverage != nil {
			s := b.OverallAverage.StringFixed(2)
			dto.OverallAverage = &s
		}
		if b.Rank != nil {
			r := b.Rank.Int()
			dto.Rank = &r
		}
		result.Bulletins = append(result.Bulletins, dto)
		result.CountByStatus[dto.Status]++
	}

	return result, nil
}

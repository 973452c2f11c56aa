// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BULLETIN QUERY
// Loads one bulletin with its per-subject breakdown, enforcing visibility:
// students and guardians only ever see PUBLISHED bulletins of their own.
// ══════════════════════════════════════════════════════════════════════════════

// GetBulletinQuery identifies the bulletin either directly by ID or by its
// unique (student, year, term) key.
type GetBulletinQuery struct {
	// BulletinID is the direct identifier. Optional.
	BulletinID string

	// StudentID + SchoolYear + Term form the unique key. Used when
	// BulletinID is empty.
	StudentID  string
	SchoolYear string
	Term       int

	// Actor is the authenticated user reading the bulletin.
	Actor shared.Actor
}

// Validate checks that one of the two lookup forms is present.
func (q GetBulletinQuery) Validate() error {
	if q.BulletinID != "" {
		return nil
	}
	if q.StudentID == "" {
		return shared.NewDomainError("query", "GetBulletin", shared.ErrInvalidInput,
			"either bulletin_id or (student_id, school_year, term) must be provided")
	}
	if _, err := shared.NewSchoolYear(q.SchoolYear); err != nil {
		return err
	}
	if _, err := shared.NewTerm(q.Term); err != nil {
		return err
	}
	return nil
}

// SubjectLineDTO is one row of the per-subject breakdown.
type SubjectLineDTO struct {
	// SubjectID identifies the subject.
	SubjectID string `json:"subject_id"`

	// Average is the subject average on /20 with 2 decimals, nil when the
	// subject has no scored evaluation.
	Average *string `json:"average,omitempty"`

	// Coefficient is the subject weight in the overall average.
	Coefficient string `json:"coefficient"`

	// Appreciation is the subject teacher's comment.
	Appreciation string `json:"appreciation,omitempty"`
}

// BulletinDTO is the full read model of one bulletin.
type BulletinDTO struct {
	BulletinID  string `json:"bulletin_id"`
	StudentID   string `json:"student_id"`
	ClassroomID string `json:"classroom_id"`
	SchoolYear  string `json:"school_year"`
	Term        int    `json:"term"`
	Status      string `json:"status"`

	OverallAverage   *string `json:"overall_average,omitempty"`
	Rank             *int    `json:"rank,omitempty"`
	ClassroomSize    *int    `json:"classroom_size,omitempty"`
	ClassroomAverage *string `json:"classroom_average,omitempty"`
	Mention          string  `json:"mention"`
	Decision         string  `json:"decision"`

	Lines []SubjectLineDTO `json:"lines"`

	GeneralComment  string `json:"general_comment,omitempty"`
	HomeroomComment string `json:"homeroom_comment,omitempty"`

	ValidatedBy *string    `json:"validated_by,omitempty"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GetBulletinHandler handles the GetBulletinQuery.
type GetBulletinHandler struct {
	bulletins bulletin.Repository
}

// NewGetBulletinHandler creates a new GetBulletinHandler.
func NewGetBulletinHandler(bulletins bulletin.Repository) *GetBulletinHandler {
	return &GetBulletinHandler{bulletins: bulletins}
}

// Handle executes the query.
//
// A bulletin the actor may not see is reported as not found, exactly like a
// bulletin that does not exist: the response never reveals whether an
// unpublished bulletin exists for a student.
func (h *GetBulletinHandler) Handle(ctx context.Context, query GetBulletinQuery) (*BulletinDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b, err := h.load(ctx, query)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrBulletinNotFound
		}
		return nil, err
	}

	if !b.VisibleTo(query.Actor) {
		return nil, shared.ErrBulletinNotFound
	}

	return toBulletinDTO(b), nil
}

// load resolves the bulletin by whichever key the query carries.
func (h *GetBulletinHandler) load(ctx context.Context, query GetBulletinQuery) (*bulletin.Bulletin, error) {
	if query.BulletinID != "" {
		return h.bulletins.Get(ctx, shared.BulletinID(query.BulletinID))
	}
	return h.bulletins.GetByKey(ctx,
		shared.StudentID(query.StudentID),
		shared.SchoolYear(query.SchoolYear),
		shared.Term(query.Term))
}

// toBulletinDTO converts the aggregate into its read model.
func toBulletinDTO(b *bulletin.Bulletin) *BulletinDTO {
	dto := &BulletinDTO{
		BulletinID:  b.ID.String(),
		StudentID:   b.StudentID.String(),
		ClassroomID: b.ClassroomID.String(),
		SchoolYear:  b.SchoolYear.String(),
		Term:        b.Term.Int(),
		Status:      b.Status.String(),
		Mention:     string(b.Mention),
		Decision:    string(b.Decision),

		GeneralComment:  b.GeneralComment,
		HomeroomComment: b.HomeroomComment,

		ValidatedAt: b.ValidatedAt,
		PublishedAt: b.PublishedAt,
		UpdatedAt:   b.UpdatedAt,
	}

	if b.OverallAverage != nil {
		s := b.OverallAverage.StringFixed(2)
		dto.OverallAverage = &s
	}
	if b.Rank != nil {
		r := b.Rank.Int()
		dto.Rank = &r
	}
	if b.ClassroomSize != nil {
		size := *b.ClassroomSize
		dto.ClassroomSize = &size
	}
	if b.ClassroomAverage != nil {
		s := b.ClassroomAverage.StringFixed(2)
		dto.ClassroomAverage = &s
	}
	if b.ValidatedBy != nil {
		v := b.ValidatedBy.String()
		dto.ValidatedBy = &v
	}

	dto.Lines = make([]SubjectLineDTO, len(b.Lines))
	for i, line := range b.Lines {
		lineDTO := SubjectLineDTO{
			SubjectID:    line.SubjectID.String(),
			Coefficient:  line.Coefficient.String(),
			Appreciation: line.Appreciation,
		}
		if line.Average != nil {
			s := line.Average.StringFixed(2)
			lineDTO.Average = &s
		}
		dto.Lines[i] = lineDTO
	}

	return dto
}

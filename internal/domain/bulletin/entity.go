// Package bulletin contains the bulletin aggregate: the per-student, per-term
// report-card snapshot with its lifecycle state machine and the
// authorization predicates gating every mutation.
package bulletin

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a bulletin.
type Status string

// Lifecycle: DRAFT → PENDING → VALIDATED → PUBLISHED → ARCHIVED.
// PENDING is optional; the workflow may validate straight from DRAFT.
// ARCHIVED is terminal and only reached by end-of-term rollover, which is
// outside this engine's write path.
const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusValidated Status = "VALIDATED"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

// IsValid checks that the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusValidated, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// IsTerminal returns true for states no mutation can leave.
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// AllowsRecompute returns true when derived fields may be regenerated.
// Recomputing a published bulletin would silently change what guardians
// already saw; an explicit unpublish step (out of scope) is required first.
func (s Status) AllowsRecompute() bool {
	return s != StatusPublished && s != StatusArchived
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT LINE
// ══════════════════════════════════════════════════════════════════════════════

// SubjectLine is one row of the per-subject breakdown, owned exclusively by
// its bulletin. The whole set of lines is re-derived on every recompute -
// lines are never merged with stale data.
type SubjectLine struct {
	SubjectID shared.SubjectID

	// Average is the subject average on /20, rounded for persistence.
	// Nil for subjects with no scored evaluation: displayed for
	// transparency, excluded from all weighting.
	Average *decimal.Decimal

	Coefficient decimal.Decimal

	// Appreciation is the subject teacher's free-text comment.
	Appreciation string
}

// ══════════════════════════════════════════════════════════════════════════════
// BULLETIN AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// Bulletin is the persisted report-card snapshot for one (student, school
// year, term). Exactly one bulletin exists per key; the storage layer
// enforces the uniqueness with a unique index, not just application logic.
//
// All numeric fields are derived state: ApplyComputation and ApplyRanking
// fully overwrite them, they are never patched piecemeal.
type Bulletin struct {
	ID          shared.BulletinID
	StudentID   shared.StudentID
	ClassroomID shared.ClassroomID
	SchoolYear  shared.SchoolYear
	Term        shared.Term
	Status      Status

	// Derived aggregation state. Nil until the first recompute, and nil
	// again when the student has no scored subject.
	OverallAverage   *decimal.Decimal
	Rank             *shared.Rank
	ClassroomSize    *int
	ClassroomAverage *decimal.Decimal
	Mention          grading.Mention
	Decision         grading.Decision
	Lines            []SubjectLine

	// Commentary. GeneralComment falls back to a generated appreciation on
	// recompute when empty; HomeroomComment is always teacher-entered.
	GeneralComment  string
	HomeroomComment string

	// Audit fields.
	CreatedBy   shared.UserID
	ValidatedBy *shared.UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ValidatedAt *time.Time
	PublishedAt *time.Time
}

// New creates a fresh DRAFT bulletin with null derived fields.
func New(studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, createdBy shared.UserID) (*Bulletin, error) {
	if !studentID.IsValid() {
		return nil, shared.NewDomainError("bulletin", "New", shared.ErrInvalidID, "student ID cannot be empty")
	}
	if !classroomID.IsValid() {
		return nil, shared.NewDomainError("bulletin", "New", shared.ErrInvalidID, "classroom ID cannot be empty")
	}
	if !year.IsValid() {
		return nil, shared.NewDomainError("bulletin", "New", shared.ErrInvalidFormat, "invalid school year")
	}
	if !term.IsValid() {
		return nil, shared.NewDomainError("bulletin", "New", shared.ErrValueOutOfRange, "term must be 1, 2 or 3")
	}

	now := time.Now().UTC()
	return &Bulletin{
		ID:          shared.BulletinID(uuid.NewString()),
		StudentID:   studentID,
		ClassroomID: classroomID,
		SchoolYear:  year,
		Term:        term,
		Status:      StatusDraft,
		Mention:     grading.MentionUndetermined,
		Decision:    grading.DecisionUndetermined,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Derived-state mutations
// ──────────────────────────────────────────────────────────────────────────────

// Computation is the full output of one aggregation pass over a student's
// scores, produced by the command layer from the grading package.
type Computation struct {
	OverallAverage decimal.Decimal
	HasAverage     bool
	FailureCount   int
	Mention        grading.Mention
	Decision       grading.Decision
	Lines          []SubjectLine

	// GeneratedComment replaces GeneralComment only when the latter is empty.
	GeneratedComment string
}

// ApplyComputation overwrites all aggregation-derived state with the result
// of a fresh pass. It returns ErrInvalidState for PUBLISHED and ARCHIVED
// bulletins. Idempotent: applying the same computation twice yields an
// identical bulletin.
//
// Rank, classroom average and classroom size are left untouched here; they
// belong to the classroom-wide ranking pass that must follow every
// recompute (see ApplyRanking).
func (b *Bulletin) ApplyComputation(c Computation) error {
	if !b.Status.AllowsRecompute() {
		return shared.ErrBulletinImmutable
	}

	if c.HasAverage {
		rounded := grading.RoundGrade(c.OverallAverage)
		b.OverallAverage = &rounded
	} else {
		b.OverallAverage = nil
	}
	b.Mention = c.Mention
	b.Decision = c.Decision

	b.Lines = make([]SubjectLine, len(c.Lines))
	copy(b.Lines, c.Lines)

	if b.GeneralComment == "" {
		b.GeneralComment = c.GeneratedComment
	}

	b.UpdatedAt = time.Now().UTC()
	return nil
}

// ApplyRanking writes the outcome of a classroom-wide ranking pass. rank is
// nil for students excluded from the ranking (no average). classroomAverage
// and classroomSize describe the evaluated cohort and are written on every
// bulletin of the classroom, ranked or not.
func (b *Bulletin) ApplyRanking(rank *shared.Rank, classroomAverage *decimal.Decimal, classroomSize int) error {
	if !b.Status.AllowsRecompute() {
		return shared.ErrBulletinImmutable
	}

	b.Rank = rank
	if classroomAverage != nil {
		rounded := grading.RoundGrade(*classroomAverage)
		b.ClassroomAverage = &rounded
	} else {
		b.ClassroomAverage = nil
	}
	size := classroomSize
	b.ClassroomSize = &size
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ──────────────────────────────────────────────────────────────────────────────

// Submit moves a DRAFT bulletin to PENDING validation. The workflow may
// skip this step and validate directly from DRAFT.
func (b *Bulletin) Submit(actor shared.Actor) error {
	if !b.CanMutate(actor) {
		return shared.ErrNotHomeroomTeacher
	}
	if b.Status != StatusDraft {
		return shared.NewDomainError("bulletin", "Submit", shared.ErrStateTransition,
			"bulletin can only be submitted from draft, current status "+b.Status.String())
	}
	b.Status = StatusPending
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// Validate moves the bulletin to VALIDATED. Allowed only from DRAFT or
// PENDING, and only for the classroom's homeroom teacher or an admin.
func (b *Bulletin) Validate(actor shared.Actor) error {
	if !b.CanMutate(actor) {
		return shared.ErrNotHomeroomTeacher
	}
	if b.Status != StatusDraft && b.Status != StatusPending {
		return shared.ErrBulletinNotValidable
	}
	now := time.Now().UTC()
	userID := actor.UserID
	b.Status = StatusValidated
	b.ValidatedBy = &userID
	b.ValidatedAt = &now
	b.UpdatedAt = now
	return nil
}

// Publish makes the bulletin visible to the student and guardians. Allowed
// from DRAFT, PENDING or VALIDATED, with the same authorization as Validate.
// Publishing from PUBLISHED or ARCHIVED is an invalid state transition.
func (b *Bulletin) Publish(actor shared.Actor) error {
	if !b.CanMutate(actor) {
		return shared.ErrNotHomeroomTeacher
	}
	switch b.Status {
	case StatusDraft, StatusPending, StatusValidated:
		// allowed
	default:
		return shared.ErrBulletinNotPublishable
	}
	now := time.Now().UTC()
	b.Status = StatusPublished
	b.PublishedAt = &now
	b.UpdatedAt = now
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Authorization predicates
// ──────────────────────────────────────────────────────────────────────────────

// CanMutate reports whether the actor may mutate this bulletin: admins and
// the homeroom teacher of the bulletin's classroom only. A subject teacher
// who is not the homeroom teacher has read-only access, even to their own
// subject's contribution.
func (b *Bulletin) CanMutate(actor shared.Actor) bool {
	return actor.IsAdmin() || actor.IsHomeroomOf(b.ClassroomID)
}

// VisibleTo reports whether the actor may read this bulletin. Students see
// only their own PUBLISHED bulletins; guardians only the PUBLISHED bulletins
// of their linked students. Pre-publication states are visible only to the
// classroom's homeroom teacher and admins.
func (b *Bulletin) VisibleTo(actor shared.Actor) bool {
	if actor.IsAdmin() || actor.IsHomeroomOf(b.ClassroomID) {
		return true
	}
	if b.Status != StatusPublished {
		return false
	}
	return actor.IsSelf(b.StudentID) || actor.IsGuardianOf(b.StudentID)
}

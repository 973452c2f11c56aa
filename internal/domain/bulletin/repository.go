package bulletin

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY (write model)
// ══════════════════════════════════════════════════════════════════════════════

// RankingUpdate carries the per-bulletin outcome of one classroom ranking
// pass. Rank is nil for students excluded from the ranking.
type RankingUpdate struct {
	BulletinID       shared.BulletinID
	Rank             *shared.Rank
	ClassroomAverage *decimal.Decimal
	ClassroomSize    int
}

// Repository persists bulletins and their breakdown lines.
//
// Save must write the bulletin row and replace its breakdown lines
// atomically, using a generation flip: new lines are written under a fresh
// generation number in the same transaction that updates the bulletin's
// current generation, so a concurrent reader never observes an empty or
// half-replaced breakdown.
type Repository interface {
	// Get loads a bulletin with its current-generation lines.
	Get(ctx context.Context, id shared.BulletinID) (*Bulletin, error)

	// GetByKey loads the unique bulletin for (student, year, term).
	GetByKey(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) (*Bulletin, error)

	// GetOrCreate returns the existing bulletin for the unique key, or
	// persists a fresh DRAFT one. Idempotent; the storage unique index
	// guarantees no duplicates under concurrent callers. The second
	// return value reports whether a row was created.
	GetOrCreate(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, createdBy shared.UserID) (*Bulletin, bool, error)

	// Save writes the bulletin and atomically replaces its lines.
	Save(ctx context.Context, b *Bulletin) error

	// ListByClassroomTerm returns all bulletins of one classroom/term.
	ListByClassroomTerm(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]*Bulletin, error)

	// ApplyRanking batch-writes the rank fields of one classroom/term in
	// a single transaction, so ranks are never observable half-updated.
	ApplyRanking(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, updates []RankingUpdate) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE STORE (external read model)
// ══════════════════════════════════════════════════════════════════════════════

// Subject is the read-model view of a taught subject.
type Subject struct {
	ID          shared.SubjectID
	Name        string
	Coefficient decimal.Decimal
}

// Student is the read-model view of an enrolled student.
type Student struct {
	ID          shared.StudentID
	DisplayName string
}

// Classroom is the read-model view of a classroom.
type Classroom struct {
	ID   shared.ClassroomID
	Name string

	// HomeroomTeacher is nil when no homeroom teacher is assigned; bulk
	// generation skips such classrooms with a reported reason.
	HomeroomTeacher *shared.UserID
}

// MissingEvaluation identifies one evaluation a student has neither a score
// nor an explicit absence for. Used by the completeness pre-check.
type MissingEvaluation struct {
	SubjectID    shared.SubjectID
	SubjectName  string
	EvaluationID string
}

// ScoreStore is the read accessor into raw scored evaluations and roster
// data. It is external to this engine: the engine never writes through it.
type ScoreStore interface {
	// Scores returns all scored evaluations of one student for a term,
	// including absences without a score.
	Scores(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) ([]grading.ScoredEvaluation, error)

	// ClassroomSubjects returns the subjects taught in a classroom with
	// their coefficients.
	ClassroomSubjects(ctx context.Context, classroomID shared.ClassroomID) ([]Subject, error)

	// Student returns one enrolled student.
	Student(ctx context.Context, studentID shared.StudentID) (Student, error)

	// ClassroomStudents returns the students enrolled in a classroom for
	// a school year.
	ClassroomStudents(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear) ([]Student, error)

	// Classrooms returns the classrooms of a school year, optionally
	// filtered by exact name (empty name = all).
	Classrooms(ctx context.Context, year shared.SchoolYear, name string) ([]Classroom, error)

	// MissingEvaluations lists the term's evaluations the student has no
	// score and no recorded absence for. An empty result means the
	// student's data is complete. Subjects without any evaluation for
	// the term are reported with an empty EvaluationID.
	MissingEvaluations(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]MissingEvaluation, error)
}

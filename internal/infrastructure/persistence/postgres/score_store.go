package postgres

import (
	"context"
	"fmt"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE STORE IMPLEMENTATION
// Read-only accessor into the roster and scored evaluations. The bulletin
// engine aggregates from these tables but never writes them.
// ══════════════════════════════════════════════════════════════════════════════

// ScoreStore implements bulletin.ScoreStore for PostgreSQL.
type ScoreStore struct {
	conn *Connection
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(conn *Connection) *ScoreStore {
	return &ScoreStore{conn: conn}
}

// Scores returns all scored evaluations of one student for a term, including
// absences without a score.
func (s *ScoreStore) Scores(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) ([]grading.ScoredEvaluation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT sc.student_id::text, e.subject_id::text, e.id::text,
		       sc.raw_score::text, e.scale::text, e.weight::text, sc.absent
		FROM scores sc
		JOIN evaluations e ON e.id = sc.evaluation_id
		WHERE sc.student_id = $1 AND e.school_year = $2 AND e.term = $3
		ORDER BY e.subject_id, e.held_on NULLS LAST, e.id
	`, studentID.String(), year.String(), term.Int())
	if err != nil {
		return nil, mapStorageError("Scores", err)
	}
	defer rows.Close()

	var out []grading.ScoredEvaluation
	for rows.Next() {
		var (
			stID, subjectID, evaluationID string
			raw, scale, weight            *string
			absent                        bool
		)
		if err := rows.Scan(&stID, &subjectID, &evaluationID, &raw, &scale, &weight, &absent); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan score row: %w", err)
		}

		ev := grading.ScoredEvaluation{
			StudentID:    shared.StudentID(stID),
			SubjectID:    shared.SubjectID(subjectID),
			EvaluationID: evaluationID,
			Absent:       absent,
		}
		rawDec, err := parseDecimal(raw)
		if err != nil {
			return nil, err
		}
		ev.Raw = rawDec
		scaleDec, err := parseDecimal(scale)
		if err != nil {
			return nil, err
		}
		if scaleDec != nil {
			ev.Scale = *scaleDec
		}
		weightDec, err := parseDecimal(weight)
		if err != nil {
			return nil, err
		}
		if weightDec != nil {
			ev.Weight = *weightDec
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ClassroomSubjects returns the subjects taught in a classroom with their
// coefficients.
func (s *ScoreStore) ClassroomSubjects(ctx context.Context, classroomID shared.ClassroomID) ([]bulletin.Subject, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT su.id::text, su.name, cs.coefficient::text
		FROM classroom_subjects cs
		JOIN subjects su ON su.id = cs.subject_id
		WHERE cs.classroom_id = $1
		ORDER BY su.name
	`, classroomID.String())
	if err != nil {
		return nil, mapStorageError("ClassroomSubjects", err)
	}
	defer rows.Close()

	var out []bulletin.Subject
	for rows.Next() {
		var (
			id, name string
			coeff    *string
		)
		if err := rows.Scan(&id, &name, &coeff); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan subject row: %w", err)
		}
		subject := bulletin.Subject{ID: shared.SubjectID(id), Name: name}
		coeffDec, err := parseDecimal(coeff)
		if err != nil {
			return nil, err
		}
		if coeffDec != nil {
			subject.Coefficient = *coeffDec
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

// Student returns one enrolled student.
func (s *ScoreStore) Student(ctx context.Context, studentID shared.StudentID) (bulletin.Student, error) {
	var student bulletin.Student
	var id string
	err := s.conn.QueryRow(ctx, `
		SELECT id::text, display_name FROM students WHERE id = $1
	`, studentID.String()).Scan(&id, &student.DisplayName)
	if IsNoRows(err) {
		return bulletin.Student{}, shared.ErrStudentNotFound
	}
	if err != nil {
		return bulletin.Student{}, mapStorageError("Student", err)
	}
	student.ID = shared.StudentID(id)
	return student, nil
}

// ClassroomStudents returns the students enrolled in a classroom for a
// school year.
func (s *ScoreStore) ClassroomStudents(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear) ([]bulletin.Student, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT st.id::text, st.display_name
		FROM enrollments en
		JOIN students st ON st.id = en.student_id
		WHERE en.classroom_id = $1 AND en.school_year = $2
		ORDER BY st.display_name, st.id
	`, classroomID.String(), year.String())
	if err != nil {
		return nil, mapStorageError("ClassroomStudents", err)
	}
	defer rows.Close()

	var out []bulletin.Student
	for rows.Next() {
		var student bulletin.Student
		var id string
		if err := rows.Scan(&id, &student.DisplayName); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan student row: %w", err)
		}
		student.ID = shared.StudentID(id)
		out = append(out, student)
	}
	return out, rows.Err()
}

// Classrooms returns the classrooms of a school year, optionally filtered by
// exact name.
func (s *ScoreStore) Classrooms(ctx context.Context, year shared.SchoolYear, name string) ([]bulletin.Classroom, error) {
	query := `
		SELECT id::text, name, homeroom_teacher_id
		FROM classrooms
		WHERE school_year = $1
	`
	args := []interface{}{year.String()}
	if name != "" {
		query += ` AND name = $2`
		args = append(args, name)
	}
	query += ` ORDER BY name`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, mapStorageError("Classrooms", err)
	}
	defer rows.Close()

	var out []bulletin.Classroom
	for rows.Next() {
		var (
			id, className string
			homeroom      *string
		)
		if err := rows.Scan(&id, &className, &homeroom); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan classroom row: %w", err)
		}
		classroom := bulletin.Classroom{ID: shared.ClassroomID(id), Name: className}
		if homeroom != nil && *homeroom != "" {
			teacher := shared.UserID(*homeroom)
			classroom.HomeroomTeacher = &teacher
		}
		out = append(out, classroom)
	}
	return out, rows.Err()
}

// MissingEvaluations lists the term's evaluations the student has no score
// and no recorded absence for. The walk starts from the classroom's subject
// set, not from the existing evaluations: a taught subject with no evaluation
// at all for the term is itself incomplete and is reported with an empty
// EvaluationID.
func (s *ScoreStore) MissingEvaluations(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]bulletin.MissingEvaluation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT cs.subject_id::text, su.name, COALESCE(e.id::text, '')
		FROM classroom_subjects cs
		JOIN subjects su ON su.id = cs.subject_id
		LEFT JOIN evaluations e
		       ON e.subject_id = cs.subject_id
		      AND e.classroom_id = cs.classroom_id
		      AND e.school_year = $3
		      AND e.term = $4
		LEFT JOIN scores sc ON sc.evaluation_id = e.id AND sc.student_id = $1
		WHERE cs.classroom_id = $2
		  AND (e.id IS NULL OR sc.evaluation_id IS NULL)
		ORDER BY su.name, e.id
	`, studentID.String(), classroomID.String(), year.String(), term.Int())
	if err != nil {
		return nil, mapStorageError("MissingEvaluations", err)
	}
	defer rows.Close()

	var out []bulletin.MissingEvaluation
	for rows.Next() {
		var m bulletin.MissingEvaluation
		var subjectID string
		if err := rows.Scan(&subjectID, &m.SubjectName, &m.EvaluationID); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan missing evaluation: %w", err)
		}
		m.SubjectID = shared.SubjectID(subjectID)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Ensure interfaces are implemented
var _ bulletin.ScoreStore = (*ScoreStore)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BULLETIN REPOSITORY IMPLEMENTATION
// Breakdown lines are versioned by a generation counter on the bulletin row:
// Save writes the new lines under generation+1 and flips the counter in the
// same transaction, so a reader joining on the current generation never sees
// a half-replaced breakdown.
// ══════════════════════════════════════════════════════════════════════════════

// BulletinRepository implements bulletin.Repository for PostgreSQL.
type BulletinRepository struct {
	conn *Connection
}

// NewBulletinRepository creates a new BulletinRepository.
func NewBulletinRepository(conn *Connection) *BulletinRepository {
	return &BulletinRepository{conn: conn}
}

// bulletinSelect joins each bulletin with its current-generation lines in a
// single statement, so row and breakdown come from one snapshot.
const bulletinSelect = `
	SELECT b.id::text, b.student_id::text, b.classroom_id::text, b.school_year, b.term,
	       b.status, b.overall_average::text, b.rank, b.classroom_size,
	       b.classroom_average::text, b.mention, b.decision,
	       b.general_comment, b.homeroom_comment,
	       b.created_by, b.validated_by,
	       b.created_at, b.updated_at, b.validated_at, b.published_at,
	       l.subject_id::text, l.average::text, l.coefficient::text, l.appreciation
	FROM bulletins b
	LEFT JOIN bulletin_subject_lines l
	       ON l.bulletin_id = b.id AND l.generation = b.generation
`

// Get loads a bulletin with its current-generation lines.
func (r *BulletinRepository) Get(ctx context.Context, id shared.BulletinID) (*bulletin.Bulletin, error) {
	rows, err := r.conn.Query(ctx, bulletinSelect+` WHERE b.id = $1`, id.String())
	if err != nil {
		return nil, mapStorageError("Get", err)
	}
	defer rows.Close()

	bulletins, err := scanBulletins(rows)
	if err != nil {
		return nil, err
	}
	if len(bulletins) == 0 {
		return nil, shared.ErrBulletinNotFound
	}
	return bulletins[0], nil
}

// GetByKey loads the unique bulletin for (student, year, term).
func (r *BulletinRepository) GetByKey(ctx context.Context, studentID shared.StudentID, year shared.SchoolYear, term shared.Term) (*bulletin.Bulletin, error) {
	rows, err := r.conn.Query(ctx,
		bulletinSelect+` WHERE b.student_id = $1 AND b.school_year = $2 AND b.term = $3`,
		studentID.String(), year.String(), term.Int())
	if err != nil {
		return nil, mapStorageError("GetByKey", err)
	}
	defer rows.Close()

	bulletins, err := scanBulletins(rows)
	if err != nil {
		return nil, err
	}
	if len(bulletins) == 0 {
		return nil, shared.ErrBulletinNotFound
	}
	return bulletins[0], nil
}

// GetOrCreate returns the existing bulletin for the unique key or inserts a
// fresh DRAFT one. The unique index on (student_id, school_year, term) makes
// concurrent creations converge on a single row.
func (r *BulletinRepository) GetOrCreate(ctx context.Context, studentID shared.StudentID, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, createdBy shared.UserID) (*bulletin.Bulletin, bool, error) {
	fresh, err := bulletin.New(studentID, classroomID, year, term, createdBy)
	if err != nil {
		return nil, false, err
	}

	tag, err := r.conn.Exec(ctx, `
		INSERT INTO bulletins
			(id, student_id, classroom_id, school_year, term, status,
			 mention, decision, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (student_id, school_year, term) DO NOTHING
	`,
		fresh.ID.String(),
		studentID.String(),
		classroomID.String(),
		year.String(),
		term.Int(),
		fresh.Status.String(),
		string(fresh.Mention),
		string(fresh.Decision),
		createdBy.String(),
		fresh.CreatedAt,
		fresh.UpdatedAt,
	)
	if err != nil {
		return nil, false, mapStorageError("GetOrCreate", err)
	}

	created := tag.RowsAffected() == 1
	b, err := r.GetByKey(ctx, studentID, year, term)
	if err != nil {
		return nil, false, err
	}
	return b, created, nil
}

// Save writes the bulletin row and atomically replaces its breakdown lines
// under a fresh generation number.
func (r *BulletinRepository) Save(ctx context.Context, b *bulletin.Bulletin) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var generation int64
		err := tx.QueryRow(ctx, `
			UPDATE bulletins SET
				status = $2,
				generation = generation + 1,
				overall_average = $3,
				mention = $4,
				decision = $5,
				general_comment = $6,
				homeroom_comment = $7,
				validated_by = $8,
				updated_at = $9,
				validated_at = $10,
				published_at = $11
			WHERE id = $1
			RETURNING generation
		`,
			b.ID.String(),
			b.Status.String(),
			decimalArg(b.OverallAverage),
			string(b.Mention),
			string(b.Decision),
			b.GeneralComment,
			b.HomeroomComment,
			userIDArg(b.ValidatedBy),
			b.UpdatedAt,
			b.ValidatedAt,
			b.PublishedAt,
		).Scan(&generation)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrBulletinNotFound
			}
			return fmt.Errorf("failed to update bulletin: %w", err)
		}

		if len(b.Lines) > 0 {
			batch := &pgx.Batch{}
			for _, line := range b.Lines {
				batch.Queue(`
					INSERT INTO bulletin_subject_lines
						(bulletin_id, generation, subject_id, average, coefficient, appreciation)
					VALUES ($1, $2, $3, $4, $5, $6)
				`,
					b.ID.String(),
					generation,
					line.SubjectID.String(),
					decimalArg(line.Average),
					line.Coefficient.String(),
					line.Appreciation,
				)
			}

			br := tx.SendBatch(ctx, batch)
			for range b.Lines {
				if _, err := br.Exec(); err != nil {
					br.Close()
					return fmt.Errorf("failed to insert subject line: %w", err)
				}
			}
			if err := br.Close(); err != nil {
				return fmt.Errorf("failed to flush subject lines: %w", err)
			}
		}

		// Superseded generations are unreachable once the counter flips.
		_, err = tx.Exec(ctx, `
			DELETE FROM bulletin_subject_lines WHERE bulletin_id = $1 AND generation < $2
		`, b.ID.String(), generation)
		if err != nil {
			return fmt.Errorf("failed to drop superseded lines: %w", err)
		}

		return nil
	})
	if err != nil {
		return mapStorageError("Save", err)
	}
	return nil
}

// ListByClassroomTerm returns all bulletins of one classroom/term with their
// current-generation lines.
func (r *BulletinRepository) ListByClassroomTerm(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term) ([]*bulletin.Bulletin, error) {
	rows, err := r.conn.Query(ctx,
		bulletinSelect+` WHERE b.classroom_id = $1 AND b.school_year = $2 AND b.term = $3
		 ORDER BY b.student_id, l.subject_id`,
		classroomID.String(), year.String(), term.Int())
	if err != nil {
		return nil, mapStorageError("ListByClassroomTerm", err)
	}
	defer rows.Close()

	return scanBulletins(rows)
}

// ApplyRanking batch-writes the rank fields of one classroom/term in a
// single transaction.
func (r *BulletinRepository) ApplyRanking(ctx context.Context, classroomID shared.ClassroomID, year shared.SchoolYear, term shared.Term, updates []bulletin.RankingUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	now := time.Now().UTC()
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range updates {
			var rank *int
			if u.Rank != nil {
				value := u.Rank.Int()
				rank = &value
			}
			batch.Queue(`
				UPDATE bulletins SET rank = $2, classroom_average = $3, classroom_size = $4, updated_at = $5
				WHERE id = $1
			`,
				u.BulletinID.String(),
				rank,
				decimalArg(u.ClassroomAverage),
				u.ClassroomSize,
				now,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range updates {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to update ranking: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return mapStorageError("ApplyRanking", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SCANNING
// ══════════════════════════════════════════════════════════════════════════════

// scanBulletins folds the joined row set into bulletins with their lines.
// Rows must be ordered so the rows of one bulletin are adjacent.
func scanBulletins(rows pgx.Rows) ([]*bulletin.Bulletin, error) {
	var (
		out     []*bulletin.Bulletin
		current *bulletin.Bulletin
	)

	for rows.Next() {
		var (
			id, studentID, classroomID, year          string
			term                                      int
			status, mention, decision                 string
			overallAvg, classroomAvg                  *string
			rank, classroomSize                       *int
			generalComment, homeroomComment           string
			createdBy                                 string
			validatedBy                               *string
			createdAt, updatedAt                      time.Time
			validatedAt, publishedAt                  *time.Time
			lineSubjectID, lineAvg, lineCoeff, lineAp *string
		)

		err := rows.Scan(
			&id, &studentID, &classroomID, &year, &term,
			&status, &overallAvg, &rank, &classroomSize,
			&classroomAvg, &mention, &decision,
			&generalComment, &homeroomComment,
			&createdBy, &validatedBy,
			&createdAt, &updatedAt, &validatedAt, &publishedAt,
			&lineSubjectID, &lineAvg, &lineCoeff, &lineAp,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan bulletin row: %w", err)
		}

		if current == nil || current.ID.String() != id {
			b := &bulletin.Bulletin{
				ID:              shared.BulletinID(id),
				StudentID:       shared.StudentID(studentID),
				ClassroomID:     shared.ClassroomID(classroomID),
				SchoolYear:      shared.SchoolYear(year),
				Term:            shared.Term(term),
				Status:          bulletin.Status(status),
				Mention:         grading.Mention(mention),
				Decision:        grading.Decision(decision),
				GeneralComment:  generalComment,
				HomeroomComment: homeroomComment,
				CreatedBy:       shared.UserID(createdBy),
				CreatedAt:       createdAt,
				UpdatedAt:       updatedAt,
				ValidatedAt:     validatedAt,
				PublishedAt:     publishedAt,
			}
			if d, err := parseDecimal(overallAvg); err != nil {
				return nil, err
			} else {
				b.OverallAverage = d
			}
			if d, err := parseDecimal(classroomAvg); err != nil {
				return nil, err
			} else {
				b.ClassroomAverage = d
			}
			if rank != nil {
				value := shared.Rank(*rank)
				b.Rank = &value
			}
			b.ClassroomSize = classroomSize
			if validatedBy != nil {
				value := shared.UserID(*validatedBy)
				b.ValidatedBy = &value
			}
			out = append(out, b)
			current = b
		}

		if lineSubjectID == nil {
			continue
		}
		line := bulletin.SubjectLine{SubjectID: shared.SubjectID(*lineSubjectID)}
		if d, err := parseDecimal(lineAvg); err != nil {
			return nil, err
		} else {
			line.Average = d
		}
		coeff, err := parseDecimal(lineCoeff)
		if err != nil {
			return nil, err
		}
		if coeff != nil {
			line.Coefficient = *coeff
		}
		if lineAp != nil {
			line.Appreciation = *lineAp
		}
		current.Lines = append(current.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, mapStorageError("Scan", err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decimalArg renders an optional decimal as a SQL argument.
func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// userIDArg renders an optional user ID as a SQL argument.
func userIDArg(id *shared.UserID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseDecimal parses an optional numeric value read as text.
func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid numeric value %q: %w", *s, err)
	}
	return &d, nil
}

// mapStorageError translates driver errors into the domain error taxonomy so
// the application layer can decide on retries without importing pgx.
func mapStorageError(op string, err error) error {
	var domainErr *shared.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case IsNoRows(err):
		return shared.ErrBulletinNotFound
	case IsUniqueViolation(err):
		return shared.WrapError("postgres", op, shared.ErrUniqueViolation, "unique constraint violated", err)
	case IsSerializationFailure(err):
		return shared.WrapError("postgres", op, shared.ErrTransactionConflict, "transaction conflict", err)
	case IsConnectionFailure(err):
		return shared.WrapError("postgres", op, shared.ErrTransient, "connection failure", err)
	default:
		return fmt.Errorf("postgres: %s: %w", op, err)
	}
}

// Ensure interfaces are implemented
var _ bulletin.Repository = (*BulletinRepository)(nil)

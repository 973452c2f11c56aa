// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system: computing
// bulletins, moving them through their lifecycle, and rebuilding classroom
// rankings.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/grading"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
	"github.com/ecole-hub/ecole-bulletins/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE BULLETIN COMMAND
// Re-derives the full aggregation state of one student's bulletin from the
// score store, then rebuilds the classroom ranking.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeBulletinCommand identifies the bulletin to (re)compute. The school
// year and term are always explicit; there is no ambient "current term".
type RecomputeBulletinCommand struct {
	// StudentID is the internal ID of the student.
	StudentID string `validate:"required"`

	// ClassroomID is the classroom the student is enrolled in.
	ClassroomID string `validate:"required"`

	// SchoolYear in "YYYY-YYYY" form.
	SchoolYear string `validate:"required"`

	// Term is the trimester, 1 to 3.
	Term int `validate:"required,min=1,max=3"`

	// Force skips the evaluation completeness pre-check.
	Force bool

	// Actor is the authenticated user running the command.
	Actor shared.Actor `validate:"-"`
}

// Validate validates the command.
func (c RecomputeBulletinCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return asValidationError(err)
	}
	if _, err := shared.NewSchoolYear(c.SchoolYear); err != nil {
		return err
	}
	if _, err := shared.NewTerm(c.Term); err != nil {
		return err
	}
	return nil
}

// RecomputeBulletinResult contains the outcome of one recompute.
type RecomputeBulletinResult struct {
	// BulletinID is the ID of the computed bulletin.
	BulletinID string

	// Created indicates a bulletin was created rather than updated.
	Created bool

	// OverallAverage is the rounded overall average, nil when the student
	// has no scored subject.
	OverallAverage *decimal.Decimal

	// Mention and Decision as classified from the average.
	Mention  string
	Decision string

	// Rank within the classroom, nil when excluded from ranking.
	Rank *int

	// ClassroomSize is the evaluated cohort size after the ranking pass.
	ClassroomSize int

	// SubjectCount is the number of breakdown lines.
	SubjectCount int

	// ComputedAt is when the recompute finished.
	ComputedAt time.Time
}

// RecomputeBulletinHandlerConfig contains comment policy for recomputes.
type RecomputeBulletinHandlerConfig struct {
	// CarryComments keeps teacher appreciations across recomputes.
	CarryComments bool

	// AutoComment fills empty general comments with a generated
	// appreciation.
	AutoComment bool
}

// RecomputeBulletinHandler handles the RecomputeBulletinCommand.
type RecomputeBulletinHandler struct {
	bulletins    bulletin.Repository
	scores       bulletin.ScoreStore
	rankingCache ranking.Cache
	audit        shared.AuditSink
	log          *logger.Logger
	config       RecomputeBulletinHandlerConfig
}

// NewRecomputeBulletinHandler creates a new RecomputeBulletinHandler.
func NewRecomputeBulletinHandler(
	bulletins bulletin.Repository,
	scores bulletin.ScoreStore,
	rankingCache ranking.Cache,
	audit shared.AuditSink,
	log *logger.Logger,
	config RecomputeBulletinHandlerConfig,
) *RecomputeBulletinHandler {
	if audit == nil {
		audit = shared.NopAuditSink{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RecomputeBulletinHandler{
		bulletins:    bulletins,
		scores:       scores,
		rankingCache: rankingCache,
		audit:        audit,
		log:          log.With(logger.Component("recompute_bulletin")),
		config:       config,
	}
}

// Handle executes the recompute command.
func (h *RecomputeBulletinHandler) Handle(ctx context.Context, cmd RecomputeBulletinCommand) (*RecomputeBulletinResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	studentID := shared.StudentID(cmd.StudentID)
	classroomID := shared.ClassroomID(cmd.ClassroomID)
	year := shared.SchoolYear(cmd.SchoolYear)
	term := shared.Term(cmd.Term)

	if !cmd.Actor.IsAdmin() && !cmd.Actor.IsHomeroomOf(classroomID) {
		return nil, shared.ErrNotHomeroomTeacher
	}

	if !cmd.Force {
		missing, err := h.scores.MissingEvaluations(ctx, studentID, classroomID, year, term)
		if err != nil {
			return nil, fmt.Errorf("recompute_bulletin: completeness check failed: %w", err)
		}
		if len(missing) > 0 {
			return nil, incompleteDataError(missing)
		}
	}

	b, created, err := h.bulletins.GetOrCreate(ctx, studentID, classroomID, year, term, cmd.Actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("recompute_bulletin: failed to load bulletin: %w", err)
	}

	student, err := h.scores.Student(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("recompute_bulletin: failed to load student: %w", err)
	}

	subjects, err := h.scores.ClassroomSubjects(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("recompute_bulletin: failed to load subjects: %w", err)
	}

	scores, err := h.scores.Scores(ctx, studentID, year, term)
	if err != nil {
		return nil, fmt.Errorf("recompute_bulletin: failed to load scores: %w", err)
	}

	policy := computationPolicy{
		carryComments: h.config.CarryComments,
		autoComment:   h.config.AutoComment,
	}
	computation, err := buildComputation(subjects, scores, b.Lines, student.DisplayName, policy)
	if err != nil {
		return nil, fmt.Errorf("recompute_bulletin: aggregation failed: %w", err)
	}

	if err := b.ApplyComputation(computation); err != nil {
		return nil, err
	}

	if err := h.bulletins.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("recompute_bulletin: failed to save bulletin: %w", err)
	}

	table, err := rebuildClassroomRanking(ctx, h.bulletins, h.rankingCache, h.log, classroomID, year, term)
	if err != nil {
		return nil, err
	}

	h.recordEvents(ctx, b, created, cmd.Actor, table)

	result := &RecomputeBulletinResult{
		BulletinID:    b.ID.String(),
		Created:       created,
		Mention:       string(b.Mention),
		Decision:      string(b.Decision),
		ClassroomSize: table.Size(),
		SubjectCount:  len(b.Lines),
		ComputedAt:    b.UpdatedAt,
	}
	if b.OverallAverage != nil {
		avg := *b.OverallAverage
		result.OverallAverage = &avg
	}
	if rank, ok := table.Result(studentID); ok {
		r := rank.Int()
		result.Rank = &r
	}
	return result, nil
}

// recordEvents emits the audit trail for one recompute. Fire-and-forget.
func (h *RecomputeBulletinHandler) recordEvents(ctx context.Context, b *bulletin.Bulletin, created bool, actor shared.Actor, table *ranking.Table) {
	eventType := shared.EventBulletinRecomputed
	if created {
		eventType = shared.EventBulletinCreated
	}
	h.audit.Record(ctx, shared.BulletinEvent{
		BaseEvent:   shared.NewBaseEvent(eventType, b.ID.String(), actor),
		StudentID:   b.StudentID.String(),
		ClassroomID: b.ClassroomID.String(),
		SchoolYear:  b.SchoolYear.String(),
		Term:        b.Term.Int(),
		Status:      b.Status.String(),
	})
	h.audit.Record(ctx, shared.RankingRebuiltEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventRankingRebuilt, b.ClassroomID.String(), actor),
		ClassroomID:   b.ClassroomID.String(),
		SchoolYear:    b.SchoolYear.String(),
		Term:          b.Term.Int(),
		RankedCount:   len(table.Ranked()),
		ClassroomSize: table.Size(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// computationPolicy toggles the optional parts of the aggregation.
type computationPolicy struct {
	// carryComments keeps teacher appreciations from the previous lines.
	carryComments bool

	// autoComment generates a default general appreciation.
	autoComment bool
}

// buildComputation reduces a student's raw scores into the full derived state
// of a bulletin: one breakdown line per classroom subject, the overall
// average, the mention/decision pair and the generated appreciation.
//
// Subject appreciations entered by teachers live on the previous lines; when
// the policy carries comments they are copied over by subject so a recompute
// never erases free text.
func buildComputation(
	subjects []bulletin.Subject,
	scores []grading.ScoredEvaluation,
	previousLines []bulletin.SubjectLine,
	studentDisplayName string,
	policy computationPolicy,
) (bulletin.Computation, error) {
	bySubject := make(map[shared.SubjectID][]grading.ScoredEvaluation, len(subjects))
	for _, sc := range scores {
		bySubject[sc.SubjectID] = append(bySubject[sc.SubjectID], sc)
	}
	previousAppreciations := make(map[shared.SubjectID]string, len(previousLines))
	if policy.carryComments {
		for _, line := range previousLines {
			if line.Appreciation != "" {
				previousAppreciations[line.SubjectID] = line.Appreciation
			}
		}
	}

	results := make([]grading.SubjectResult, 0, len(subjects))
	lines := make([]bulletin.SubjectLine, 0, len(subjects))
	for _, subject := range subjects {
		average, hasData, err := grading.SubjectAverage(bySubject[subject.ID])
		if err != nil {
			return bulletin.Computation{}, fmt.Errorf("subject %s: %w", subject.ID, err)
		}
		results = append(results, grading.SubjectResult{
			SubjectID:   subject.ID,
			Average:     average,
			HasData:     hasData,
			Coefficient: subject.Coefficient,
		})

		line := bulletin.SubjectLine{
			SubjectID:    subject.ID,
			Coefficient:  subject.Coefficient,
			Appreciation: previousAppreciations[subject.ID],
		}
		if hasData {
			rounded := grading.RoundGrade(average)
			line.Average = &rounded
		}
		lines = append(lines, line)
	}

	overall, hasOverall, err := grading.OverallAverage(results)
	if err != nil {
		return bulletin.Computation{}, err
	}
	failures := grading.FailureCount(results)
	mention, decision := grading.Classify(overall, hasOverall, failures)

	generated := ""
	if policy.autoComment {
		generated = grading.DefaultAppreciation(studentDisplayName, overall, hasOverall, failures)
	}

	return bulletin.Computation{
		OverallAverage:   overall,
		HasAverage:       hasOverall,
		FailureCount:     failures,
		Mention:          mention,
		Decision:         decision,
		Lines:            lines,
		GeneratedComment: generated,
	}, nil
}

// incompleteDataError builds the validation error listing what is missing.
func incompleteDataError(missing []bulletin.MissingEvaluation) error {
	names := make([]string, 0, len(missing))
	seen := make(map[string]bool, len(missing))
	for _, m := range missing {
		if !seen[m.SubjectName] {
			seen[m.SubjectName] = true
			names = append(names, m.SubjectName)
		}
	}
	return shared.NewDomainError("command", "Recompute", shared.ErrInvalidInput,
		fmt.Sprintf("evaluation data incomplete for: %s (use force to override)", strings.Join(names, ", ")))
}

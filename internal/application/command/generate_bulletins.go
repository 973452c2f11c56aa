package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/ranking"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
	"github.com/ecole-hub/ecole-bulletins/pkg/logger"
	"github.com/ecole-hub/ecole-bulletins/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE BULLETINS COMMAND
// Batch-generates the bulletins of a whole term: every classroom, every
// enrolled student, one isolated unit of work per student. One failing
// student never aborts the run; the summary reports every outcome.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateBulletinsCommand triggers bulk generation for one term.
type GenerateBulletinsCommand struct {
	// SchoolYear in "YYYY-YYYY" form.
	SchoolYear string `validate:"required"`

	// Term is the trimester, 1 to 3.
	Term int `validate:"required,min=1,max=3"`

	// ClassroomName restricts the run to one classroom by exact name.
	// Empty means every classroom of the year.
	ClassroomName string

	// Force generates bulletins even when evaluation data is incomplete.
	Force bool

	// Actor is the authenticated user running the command.
	Actor shared.Actor `validate:"-"`
}

// Validate validates the command.
func (c GenerateBulletinsCommand) Validate() error {
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

// GenerationError describes one failed or rejected unit of the run.
// StudentID is empty for classroom-level problems.
type GenerationError struct {
	ClassroomID string
	StudentID   string
	Reason      string
}

// GenerateBulletinsSummary is the report of one bulk run. It is a report,
// not an error: a run with per-student failures still completes.
type GenerateBulletinsSummary struct {
	// Classrooms is the number of classrooms processed.
	Classrooms int

	// Created is the number of bulletins created from scratch.
	Created int

	// Updated is the number of existing bulletins recomputed.
	Updated int

	// Skipped is the number of students left untouched (incomplete data,
	// published bulletin).
	Skipped int

	// Errors lists every isolated failure.
	Errors []GenerationError

	// StartedAt / CompletedAt / Duration time the whole run.
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// HasErrors returns true when at least one unit failed.
func (s *GenerateBulletinsSummary) HasErrors() bool {
	return len(s.Errors) > 0
}

// GenerateBulletinsHandlerConfig contains run policy for bulk generation.
type GenerateBulletinsHandlerConfig struct {
	// MaxAttempts is the retry budget for one student's generation unit.
	// Zero or negative means the default of 3.
	MaxAttempts int

	// AutoSubmit moves freshly computed drafts to PENDING so homeroom
	// teachers validate instead of submitting by hand.
	AutoSubmit bool

	// CarryComments keeps teacher appreciations across recomputes.
	CarryComments bool

	// AutoComment fills empty general comments with a generated
	// appreciation.
	AutoComment bool
}

// GenerateBulletinsHandler handles the GenerateBulletinsCommand.
type GenerateBulletinsHandler struct {
	bulletins    bulletin.Repository
	scores       bulletin.ScoreStore
	rankingCache ranking.Cache
	audit        shared.AuditSink
	log          *logger.Logger
	retrier      *retry.Retrier
	config       GenerateBulletinsHandlerConfig
}

// NewGenerateBulletinsHandler creates a new GenerateBulletinsHandler.
func NewGenerateBulletinsHandler(
	bulletins bulletin.Repository,
	scores bulletin.ScoreStore,
	rankingCache ranking.Cache,
	audit shared.AuditSink,
	log *logger.Logger,
	config GenerateBulletinsHandlerConfig,
) *GenerateBulletinsHandler {
	if audit == nil {
		audit = shared.NopAuditSink{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &GenerateBulletinsHandler{
		bulletins:    bulletins,
		scores:       scores,
		rankingCache: rankingCache,
		audit:        audit,
		log:          log.With(logger.Component("generate_bulletins")),
		retrier:      retry.GenerationRetrier(config.MaxAttempts, shared.IsRetryable),
		config:       config,
	}
}

// Handle executes the bulk generation command.
func (h *GenerateBulletinsHandler) Handle(ctx context.Context, cmd GenerateBulletinsCommand) (*GenerateBulletinsSummary, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	year := shared.SchoolYear(cmd.SchoolYear)
	term := shared.Term(cmd.Term)

	classrooms, err := h.scores.Classrooms(ctx, year, cmd.ClassroomName)
	if err != nil {
		return nil, fmt.Errorf("generate_bulletins: failed to list classrooms: %w", err)
	}
	if cmd.ClassroomName != "" && len(classrooms) == 0 {
		return nil, shared.ErrClassroomNotFound
	}

	summary := &GenerateBulletinsSummary{StartedAt: time.Now().UTC()}

	for _, classroom := range classrooms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.processClassroom(ctx, classroom, year, term, cmd, summary)
	}

	summary.CompletedAt = time.Now().UTC()
	summary.Duration = summary.CompletedAt.Sub(summary.StartedAt)

	h.audit.Record(ctx, shared.GenerationFinishedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventGenerationFinished, year.String(), cmd.Actor),
		SchoolYear: year.String(),
		Term:       term.Int(),
		Created:    summary.Created,
		Updated:    summary.Updated,
		Skipped:    summary.Skipped,
		Errors:     len(summary.Errors),
	})

	h.log.Info("bulk generation finished",
		logger.String("school_year", year.String()),
		logger.String("term", term.String()),
		logger.Int("classrooms", summary.Classrooms),
		logger.Int("created", summary.Created),
		logger.Int("updated", summary.Updated),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errors", len(summary.Errors)),
		logger.Duration("duration", summary.Duration))

	return summary, nil
}

// processClassroom runs generation for every student of one classroom, then
// rebuilds the classroom ranking once.
func (h *GenerateBulletinsHandler) processClassroom(
	ctx context.Context,
	classroom bulletin.Classroom,
	year shared.SchoolYear,
	term shared.Term,
	cmd GenerateBulletinsCommand,
	summary *GenerateBulletinsSummary,
) {
	log := h.log.With(logger.String("classroom", classroom.Name))

	if !cmd.Actor.IsAdmin() && !cmd.Actor.IsHomeroomOf(classroom.ID) {
		summary.Errors = append(summary.Errors, GenerationError{
			ClassroomID: classroom.ID.String(),
			Reason:      "actor is not the homeroom teacher of this classroom",
		})
		return
	}

	if classroom.HomeroomTeacher == nil {
		log.Warn("classroom skipped: no homeroom teacher assigned")
		summary.Errors = append(summary.Errors, GenerationError{
			ClassroomID: classroom.ID.String(),
			Reason:      "no homeroom teacher assigned",
		})
		return
	}

	students, err := h.scores.ClassroomStudents(ctx, classroom.ID, year)
	if err != nil {
		summary.Errors = append(summary.Errors, GenerationError{
			ClassroomID: classroom.ID.String(),
			Reason:      fmt.Sprintf("failed to list students: %v", err),
		})
		return
	}

	summary.Classrooms++
	changed := false

	for _, student := range students {
		var outcome studentOutcome
		err := h.retrier.Do(ctx, func(ctx context.Context) error {
			o, err := h.processStudent(ctx, classroom, student, year, term, cmd)
			if err != nil {
				return err
			}
			outcome = o
			return nil
		})
		if err != nil {
			log.Error("student generation failed",
				logger.StudentID(student.ID.String()),
				logger.Err(err))
			summary.Errors = append(summary.Errors, GenerationError{
				ClassroomID: classroom.ID.String(),
				StudentID:   student.ID.String(),
				Reason:      err.Error(),
			})
			continue
		}

		switch outcome.kind {
		case outcomeCreated:
			summary.Created++
			changed = true
		case outcomeUpdated:
			summary.Updated++
			changed = true
		case outcomeSkipped:
			summary.Skipped++
			log.Debug("student skipped",
				logger.StudentID(student.ID.String()),
				logger.String("reason", outcome.reason))
		}
	}

	if !changed {
		return
	}

	table, err := rebuildClassroomRanking(ctx, h.bulletins, h.rankingCache, log, classroom.ID, year, term)
	if err != nil {
		summary.Errors = append(summary.Errors, GenerationError{
			ClassroomID: classroom.ID.String(),
			Reason:      fmt.Sprintf("ranking pass failed: %v", err),
		})
		return
	}

	h.audit.Record(ctx, shared.RankingRebuiltEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventRankingRebuilt, classroom.ID.String(), cmd.Actor),
		ClassroomID:   classroom.ID.String(),
		SchoolYear:    year.String(),
		Term:          term.Int(),
		RankedCount:   len(table.Ranked()),
		ClassroomSize: table.Size(),
	})
}

// outcomeKind classifies what happened to one student during the run.
type outcomeKind int

const (
	outcomeCreated outcomeKind = iota
	outcomeUpdated
	outcomeSkipped
)

// studentOutcome is the per-student result of one generation unit.
type studentOutcome struct {
	kind   outcomeKind
	reason string
}

// processStudent generates or refreshes one student's bulletin. It is the
// isolated unit of the run: retried on transient storage errors, and its
// failure is reported without touching the rest of the classroom.
func (h *GenerateBulletinsHandler) processStudent(
	ctx context.Context,
	classroom bulletin.Classroom,
	student bulletin.Student,
	year shared.SchoolYear,
	term shared.Term,
	cmd GenerateBulletinsCommand,
) (studentOutcome, error) {
	if !cmd.Force {
		missing, err := h.scores.MissingEvaluations(ctx, student.ID, classroom.ID, year, term)
		if err != nil {
			return studentOutcome{}, fmt.Errorf("completeness check failed: %w", err)
		}
		if len(missing) > 0 {
			return studentOutcome{kind: outcomeSkipped, reason: "incomplete evaluation data"}, nil
		}
	}

	b, created, err := h.bulletins.GetOrCreate(ctx, student.ID, classroom.ID, year, term, cmd.Actor.UserID)
	if err != nil {
		return studentOutcome{}, fmt.Errorf("failed to load bulletin: %w", err)
	}

	if !b.Status.AllowsRecompute() {
		return studentOutcome{kind: outcomeSkipped, reason: "bulletin is " + b.Status.String()}, nil
	}

	subjects, err := h.scores.ClassroomSubjects(ctx, classroom.ID)
	if err != nil {
		return studentOutcome{}, fmt.Errorf("failed to load subjects: %w", err)
	}

	scores, err := h.scores.Scores(ctx, student.ID, year, term)
	if err != nil {
		return studentOutcome{}, fmt.Errorf("failed to load scores: %w", err)
	}

	policy := computationPolicy{
		carryComments: h.config.CarryComments,
		autoComment:   h.config.AutoComment,
	}
	computation, err := buildComputation(subjects, scores, b.Lines, student.DisplayName, policy)
	if err != nil {
		return studentOutcome{}, fmt.Errorf("aggregation failed: %w", err)
	}

	if err := b.ApplyComputation(computation); err != nil {
		return studentOutcome{}, err
	}

	if h.config.AutoSubmit && b.Status == bulletin.StatusDraft {
		if err := b.Submit(cmd.Actor); err != nil {
			return studentOutcome{}, err
		}
	}

	if err := h.bulletins.Save(ctx, b); err != nil {
		return studentOutcome{}, fmt.Errorf("failed to save bulletin: %w", err)
	}

	if created {
		return studentOutcome{kind: outcomeCreated}, nil
	}
	return studentOutcome{kind: outcomeUpdated}, nil
}

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT / VALIDATE BULLETIN COMMANDS
// Lifecycle transitions on a single bulletin. Authorization lives on the
// aggregate; the handlers load, transition, save and audit.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitBulletinCommand moves a DRAFT bulletin to PENDING validation.
type SubmitBulletinCommand struct {
	// BulletinID identifies the bulletin.
	BulletinID string `validate:"required"`

	// Actor is the authenticated user running the command.
	Actor shared.Actor `validate:"-"`
}

// Validate validates the command.
func (c SubmitBulletinCommand) Validate() error {
	return asValidationError(validate.Struct(c))
}

// SubmitBulletinResult contains the outcome of a submit.
type SubmitBulletinResult struct {
	BulletinID string
	Status     string
	UpdatedAt  time.Time
}

// SubmitBulletinHandler handles the SubmitBulletinCommand.
type SubmitBulletinHandler struct {
	bulletins bulletin.Repository
	audit     shared.AuditSink
}

// NewSubmitBulletinHandler creates a new SubmitBulletinHandler.
func NewSubmitBulletinHandler(bulletins bulletin.Repository, audit shared.AuditSink) *SubmitBulletinHandler {
	if audit == nil {
		audit = shared.NopAuditSink{}
	}
	return &SubmitBulletinHandler{bulletins: bulletins, audit: audit}
}

// Handle executes the submit command.
func (h *SubmitBulletinHandler) Handle(ctx context.Context, cmd SubmitBulletinCommand) (*SubmitBulletinResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b, err := h.bulletins.Get(ctx, shared.BulletinID(cmd.BulletinID))
	if err != nil {
		return nil, fmt.Errorf("submit_bulletin: failed to load bulletin: %w", err)
	}

	if err := b.Submit(cmd.Actor); err != nil {
		return nil, err
	}

	if err := h.bulletins.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("submit_bulletin: failed to save bulletin: %w", err)
	}

	h.audit.Record(ctx, lifecycleEvent(shared.EventBulletinSubmitted, b, cmd.Actor))

	return &SubmitBulletinResult{
		BulletinID: b.ID.String(),
		Status:     b.Status.String(),
		UpdatedAt:  b.UpdatedAt,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATE BULLETIN
// ══════════════════════════════════════════════════════════════════════════════

// ValidateBulletinCommand marks a bulletin as validated by the homeroom
// teacher or an admin.
type ValidateBulletinCommand struct {
	// BulletinID identifies the bulletin.
	BulletinID string `validate:"required"`

	// Actor is the authenticated user running the command.
	Actor shared.Actor `validate:"-"`
}

// Validate validates the command.
func (c ValidateBulletinCommand) Validate() error {
	return asValidationError(validate.Struct(c))
}

// ValidateBulletinResult contains the outcome of a validation.
type ValidateBulletinResult struct {
	BulletinID  string
	Status      string
	ValidatedBy string
	ValidatedAt time.Time
}

// ValidateBulletinHandler handles the ValidateBulletinCommand.
type ValidateBulletinHandler struct {
	bulletins bulletin.Repository
	audit     shared.AuditSink
}

// NewValidateBulletinHandler creates a new ValidateBulletinHandler.
func NewValidateBulletinHandler(bulletins bulletin.Repository, audit shared.AuditSink) *ValidateBulletinHandler {
	if audit == nil {
		audit = shared.NopAuditSink{}
	}
	return &ValidateBulletinHandler{bulletins: bulletins, audit: audit}
}

// Handle executes the validate command.
func (h *ValidateBulletinHandler) Handle(ctx context.Context, cmd ValidateBulletinCommand) (*ValidateBulletinResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b, err := h.bulletins.Get(ctx, shared.BulletinID(cmd.BulletinID))
	if err != nil {
		return nil, fmt.Errorf("validate_bulletin: failed to load bulletin: %w", err)
	}

	if err := b.Validate(cmd.Actor); err != nil {
		return nil, err
	}

	if err := h.bulletins.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("validate_bulletin: failed to save bulletin: %w", err)
	}

	h.audit.Record(ctx, lifecycleEvent(shared.EventBulletinValidated, b, cmd.Actor))

	return &ValidateBulletinResult{
		BulletinID:  b.ID.String(),
		Status:      b.Status.String(),
		ValidatedBy: b.ValidatedBy.String(),
		ValidatedAt: *b.ValidatedAt,
	}, nil
}

// lifecycleEvent builds the audit event for one bulletin transition.
func lifecycleEvent(eventType shared.EventType, b *bulletin.Bulletin, actor shared.Actor) shared.BulletinEvent {
	return shared.BulletinEvent{
		BaseEvent:   shared.NewBaseEvent(eventType, b.ID.String(), actor),
		StudentID:   b.StudentID.String(),
		ClassroomID: b.ClassroomID.String(),
		SchoolYear:  b.SchoolYear.String(),
		Term:        b.Term.Int(),
		Status:      b.Status.String(),
	}
}

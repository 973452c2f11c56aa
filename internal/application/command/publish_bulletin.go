package command

import (
	"context"
	"fmt"
	"time"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/bulletin"
	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISH BULLETIN COMMAND
// Makes a bulletin visible to the student and their guardians. After this
// transition the bulletin is immutable for recomputes.
// ══════════════════════════════════════════════════════════════════════════════

// PublishBulletinCommand publishes one bulletin.
type PublishBulletinCommand struct {
	// BulletinID identifies the bulletin.
	BulletinID string `validate:"required"`

	// Actor is the authenticated user running the command.
	Actor shared.Actor `validate:"-"`
}

// Validate validates the command.
func (c PublishBulletinCommand) Validate() error {
	return asValidationError(validate.Struct(c))
}

// PublishBulletinResult contains the outcome of a publish.
type PublishBulletinResult struct {
	BulletinID  string
	Status      string
	PublishedAt time.Time
}

// PublishBulletinHandlerConfig contains workflow policy for publishing.
type PublishBulletinHandlerConfig struct {
	// RequireValidation forbids publishing a bulletin that has not been
	// validated first. Off by default: small schools publish straight
	// from draft.
	RequireValidation bool
}

// PublishBulletinHandler handles the PublishBulletinCommand.
type PublishBulletinHandler struct {
	bulletins bulletin.Repository
	audit     shared.AuditSink
	config    PublishBulletinHandlerConfig
}

// NewPublishBulletinHandler creates a new PublishBulletinHandler.
func NewPublishBulletinHandler(
	bulletins bulletin.Repository,
	audit shared.AuditSink,
	config PublishBulletinHandlerConfig,
) *PublishBulletinHandler {
	if audit == nil {
		audit = shared.NopAuditSink{}
	}
	return &PublishBulletinHandler{bulletins: bulletins, audit: audit, config: config}
}

// Handle executes the publish command.
func (h *PublishBulletinHandler) Handle(ctx context.Context, cmd PublishBulletinCommand) (*PublishBulletinResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b, err := h.bulletins.Get(ctx, shared.BulletinID(cmd.BulletinID))
	if err != nil {
		return nil, fmt.Errorf("publish_bulletin: failed to load bulletin: %w", err)
	}

	if h.config.RequireValidation && b.Status != bulletin.StatusValidated {
		return nil, shared.NewDomainError("bulletin", "Publish", shared.ErrStateTransition,
			"publishing requires a validated bulletin, current status "+b.Status.String())
	}

	if err := b.Publish(cmd.Actor); err != nil {
		return nil, err
	}

	if err := h.bulletins.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("publish_bulletin: failed to save bulletin: %w", err)
	}

	h.audit.Record(ctx, lifecycleEvent(shared.EventBulletinPublished, b, cmd.Actor))

	return &PublishBulletinResult{
		BulletinID:  b.ID.String(),
		Status:      b.Status.String(),
		PublishedAt: *b.PublishedAt,
	}, nil
}

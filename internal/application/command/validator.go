package command

import (
	"github.com/go-playground/validator/v10"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
)

// validate is the shared struct validator for command inputs.
// Domain rules (year format, term range) are still checked by the value
// object constructors; the tags only reject obviously malformed input early.
var validate = validator.New(validator.WithRequiredStructEnabled())

// asValidationError converts validator failures into the domain's
// ValidationError so callers can match shared.ErrValidation.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return shared.WrapError("command", "Validate", shared.ErrValidation, "invalid command", err)
	}
	fields := make([]shared.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, shared.FieldError{
			Field:   fe.Field(),
			Message: "failed on rule " + fe.Tag(),
		})
	}
	return shared.NewValidationError(fields...)
}

package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pharmstock/internal/types"
)

// Validator wraps go-playground/validator and translates its errors into
// AppError values with per-field details.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator. Field names in error details come
// from the json struct tag rather than the Go field name.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates the given struct and returns an AppError carrying
// per-field failure details, or nil when the struct is valid.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("validator returned non-validation error",
			slog.String("error", err.Error()),
		)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	details := make(map[string]any, len(verrs))
	missing := false
	for _, fe := range verrs {
		details[fe.Field()] = describeFieldError(fe)
		if fe.Tag() == "required" {
			missing = true
		}
	}

	code := types.ErrCodeValidationInvalidField
	message := "one or more fields are invalid"
	if missing {
		code = types.ErrCodeValidationMissingField
		message = "one or more required fields are missing"
	}

	return types.NewAppErrorWithDetails(code, message, err, details)
}

// describeFieldError renders a short human-readable reason for a single
// field failure.
func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "failed validation rule: " + fe.Tag()
	}
}

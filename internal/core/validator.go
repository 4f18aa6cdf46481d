package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"skycast/internal/types"
)

// Validator wraps go-playground/validator and maps failures onto the
// validation_* error codes. Field names in messages use their json tags.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator that reports json field names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns the first failure as an AppError.
// Failures on "lat"/"lon" carry the coordinate-specific codes.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		if v.logger != nil {
			v.logger.Error("struct validation failed unexpectedly", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := fieldErrs[0]
	field := fe.Field()

	code := types.ErrCodeValidationMissingField
	var msg string
	switch {
	case fe.Tag() == "required":
		msg = fmt.Sprintf("%s is required", field)
	case field == "lat":
		code = types.ErrCodeValidationInvalidLat
		msg = fmt.Sprintf("lat must be between %v and %v", types.MinLat, types.MaxLat)
	case field == "lon":
		code = types.ErrCodeValidationInvalidLon
		msg = fmt.Sprintf("lon must be between %v and %v", types.MinLon, types.MaxLon)
	default:
		msg = fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}

	return types.NewAppError(code, msg, err).WithDetails(map[string]any{"field": field})
}

package contextutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the validate tags of v and converts the first failures into
// a single VALIDATION_FAILED or MISSING_REQUIRED_FIELD AppError.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewAppErrorWithCause(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", err.Error(), err)
	}

	fields := make([]string, 0, len(verrs))
	missing := true
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		if fe.Tag() != "required" {
			missing = false
		}
	}

	if missing {
		return NewAppErrorWithCause(ErrorCodeMissingRequired, SeverityWarn, "Missing required field", strings.Join(fields, ", "), err)
	}
	return NewAppErrorWithCause(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", strings.Join(fields, ", "), err)
}

// IsValidUUID reports whether s is a canonical UUID string
func IsValidUUID(s string) bool {
	return validate.Var(s, "uuid") == nil
}

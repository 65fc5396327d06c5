// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hobby-university/learner-hub/internal/domain/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validationError turns validator output into an ErrInvalidInput domain error
// listing the offending fields.
func validationError(op string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.WrapError("command", op, shared.ErrInvalidInput, err.Error(), err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", toSnake(fe.Field()), fe.Tag()))
	}
	return shared.WrapError("command", op, shared.ErrInvalidInput, strings.Join(parts, "; "), err)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Package validate checks the shape of individual request fields before any
// business logic runs. It answers "is this well formed", never "is this
// correct".
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
)

// Field names understood by ValidateFormat.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldOTP      = "otp"
	FieldCode     = "code"
	FieldUserID   = "userId"
	FieldName     = "name"
)

// ErrUnknownField is returned for a field name ValidateFormat does not know.
var ErrUnknownField = errors.New("validate: unknown field")

// FieldError describes why a single field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	engineOnce sync.Once
	engine     *validator.Validate

	// otp codes are exactly four or six digits
	otpPattern = compile(`^(\d{4}|\d{6})$`)
	// verification input is deliberately permissive
	codePattern = compile(`^\d{4,6}$`)
)

func compile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.ECMAScript)
	re.MatchTimeout = 20 * time.Millisecond
	return re
}

func tags() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New()
	})
	return engine
}

// ValidateFormat checks value against the rules for field. It returns nil
// or a *FieldError.
func ValidateFormat(field, value string) error {
	switch field {
	case FieldEmail:
		if strings.TrimSpace(value) == "" {
			return required(field)
		}
		if err := tags().Var(value, "email,max=254"); err != nil {
			return &FieldError{Field: field, Message: "must be a valid email address"}
		}
	case FieldPassword:
		if value == "" {
			return required(field)
		}
		if utf8.RuneCountInString(value) > 128 {
			return &FieldError{Field: field, Message: "must be at most 128 characters"}
		}
	case FieldOTP:
		if value == "" {
			return required(field)
		}
		if ok, _ := otpPattern.MatchString(value); !ok {
			return &FieldError{Field: field, Message: "must be 4 or 6 digits"}
		}
	case FieldCode:
		if value == "" {
			return required(field)
		}
		if ok, _ := codePattern.MatchString(value); !ok {
			return &FieldError{Field: field, Message: "must be 4 to 6 digits"}
		}
	case FieldUserID:
		if strings.TrimSpace(value) == "" {
			return required(field)
		}
		if len(value) > 128 || strings.IndexFunc(value, unicode.IsSpace) >= 0 || strings.IndexFunc(value, unicode.IsControl) >= 0 {
			return &FieldError{Field: field, Message: "is not a valid identifier"}
		}
	case FieldName:
		if strings.TrimSpace(value) == "" {
			return required(field)
		}
		if utf8.RuneCountInString(value) > 100 || strings.IndexFunc(value, unicode.IsControl) >= 0 {
			return &FieldError{Field: field, Message: "is not a valid name"}
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// All validates several fields and returns every failure, in order.
func All(pairs ...[2]string) []*FieldError {
	var out []*FieldError
	for _, p := range pairs {
		err := ValidateFormat(p[0], p[1])
		var fe *FieldError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

func required(field string) *FieldError {
	return &FieldError{Field: field, Message: "is required"}
}

package dualAuth

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/MrEthical07/dualAuth/password"
)

var (
	// ErrEngineNotReady is returned when a nil or closed Engine is used.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidInput is returned for malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is the single answer for unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginThrottled is returned when the optional login throttle trips.
	ErrLoginThrottled = errors.New("too many login attempts")
	// ErrSessionActive is returned when the account already has a live session.
	ErrSessionActive = errors.New("session already active")
	// ErrInvalidCode is returned for a wrong or expired one-time code.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrUserNotFound is returned by repositories and by lookups that may reveal absence.
	ErrUserNotFound = errors.New("user not found")
	ErrTokenMissing   = errors.New("token missing")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
	// ErrSessionInvalidated means the token is valid but its session is gone or superseded.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrUserGone means the token's user no longer exists.
	ErrUserGone = errors.New("user no longer exists")
	// ErrForbidden is returned when a non-admin calls an admin operation.
	ErrForbidden = errors.New("forbidden")
	// ErrPasswordPolicy is returned when a new password fails the strength policy.
	ErrPasswordPolicy = errors.New("password does not meet policy")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrResetTokenInvalid covers expired, forged and wrong-purpose reset tokens.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrAccountExists is returned by AccountCreator implementations on duplicates.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountCreationDisabled is returned when no AccountCreator is configured.
	ErrAccountCreationDisabled = errors.New("account creation disabled")
	// ErrMailerUnavailable is returned when no Mailer is configured.
	ErrMailerUnavailable = errors.New("mailer unavailable")
	// ErrInternal marks repository, store and token-library failures.
	ErrInternal = errors.New("internal error")
)

// Kind groups errors by how a transport should answer them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindConflict
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HTTPStatus is the default status for the kind. Some endpoints deliberately
// answer authentication failures differently (login replies 200).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindOf classifies err. Anything wrapping ErrInternal, and anything
// unrecognised, is KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInternal), errors.Is(err, ErrEngineNotReady):
		return KindInternal
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrPasswordReuse):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrTokenMissing), errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrSessionInvalidated), errors.Is(err, ErrUserGone),
		errors.Is(err, ErrResetTokenInvalid):
		return KindAuthentication
	case errors.Is(err, ErrForbidden):
		return KindAuthorization
	case errors.Is(err, ErrSessionActive), errors.Is(err, ErrAccountExists):
		return KindConflict
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrLoginThrottled):
		return KindRateLimited
	default:
		return KindInternal
	}
}

// SessionActiveError carries the time left on the blocking session.
type SessionActiveError struct {
	Remaining time.Duration
}

func (e *SessionActiveError) Error() string {
	return fmt.Sprintf("%s: %d minutes remaining", ErrSessionActive.Error(), e.RemainingMinutes())
}

func (e *SessionActiveError) Is(target error) bool { return target == ErrSessionActive }

// RemainingMinutes rounds up so a live session never reports zero.
func (e *SessionActiveError) RemainingMinutes() int {
	return minutesCeil(e.Remaining)
}

// CodeRejectedError is a failed verification annotated with which code
// format the caller most likely needed.
type CodeRejectedError struct {
	Expected LoginState
	Hint     string
}

func (e *CodeRejectedError) Error() string {
	return ErrInvalidCode.Error() + ": " + e.Hint
}

func (e *CodeRejectedError) Is(target error) bool { return target == ErrInvalidCode }

// PasswordPolicyError carries the assessment that rejected a password.
type PasswordPolicyError struct {
	Assessment password.Assessment
}

func (e *PasswordPolicyError) Error() string {
	if len(e.Assessment.Errors) > 0 {
		return ErrPasswordPolicy.Error() + ": " + e.Assessment.Errors[0]
	}
	return ErrPasswordPolicy.Error()
}

func (e *PasswordPolicyError) Is(target error) bool { return target == ErrPasswordPolicy }

func internalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func minutesCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}

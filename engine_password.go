package dualAuth

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrEthical07/dualAuth/password"
	"github.com/MrEthical07/dualAuth/validate"
)

// AdminResetPassword issues a password-reset token for a user found by id
// or, failing that, by email. The link is emailed when the process is
// online; with ExposeDebugCodes it is also returned and logged.
func (e *Engine) AdminResetPassword(ctx context.Context, callerID, targetUserID, targetEmail string) (*PasswordResetDispatch, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	targetUserID = strings.TrimSpace(targetUserID)
	targetEmail = strings.TrimSpace(targetEmail)
	if targetUserID == "" && targetEmail == "" {
		return nil, invalidInput(&validate.FieldError{Field: "userId", Message: "userId or email is required"})
	}
	if _, err := e.requireAdmin(ctx, "admin reset password", callerID); err != nil {
		return nil, err
	}

	target, err := e.resolveTarget(ctx, targetUserID, targetEmail)
	if err != nil {
		return nil, err
	}

	token, jti, expiresAt, err := e.tokens.CreateReset(target.ID, target.Email, e.config.JWT.ResetTokenTTL)
	if err != nil {
		return nil, internalError("admin reset password", err)
	}
	link := e.config.PasswordReset.LinkBaseURL + "?token=" + url.QueryEscape(token)

	out := &PasswordResetDispatch{
		TargetUserID: target.ID,
		Email:        target.Email,
		ResetID:      jti,
		ExpiresAt:    expiresAt,
		Online:       e.checker.Online(ctx),
	}
	if out.Online && e.mailer != nil {
		if err := e.mailer.SendPasswordReset(ctx, target.Email, target.Name, link, expiresAt); err != nil {
			e.logger.Printf("dualAuth: send password reset user=%s: %v", target.ID, err)
		} else {
			out.EmailSent = true
		}
	}
	if e.config.Security.ExposeDebugCodes {
		out.DebugLink = link
		e.logger.Printf("dualAuth: password reset link for user=%s: %s", target.ID, link)
	}

	e.metrics.Inc(MetricPasswordResetIssued)
	e.emitAudit(ctx, EventPasswordResetIssued, target.ID, true, "", map[string]string{
		"by":        callerID,
		"resetId":   jti,
		"emailSent": strconv.FormatBool(out.EmailSent),
	})
	return out, nil
}

func (e *Engine) resolveTarget(ctx context.Context, userID, email string) (*User, error) {
	if userID != "" {
		u, err := e.loadUser(ctx, "admin reset password", userID)
		if err == nil || !errors.Is(err, ErrUserNotFound) || email == "" {
			return u, err
		}
	}
	u, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound), err == nil && u == nil:
		return nil, ErrUserNotFound
	case err != nil:
		return nil, internalError("admin reset password", err)
	}
	return u, nil
}

// ChangePassword replaces the caller's password after verifying the current
// one. The caller's session is ended so the new password must be used to
// sign in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if current == "" || next == "" {
		return invalidInput(&validate.FieldError{Field: validate.FieldPassword, Message: "is required"})
	}

	user, err := e.loadUser(ctx, "change password", userID)
	if err != nil {
		return err
	}
	ok, err := e.users.VerifyPassword(ctx, user, current)
	if err != nil {
		return internalError("change password", err)
	}
	if !ok {
		e.emitAudit(ctx, EventSuspiciousActivity, user.ID, false, "change_password_bad_current", nil)
		return ErrInvalidCredentials
	}
	if current == next {
		return ErrPasswordReuse
	}
	if err := e.checkPolicy(next, user.Name, user.Email); err != nil {
		return err
	}

	if err := e.users.ChangePassword(ctx, user.ID, next); err != nil {
		return internalError("change password", err)
	}
	e.evict(ctx, user.ID, "password_changed")
	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, EventPasswordChanged, user.ID, true, "", map[string]string{"via": "self"})
	return nil
}

// ConfirmPasswordReset consumes a reset token issued by AdminResetPassword.
// Reset tokens stay valid until they expire.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, next string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(resetToken) == "" || next == "" {
		return invalidInput(&validate.FieldError{Field: "token", Message: "token and password are required"})
	}

	claims, err := e.tokens.ParseReset(strings.TrimSpace(resetToken))
	if err != nil {
		e.emitAudit(ctx, EventSuspiciousActivity, "", false, "reset_token_rejected", nil)
		return ErrResetTokenInvalid
	}

	user, err := e.loadUser(ctx, "confirm password reset", claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	if err := e.checkPolicy(next, user.Name, user.Email); err != nil {
		return err
	}

	if err := e.users.ChangePassword(ctx, user.ID, next); err != nil {
		return internalError("confirm password reset", err)
	}
	e.evict(ctx, user.ID, "password_reset")
	e.metrics.Inc(MetricPasswordResetConfirmed)
	e.emitAudit(ctx, EventPasswordChanged, user.ID, true, "", map[string]string{
		"via":     "reset",
		"resetId": claims.ID,
	})
	return nil
}

// CreateAccount registers a user through the configured AccountCreator.
func (e *Engine) CreateAccount(ctx context.Context, account NewAccount) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.creator == nil {
		return nil, ErrAccountCreationDisabled
	}
	account.Email = strings.TrimSpace(account.Email)
	account.Name = strings.TrimSpace(account.Name)
	if errs := validate.All(
		[2]string{validate.FieldEmail, account.Email},
		[2]string{validate.FieldName, account.Name},
		[2]string{validate.FieldPassword, account.Password},
	); len(errs) > 0 {
		return nil, invalidInput(errs[0])
	}
	if err := e.checkPolicy(account.Password, account.Name, account.Email); err != nil {
		return nil, err
	}
	return e.createUser(ctx, account)
}

func (e *Engine) createUser(ctx context.Context, account NewAccount) (*User, error) {
	user, err := e.creator.CreateUser(ctx, account)
	if errors.Is(err, ErrAccountExists) {
		return nil, ErrAccountExists
	}
	if err != nil {
		return nil, internalError("create account", err)
	}
	e.metrics.Inc(MetricAccountCreated)
	e.emitAudit(ctx, EventAccountCreated, user.ID, true, "", nil)
	return user, nil
}

func (e *Engine) checkPolicy(pw, name, email string) error {
	a := e.AssessPassword(pw, &password.UserInfo{Name: name, Email: email})
	if !a.IsValid {
		e.metrics.Inc(MetricPasswordPolicyRejected)
		return &PasswordPolicyError{Assessment: a}
	}
	return nil
}

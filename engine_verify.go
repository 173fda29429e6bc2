package dualAuth

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/MrEthical07/dualAuth/internal/codes"
	"github.com/MrEthical07/dualAuth/jwt"
	"github.com/MrEthical07/dualAuth/session"
	"github.com/MrEthical07/dualAuth/validate"
)

// VerifyCode completes a login. It tries the emailed OTP first and then the
// offline code. On success the pending codes are cleared, a token is minted
// with the mode's lifetime and bound to a fresh session.
func (e *Engine) VerifyCode(ctx context.Context, userID, code string) (*VerifyResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validate.ValidateFormat(validate.FieldUserID, userID); err != nil {
		return nil, invalidInput(err)
	}
	if err := validate.ValidateFormat(validate.FieldCode, code); err != nil {
		return nil, invalidInput(err)
	}

	user, err := e.loadUser(ctx, "verify code", userID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	mode, matched := e.matchCode(user.Pending, code, now)
	if !matched {
		state := user.Pending.State(now)
		e.metrics.Inc(MetricCodeVerifyFailure)
		e.emitAudit(ctx, EventSuspiciousActivity, user.ID, false, "invalid_code", map[string]string{
			"code":     codes.Redact(code, 2),
			"expected": state.String(),
		})
		return nil, &CodeRejectedError{Expected: state, Hint: codeHint(state, code)}
	}

	consumed, err := e.consumePending(ctx, user)
	if err != nil {
		return nil, internalError("verify code", err)
	}
	if !consumed {
		e.metrics.Inc(MetricCodeVerifyFailure)
		e.emitAudit(ctx, EventSuspiciousActivity, user.ID, false, "code_reused", map[string]string{
			"code": codes.Redact(code, 2),
		})
		return nil, &CodeRejectedError{Expected: StateVerified, Hint: codeHint(StateVerified, code)}
	}

	ttl := e.config.JWT.OnlineTokenTTL
	if mode == ModeOffline {
		ttl = e.config.JWT.OfflineTokenTTL
	}
	token, expiresAt, err := e.tokens.CreateAccess(jwt.AccessClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Name:     user.Name,
		Email:    user.Email,
		AuthMode: string(mode),
	}, ttl)
	if err != nil {
		return nil, internalError("verify code", err)
	}

	if _, err := e.sessions.Put(ctx, user.ID, token, session.AuthLocal, e.config.Session.DefaultTTL); err != nil {
		return nil, internalError("verify code", err)
	}
	e.metrics.Inc(MetricSessionCreated)
	e.metrics.Inc(MetricCodeVerifySuccess)
	e.emitAudit(ctx, EventVerifySuccess, user.ID, true, "", map[string]string{"mode": string(mode)})

	return &VerifyResult{
		Token:     token,
		User:      profileOf(user),
		Mode:      mode,
		State:     StateVerified,
		ExpiresAt: expiresAt,
	}, nil
}

// consumePending clears the codes user was loaded with. Without a
// PendingConsumer the clear is best effort and always reports success.
func (e *Engine) consumePending(ctx context.Context, user *User) (bool, error) {
	if c, ok := e.users.(PendingConsumer); ok {
		return c.ConsumePendingVerification(ctx, user.ID, user.Pending)
	}
	if err := e.users.ClearPendingVerification(ctx, user.ID); err != nil {
		e.logger.Printf("dualAuth: clear pending code user=%s: %v", user.ID, err)
	}
	return true, nil
}

func (e *Engine) matchCode(p PendingVerification, code string, now time.Time) (Mode, bool) {
	if p.OTP != "" && now.Before(p.OTPExpires) &&
		subtle.ConstantTimeCompare([]byte(p.OTP), []byte(code)) == 1 {
		return ModeOnline, true
	}
	if p.OfflineCodeHash != "" && now.Before(p.OfflineCodeExpires) &&
		e.hasher.Compare(p.OfflineCodeHash, code) {
		return ModeOffline, true
	}
	return "", false
}

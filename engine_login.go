package dualAuth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/dualAuth/internal/codes"
	"github.com/MrEthical07/dualAuth/session"
	"github.com/MrEthical07/dualAuth/validate"
)

// Login checks credentials and issues a one-time code. Unknown email and
// wrong password both return ErrInvalidCredentials. A live session for
// the account returns *SessionActiveError.
func (e *Engine) Login(ctx context.Context, email, pw string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if err := validate.ValidateFormat(validate.FieldEmail, email); err != nil {
		return nil, invalidInput(err)
	}
	if err := validate.ValidateFormat(validate.FieldPassword, pw); err != nil {
		return nil, invalidInput(err)
	}

	if e.throttle != nil {
		allowed, err := e.throttle.Check(ctx, email)
		if err != nil {
			// fail open: the credential check still runs
			e.logger.Printf("dualAuth: login throttle: %v", err)
			allowed = true
		}
		if !allowed {
			e.metrics.Inc(MetricLoginThrottled)
			e.emitAudit(ctx, EventSuspiciousActivity, "", false, "login_throttled", map[string]string{"email": email})
			return nil, ErrLoginThrottled
		}
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, internalError("login", err)
	}
	if user == nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, EventSuspiciousActivity, "", false, "unknown_email", map[string]string{"email": email})
		return nil, ErrInvalidCredentials
	}

	ok, err := e.users.VerifyPassword(ctx, user, pw)
	if err != nil {
		return nil, internalError("login", err)
	}
	if !ok {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, EventSuspiciousActivity, user.ID, false, "bad_password", map[string]string{"email": email})
		return nil, ErrInvalidCredentials
	}

	now := e.now()
	existing, err := e.sessions.Get(ctx, user.ID)
	switch {
	case err == nil && existing.Live(now):
		remaining := existing.Remaining(now)
		e.metrics.Inc(MetricLoginConflict)
		e.emitAudit(ctx, EventSessionConflict, user.ID, false, "session_active", map[string]string{
			"minutesRemaining": strconv.Itoa(minutesCeil(remaining)),
		})
		return nil, &SessionActiveError{Remaining: remaining}
	case err != nil && !errors.Is(err, session.ErrNotFound):
		return nil, internalError("login", err)
	}

	started := time.Now()
	online := e.checker.Online(ctx)
	e.logger.Printf("dualAuth: connectivity probe online=%t elapsed=%s", online, time.Since(started).Round(time.Millisecond))

	var res *LoginResult
	if online {
		res, err = e.issueOnline(ctx, user)
	} else {
		e.metrics.Inc(MetricProbeOffline)
		res, err = e.issueOffline(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, EventLoginSuccess, user.ID, true, "", map[string]string{"mode": string(res.Mode)})
	return res, nil
}

func (e *Engine) issueOnline(ctx context.Context, user *User) (*LoginResult, error) {
	otp, err := codes.NewNumeric(e.config.Codes.OTPDigits)
	if err != nil {
		return nil, internalError("login", err)
	}
	ttl := e.config.Codes.OTPTTL
	expires := e.now().Add(ttl)

	if err := e.users.SavePendingVerification(ctx, user.ID, PendingVerification{
		OTP:        otp,
		OTPExpires: expires,
	}); err != nil {
		return nil, internalError("login", err)
	}

	if e.mailer == nil {
		e.metrics.Inc(MetricOTPMailFailure)
		e.logger.Printf("dualAuth: no mailer configured, login code for user=%s not sent", user.ID)
	} else {
		to, name := user.Email, user.Name
		e.sendAsync("send login code", func(ctx context.Context) error {
			return e.mailer.SendLoginCode(ctx, to, name, otp, ttl)
		})
	}

	e.metrics.Inc(MetricLoginOnline)
	return &LoginResult{
		UserID:           user.ID,
		Mode:             ModeOnline,
		State:            StatePendingOnline,
		RequireTwoFactor: true,
		ExpiresAt:        expires,
	}, nil
}

func (e *Engine) issueOffline(ctx context.Context, user *User) (*LoginResult, error) {
	code, err := codes.NewNumeric(e.config.Codes.OfflineDigits)
	if err != nil {
		return nil, internalError("login", err)
	}
	hash, err := e.hasher.Hash(code)
	if err != nil {
		return nil, internalError("login", err)
	}
	expires := e.now().Add(e.config.Codes.OfflineTTL)

	if err := e.users.SavePendingVerification(ctx, user.ID, PendingVerification{
		OfflineCodeHash:    hash,
		OfflineCodeExpires: expires,
	}); err != nil {
		return nil, internalError("login", err)
	}

	res := &LoginResult{
		UserID:           user.ID,
		Mode:             ModeOffline,
		State:            StatePendingOffline,
		RequireTwoFactor: true,
		ExpiresAt:        expires,
	}
	if e.config.Security.ExposeDebugCodes {
		res.OfflineCode = code
		e.logger.Printf("dualAuth: offline code for user=%s: %s", user.ID, code)
	}
	e.metrics.Inc(MetricLoginOffline)
	return res, nil
}

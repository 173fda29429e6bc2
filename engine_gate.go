package dualAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/dualAuth/jwt"
	"github.com/MrEthical07/dualAuth/session"
)

// VerifyToken is the session-aware token gate.
//
// Local tokens (authMode online or offline) are accepted only while the
// user's session is live and bound to this exact token. Federated tokens
// skip that check and instead (re)create the session. In both cases the
// user is re-read from the repository; a vanished user loses the session.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*Principal, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()

	p, err := e.verifyToken(ctx, strings.TrimSpace(token))
	if err != nil {
		e.metrics.Inc(MetricGateRejected)
		return nil, err
	}
	e.metrics.Inc(MetricGateAccepted)
	return p, nil
}

func (e *Engine) verifyToken(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims, err := e.tokens.ParseAccess(token)
	if err != nil {
		return nil, e.rejectToken(ctx, token, claims, err)
	}

	user, err := e.loadUser(ctx, "verify token", claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		e.evict(ctx, claims.UserID, "user_gone")
		return nil, ErrUserGone
	}
	if err != nil {
		return nil, err
	}

	if claims.Federated() {
		if err := e.bindFederated(ctx, user.ID, token); err != nil {
			return nil, err
		}
	} else {
		sess, err := e.sessions.Get(ctx, user.ID)
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionInvalidated
		}
		if err != nil {
			return nil, internalError("verify token", err)
		}
		if sess.Token != token {
			return nil, ErrSessionInvalidated
		}
		if err := e.sessions.Touch(ctx, user.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
			e.logger.Printf("dualAuth: touch session user=%s: %v", user.ID, err)
		}
	}

	provider := claims.Provider
	if provider == "" && claims.Federated() {
		provider = jwt.ProviderGoogle
	}
	authMode := claims.AuthMode
	if authMode == "" {
		authMode = provider
	}
	return &Principal{
		UserID:    user.ID,
		Role:      user.Role,
		Name:      user.Name,
		Email:     user.Email,
		AuthMode:  authMode,
		Provider:  provider,
		Federated: claims.Federated(),
	}, nil
}

// rejectToken maps a parse failure to the gate's error and cleans up any
// session the token still names. An expired token has a verified
// signature, so its session is dropped only if still bound to it. A token
// that failed verification is trusted for nothing except, when
// configured, naming the session to drop.
func (e *Engine) rejectToken(ctx context.Context, token string, claims *jwt.AccessClaims, err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		if claims != nil {
			e.evictIfBound(ctx, claims.UserID, token)
		}
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrMalformed):
		e.evictUnverified(ctx, token)
		return ErrTokenMalformed
	default:
		e.evictUnverified(ctx, token)
		return ErrTokenInvalid
	}
}

func (e *Engine) evictIfBound(ctx context.Context, userID, token string) {
	sess, err := e.sessions.Get(ctx, userID)
	if err != nil || sess.Token != token {
		return
	}
	e.evict(ctx, userID, "token_expired")
}

func (e *Engine) evictUnverified(ctx context.Context, token string) {
	if !e.config.Session.EvictOnUnverifiedToken {
		return
	}
	if userID, ok := jwt.PeekUserID(token); ok {
		e.evict(ctx, userID, "token_unverified")
	}
}

// bindFederated keeps a federated session alive: touch it when it is
// already bound to token, otherwise replace it.
func (e *Engine) bindFederated(ctx context.Context, userID, token string) error {
	sess, err := e.sessions.Get(ctx, userID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return internalError("verify token", err)
	}
	if err == nil && sess.Token == token {
		if err := e.sessions.Touch(ctx, userID); err != nil && !errors.Is(err, session.ErrNotFound) {
			e.logger.Printf("dualAuth: touch session user=%s: %v", userID, err)
		}
		return nil
	}
	if _, err := e.sessions.Put(ctx, userID, token, session.AuthGoogle, e.config.Session.FederatedTTL); err != nil {
		return internalError("verify token", err)
	}
	e.metrics.Inc(MetricSessionCreated)
	e.metrics.Inc(MetricFederatedSession)
	return nil
}

package dualAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/dualAuth/jwt"
	"github.com/MrEthical07/dualAuth/session"
	"github.com/google/uuid"
)

// FederatedToken is issued after an external identity provider vouched for
// the user.
type FederatedToken struct {
	Token   string
	User    Profile
	Created bool
}

// IssueFederatedToken mints a provider-tagged token for an existing user
// and binds it to a fresh session, replacing any local one.
func (e *Engine) IssueFederatedToken(ctx context.Context, userID, provider string) (*FederatedToken, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	user, err := e.loadUser(ctx, "issue federated token", userID)
	if err != nil {
		return nil, err
	}
	return e.issueFederated(ctx, user, provider, false)
}

// FederatedLogin signs in a user the provider has already verified by
// email, creating the account when an AccountCreator is configured. The
// created account gets a random password it can later replace through a
// reset.
func (e *Engine) FederatedLogin(ctx context.Context, email, name, provider string) (*FederatedToken, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, internalError("federated login", err)
	}
	if user != nil {
		return e.issueFederated(ctx, user, provider, false)
	}

	if e.creator == nil {
		return nil, ErrUserNotFound
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}
	user, err = e.createUser(ctx, NewAccount{
		Email:    email,
		Name:     name,
		Password: uuid.NewString() + "!" + uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return e.issueFederated(ctx, user, provider, true)
}

func (e *Engine) issueFederated(ctx context.Context, user *User, provider string, created bool) (*FederatedToken, error) {
	if provider == "" {
		provider = jwt.ProviderGoogle
	}
	// only the google mode value is recognised as federated by the gate
	authMode := provider
	if provider != jwt.ProviderGoogle {
		authMode = ""
	}
	token, _, err := e.tokens.CreateAccess(jwt.AccessClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Name:     user.Name,
		Email:    user.Email,
		AuthMode: authMode,
		Provider: provider,
	}, e.config.Session.FederatedTTL)
	if err != nil {
		return nil, internalError("issue federated token", err)
	}
	if _, err := e.sessions.Put(ctx, user.ID, token, session.AuthGoogle, e.config.Session.FederatedTTL); err != nil {
		return nil, internalError("issue federated token", err)
	}
	e.metrics.Inc(MetricSessionCreated)
	e.metrics.Inc(MetricFederatedSession)
	e.emitAudit(ctx, EventFederatedSession, user.ID, true, "", map[string]string{"provider": provider})
	return &FederatedToken{Token: token, User: profileOf(user), Created: created}, nil
}

package dualAuth

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/dualAuth/session"
)

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	token := h.signIn(t)

	if err := h.engine.ChangePassword(ctx, "u1", "wrong", "Brand#New#Pass9z"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current: %v", err)
	}
	if err := h.engine.ChangePassword(ctx, "u1", "Correct#Horse42", "Correct#Horse42"); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("reuse: %v", err)
	}

	err := h.engine.ChangePassword(ctx, "u1", "Correct#Horse42", "password123")
	var policy *PasswordPolicyError
	if !errors.As(err, &policy) {
		t.Fatalf("weak: %v", err)
	}
	if policy.Assessment.IsValid || policy.Assessment.Score != 0 {
		t.Fatalf("assessment %+v", policy.Assessment)
	}
	mustKind(t, err, KindValidation)

	if err := h.engine.ChangePassword(ctx, "u1", "Correct#Horse42", "Brand#New#Pass9z"); err != nil {
		t.Fatalf("change: %v", err)
	}
	if h.repo.password("u1") != "Brand#New#Pass9z" {
		t.Fatal("password not stored")
	}
	if _, err := h.engine.VerifyToken(ctx, token); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("old session survived: %v", err)
	}
	if !hasEvent(h.eventTypes(), EventPasswordChanged) {
		t.Fatal("password change not reported")
	}
}

func TestChangePasswordRejectsPersonalInfo(t *testing.T) {
	h := newHarness(t)

	err := h.engine.ChangePassword(context.Background(), "u1", "Correct#Horse42", "Ana@example.com#9")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("err = %v", err)
	}
}

func TestConfirmPasswordResetRejectsAccessTokens(t *testing.T) {
	h := newHarness(t)
	token := h.signIn(t)

	err := h.engine.ConfirmPasswordReset(context.Background(), token, "Brand#New#Pass9z")
	if !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("err = %v", err)
	}
	if err := h.engine.ConfirmPasswordReset(context.Background(), "garbage", "Brand#New#Pass9z"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestCreateAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.CreateAccount(ctx, NewAccount{Email: "x@example.com", Name: "X", Password: "Brand#New#Pass9z"}); !errors.Is(err, ErrAccountCreationDisabled) {
		t.Fatalf("without creator: %v", err)
	}

	h = newHarness(t)
	repo := creatingRepo{h.repo}
	h.engine.creator = repo

	u, err := h.engine.CreateAccount(ctx, NewAccount{Email: " luis@example.com ", Name: "Luis", Password: "Brand#New#Pass9z"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "luis@example.com" {
		t.Fatalf("email not trimmed: %q", u.Email)
	}
	_, err = h.engine.CreateAccount(ctx, NewAccount{Email: "luis@example.com", Name: "Luis", Password: "Brand#New#Pass9z"})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate: %v", err)
	}
	mustKind(t, err, KindConflict)

	_, err = h.engine.CreateAccount(ctx, NewAccount{Email: "bad", Name: "Luis", Password: "Brand#New#Pass9z"})
	mustKind(t, err, KindValidation)
}

func TestFederatedLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.FederatedLogin(ctx, "new@example.com", "New", "google"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("without creator: %v", err)
	}

	h.engine.creator = creatingRepo{h.repo}
	ft, err := h.engine.FederatedLogin(ctx, "new@example.com", "New", "google")
	if err != nil {
		t.Fatalf("federated login: %v", err)
	}
	if !ft.Created || ft.User.Email != "new@example.com" {
		t.Fatalf("unexpected result %+v", ft)
	}
	sess, err := h.store.Get(ctx, ft.User.ID)
	if err != nil || sess.AuthMode != session.AuthGoogle {
		t.Fatalf("session %+v %v", sess, err)
	}

	p, err := h.engine.VerifyToken(ctx, ft.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !p.Federated || p.AuthMode != "google" {
		t.Fatalf("principal %+v", p)
	}

	again, err := h.engine.FederatedLogin(ctx, "ana@example.com", "", "google")
	if err != nil || again.Created || again.User.ID != "u1" {
		t.Fatalf("existing user: %+v %v", again, err)
	}
}

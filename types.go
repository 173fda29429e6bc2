package dualAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/dualAuth/session"
)

// Mode is the delivery channel chosen for the one-time code.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// User is the slice of the user record the engine reads and writes.
type User struct {
	ID      string
	Email   string
	Name    string
	Role    string
	Pending PendingVerification
}

// PendingVerification holds the outstanding one-time code, if any. OTP is
// stored in plaintext because it is mailed; the offline code is only ever
// stored hashed.
type PendingVerification struct {
	OTP                string
	OTPExpires         time.Time
	OfflineCodeHash    string
	OfflineCodeExpires time.Time
}

// Empty reports whether no code of either kind is recorded.
func (p PendingVerification) Empty() bool {
	return p.OTP == "" && p.OfflineCodeHash == ""
}

// NewAccount is the input to account creation.
type NewAccount struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// UserRepository is the external user store. Lookups for absent users must
// return ErrUserNotFound; any other error is treated as an internal failure.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	VerifyPassword(ctx context.Context, user *User, password string) (bool, error)
	ChangePassword(ctx context.Context, userID, newPassword string) error
	SavePendingVerification(ctx context.Context, userID string, pending PendingVerification) error
	ClearPendingVerification(ctx context.Context, userID string) error
}

// PendingConsumer is implemented by repositories that can clear a pending
// code atomically. ConsumePendingVerification clears the user's codes only
// if they still equal seen and reports whether it did; with it, concurrent
// checks of one code succeed at most once.
type PendingConsumer interface {
	ConsumePendingVerification(ctx context.Context, userID string, seen PendingVerification) (bool, error)
}

// AccountCreator is implemented by repositories that can create users.
// Duplicate emails must return ErrAccountExists.
type AccountCreator interface {
	CreateUser(ctx context.Context, account NewAccount) (*User, error)
}

// Mailer delivers login codes and password-reset links.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, name, code string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, to, name, link string, expiresAt time.Time) error
}

// Profile is the minimal user view returned to clients.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"nombre"`
	Role  string `json:"rol"`
}

func profileOf(u *User) Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// LoginResult is the outcome of a successful credential check. The caller
// must still complete VerifyCode. OfflineCode is set only when debug codes
// are exposed.
type LoginResult struct {
	UserID           string     `json:"userId"`
	Mode             Mode       `json:"mode"`
	State            LoginState `json:"-"`
	RequireTwoFactor bool       `json:"require2fa"`
	OfflineCode      string     `json:"offlineCode,omitempty"`
	ExpiresAt        time.Time  `json:"-"`
}

// VerifyResult is returned when a one-time code is accepted.
type VerifyResult struct {
	Token     string
	User      Profile
	Mode      Mode
	State     LoginState
	ExpiresAt time.Time
}

// Principal is the authenticated caller behind a bearer token. Role, Name
// and Email come from the repository, not the token.
type Principal struct {
	UserID    string `json:"id"`
	Role      string `json:"rol"`
	Name      string `json:"nombre"`
	Email     string `json:"email"`
	AuthMode  string `json:"authMode"`
	Provider  string `json:"provider,omitempty"`
	Federated bool   `json:"federated"`
}

// ForceLogoutResult reports the target and whether a session was removed.
type ForceLogoutResult struct {
	TargetID   string `json:"targetUserId"`
	HadSession bool   `json:"hadSession"`
}

// SessionEntry is one row of SessionStats.
type SessionEntry struct {
	UserID           string           `json:"userId"`
	AuthMode         session.AuthMode `json:"authMode"`
	CreatedAt        time.Time        `json:"createdAt"`
	LastActivity     time.Time        `json:"lastActivity"`
	ExpiresAt        time.Time        `json:"expiresAt"`
	MinutesRemaining int              `json:"minutesRemaining"`
	Active           bool             `json:"active"`
}

// SessionStats is computed at query time from the session store.
type SessionStats struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	Sessions    []SessionEntry `json:"sessions"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// SessionStatus answers a self session check.
type SessionStatus struct {
	Active           bool             `json:"active"`
	AuthMode         session.AuthMode `json:"authMode,omitempty"`
	ExpiresAt        time.Time        `json:"expiresAt,omitempty"`
	MinutesRemaining int              `json:"minutesRemaining"`
}

// PasswordResetDispatch describes an issued reset token. DebugLink is only
// populated when debug codes are exposed.
type PasswordResetDispatch struct {
	TargetUserID string    `json:"userId"`
	Email        string    `json:"email"`
	ResetID      string    `json:"resetId"`
	ExpiresAt    time.Time `json:"expiresAt"`
	EmailSent    bool      `json:"emailSent"`
	Online       bool      `json:"online"`
	DebugLink    string    `json:"debugLink,omitempty"`
}

package dualAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/dualAuth/connectivity"
	"github.com/MrEthical07/dualAuth/jwt"
	"github.com/MrEthical07/dualAuth/session"
	"golang.org/x/crypto/bcrypt"
)

// Config is the complete engine configuration. Start from DefaultConfig
// and override fields; Build calls Validate.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Codes         CodesConfig
	Connectivity  ConnectivityConfig
	PasswordReset PasswordResetConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

// JWTConfig controls token signing and the per-mode token lifetimes.
type JWTConfig struct {
	SigningMethod   jwt.SigningMethod
	PrivateKey      []byte
	PublicKey       []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
	KeyID           string
	OnlineTokenTTL  time.Duration
	OfflineTokenTTL time.Duration
	ResetTokenTTL   time.Duration
}

// SessionConfig controls session bookkeeping.
type SessionConfig struct {
	// DefaultTTL is the session lifetime after a verified code.
	DefaultTTL time.Duration
	// FederatedTTL is used when the token gate (re)creates a federated session.
	FederatedTTL  time.Duration
	SweepInterval time.Duration
	RedisPrefix   string
	// EvictOnUnverifiedToken removes the session named by a token whose
	// signature failed to verify.
	EvictOnUnverifiedToken bool
}

// CodesConfig controls one-time code shape and lifetime.
type CodesConfig struct {
	OTPDigits       int
	OTPTTL          time.Duration
	OfflineDigits   int
	OfflineTTL      time.Duration
	OfflineHashCost int
	MailTimeout     time.Duration
}

type ConnectivityConfig struct {
	Address        string
	DialTimeout    time.Duration
	OverallTimeout time.Duration
}

type PasswordResetConfig struct {
	// LinkBaseURL is the page that consumes ?token=.
	LinkBaseURL string
}

// SecurityConfig holds behavior switches that trade safety for convenience.
type SecurityConfig struct {
	// ExposeDebugCodes echoes offline codes and reset links to the caller.
	// Never enable in production.
	ExposeDebugCodes bool
	AdminRole        string
	LoginThrottle    LoginThrottleConfig
}

type LoginThrottleConfig struct {
	Enabled   bool
	PerMinute int
	Burst     int
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. JWT keys are left
// empty and must be supplied.
func DefaultConfig() Config {
	probe := connectivity.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			SigningMethod:   jwt.MethodHS256,
			Issuer:          "dualauth",
			Leeway:          30 * time.Second,
			OnlineTokenTTL:  24 * time.Hour,
			OfflineTokenTTL: 2 * time.Hour,
			ResetTokenTTL:   time.Hour,
		},
		Session: SessionConfig{
			DefaultTTL:             session.DefaultTTL,
			FederatedTTL:           24 * time.Hour,
			SweepInterval:          session.DefaultSweepInterval,
			RedisPrefix:            "dualauth",
			EvictOnUnverifiedToken: true,
		},
		Codes: CodesConfig{
			OTPDigits:       6,
			OTPTTL:          5 * time.Minute,
			OfflineDigits:   4,
			OfflineTTL:      10 * time.Minute,
			OfflineHashCost: bcrypt.MinCost,
			MailTimeout:     30 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			Address:        probe.Address,
			DialTimeout:    probe.DialTimeout,
			OverallTimeout: probe.OverallTimeout,
		},
		PasswordReset: PasswordResetConfig{
			LinkBaseURL: "http://localhost:3000/reset-password",
		},
		Security: SecurityConfig{
			AdminRole: "admin",
			LoginThrottle: LoginThrottleConfig{
				PerMinute: 10,
				Burst:     5,
			},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.JWT.SigningMethod {
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("JWT.PrivateKey must be at least 32 bytes for hs256")
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("JWT.PublicKey is required for ed25519")
		}
	default:
		return fmt.Errorf("unsupported JWT.SigningMethod %q", c.JWT.SigningMethod)
	}
	if c.JWT.OnlineTokenTTL <= 0 || c.JWT.OfflineTokenTTL <= 0 || c.JWT.ResetTokenTTL <= 0 {
		return errors.New("JWT token TTLs must be > 0")
	}
	if c.JWT.OfflineTokenTTL > c.JWT.OnlineTokenTTL {
		return errors.New("JWT.OfflineTokenTTL must not exceed OnlineTokenTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway must be between 0 and 2m")
	}

	if c.Session.DefaultTTL <= 0 || c.Session.FederatedTTL <= 0 {
		return errors.New("Session TTLs must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("Session.SweepInterval must be > 0")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session.RedisPrefix must not be empty")
	}

	if c.Codes.OTPDigits < 4 || c.Codes.OTPDigits > 6 {
		return errors.New("Codes.OTPDigits must be between 4 and 6")
	}
	if c.Codes.OfflineDigits < 4 || c.Codes.OfflineDigits > 6 {
		return errors.New("Codes.OfflineDigits must be between 4 and 6")
	}
	if c.Codes.OTPTTL <= 0 || c.Codes.OfflineTTL <= 0 {
		return errors.New("Codes TTLs must be > 0")
	}
	if c.Codes.OfflineHashCost != 0 && (c.Codes.OfflineHashCost < bcrypt.MinCost || c.Codes.OfflineHashCost > bcrypt.MaxCost) {
		return fmt.Errorf("Codes.OfflineHashCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Codes.MailTimeout <= 0 {
		return errors.New("Codes.MailTimeout must be > 0")
	}

	if strings.TrimSpace(c.Connectivity.Address) == "" {
		return errors.New("Connectivity.Address must not be empty")
	}
	if c.Connectivity.DialTimeout <= 0 || c.Connectivity.OverallTimeout <= 0 {
		return errors.New("Connectivity timeouts must be > 0")
	}
	if c.Connectivity.DialTimeout > c.Connectivity.OverallTimeout {
		return errors.New("Connectivity.DialTimeout must not exceed OverallTimeout")
	}

	if strings.TrimSpace(c.Security.AdminRole) == "" {
		return errors.New("Security.AdminRole must not be empty")
	}
	if t := c.Security.LoginThrottle; t.Enabled && (t.PerMinute <= 0 || t.Burst <= 0) {
		return errors.New("Security.LoginThrottle requires PerMinute and Burst > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit.BufferSize must be > 0 when audit is enabled")
	}
	return nil
}

// LintWarning is a configuration smell that does not prevent Build.
type LintWarning struct {
	Code    string
	Message string
}

type LintWarnings []LintWarning

func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint reports risky but valid settings.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.Security.ExposeDebugCodes {
		add("expose_debug_codes", "one-time codes and reset links are returned to callers")
	}
	if !c.Security.LoginThrottle.Enabled {
		add("login_throttle_disabled", "repeated failed logins are only reported, not throttled")
	}
	if c.Session.EvictOnUnverifiedToken {
		add("evict_on_unverified_token", "a forged token naming a user can end that user's session")
	}
	if c.JWT.OfflineTokenTTL > 4*time.Hour {
		add("offline_token_ttl_long", "offline tokens outlive the recommended 4h")
	}
	if c.Codes.OfflineHashCost > bcrypt.DefaultCost {
		add("hash_cost_high", "offline code hashing above the default cost slows login")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", "JWT leeway above 1m")
	}
	return ws
}

package dualAuth

import (
	"testing"
	"time"
)

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func TestDefaultConfigNeedsOnlyAKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing key to fail validation")
	}
	cfg.JWT.PrivateKey = testKey
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.OnlineTokenTTL != 24*time.Hour || cfg.JWT.OfflineTokenTTL != 2*time.Hour || cfg.JWT.ResetTokenTTL != time.Hour {
		t.Fatalf("token ttls %+v", cfg.JWT)
	}
	if cfg.Session.DefaultTTL != time.Hour || cfg.Session.SweepInterval != 5*time.Minute || cfg.Session.FederatedTTL != 24*time.Hour {
		t.Fatalf("session %+v", cfg.Session)
	}
	if cfg.Codes.OTPDigits != 6 || cfg.Codes.OTPTTL != 5*time.Minute || cfg.Codes.OfflineDigits != 4 || cfg.Codes.OfflineTTL != 10*time.Minute {
		t.Fatalf("codes %+v", cfg.Codes)
	}
	if cfg.Security.ExposeDebugCodes {
		t.Fatal("debug codes must be off by default")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"short hs256 key":       func(c *Config) { c.JWT.PrivateKey = []byte("short") },
		"unknown method":        func(c *Config) { c.JWT.SigningMethod = "rs256" },
		"offline outlives":      func(c *Config) { c.JWT.OfflineTokenTTL = 48 * time.Hour },
		"otp digits":            func(c *Config) { c.Codes.OTPDigits = 8 },
		"offline digits":        func(c *Config) { c.Codes.OfflineDigits = 3 },
		"hash cost":             func(c *Config) { c.Codes.OfflineHashCost = 40 },
		"dial exceeds overall":  func(c *Config) { c.Connectivity.DialTimeout = 2 * time.Second },
		"empty admin role":      func(c *Config) { c.Security.AdminRole = " " },
		"throttle without rate": func(c *Config) { c.Security.LoginThrottle = LoginThrottleConfig{Enabled: true} },
		"audit buffer":          func(c *Config) { c.Audit.BufferSize = 0 },
		"sweep interval":        func(c *Config) { c.Session.SweepInterval = 0 },
		"large leeway":          func(c *Config) { c.JWT.Leeway = 5 * time.Minute },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLintWarnings(t *testing.T) {
	cfg := testConfig()
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "login_throttle_disabled") || !containsCode(codes, "evict_on_unverified_token") {
		t.Fatalf("default lint = %v", codes)
	}
	if containsCode(codes, "expose_debug_codes") || containsCode(codes, "leeway_large") {
		t.Fatalf("unexpected default lint = %v", codes)
	}

	cfg.Security.ExposeDebugCodes = true
	cfg.Security.LoginThrottle.Enabled = true
	cfg.Session.EvictOnUnverifiedToken = false
	cfg.JWT.Leeway = 90 * time.Second
	cfg.JWT.OfflineTokenTTL = 6 * time.Hour
	cfg.Codes.OfflineHashCost = 12
	codes = cfg.Lint().Codes()
	for _, want := range []string{"expose_debug_codes", "leeway_large", "offline_token_ttl_long", "hash_cost_high"} {
		if !containsCode(codes, want) {
			t.Errorf("missing %s in %v", want, codes)
		}
	}
	if containsCode(codes, "login_throttle_disabled") {
		t.Error("throttle warning with throttle enabled")
	}
}

func TestBuilderRequiresRepository(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without repository")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserRepository(newFakeRepo())
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestBuilderDetectsAccountCreator(t *testing.T) {
	e, err := New().WithConfig(testConfig()).WithUserRepository(creatingRepo{newFakeRepo()}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	if e.creator == nil {
		t.Fatal("account creator not detected")
	}
}

func TestConfigIsCopied(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = append([]byte(nil), testKey...)
	e, err := New().WithConfig(cfg).WithUserRepository(newFakeRepo()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()

	cfg.JWT.PrivateKey[0] = 'X'
	if e.Config().JWT.PrivateKey[0] == 'X' {
		t.Fatal("engine shares key bytes with caller")
	}
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	dualAuth "github.com/MrEthical07/dualAuth"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk server configuration. Durations are Go
// duration strings ("90m", "24h").
type fileConfig struct {
	Listen      string `toml:"listen" yaml:"listen"`
	Environment string `toml:"environment" yaml:"environment"`
	JWTSecret   string `toml:"jwt_secret" yaml:"jwt_secret"`
	Issuer      string `toml:"issuer" yaml:"issuer"`

	Users    usersConfig    `toml:"users" yaml:"users"`
	Sessions sessionsConfig `toml:"sessions" yaml:"sessions"`
	Mail     mailConfig     `toml:"mail" yaml:"mail"`
	Google   googleConfig   `toml:"google" yaml:"google"`
	Admin    adminSeed      `toml:"admin" yaml:"admin"`

	ResetLinkBaseURL string `toml:"reset_link_base_url" yaml:"reset_link_base_url"`
	ProbeAddress     string `toml:"probe_address" yaml:"probe_address"`
	LoginThrottle    bool   `toml:"login_throttle" yaml:"login_throttle"`
	OnlineTokenTTL   string `toml:"online_token_ttl" yaml:"online_token_ttl"`
	OfflineTokenTTL  string `toml:"offline_token_ttl" yaml:"offline_token_ttl"`
	SessionTTL       string `toml:"session_ttl" yaml:"session_ttl"`
}

type usersConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `toml:"driver" yaml:"driver"`
	Path   string `toml:"path" yaml:"path"`
}

type sessionsConfig struct {
	// Driver is "memory", "redis" or "miniredis".
	Driver        string `toml:"driver" yaml:"driver"`
	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	Prefix        string `toml:"prefix" yaml:"prefix"`
}

type mailConfig struct {
	// Driver is "log" or "smtp".
	Driver   string `toml:"driver" yaml:"driver"`
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	From     string `toml:"from" yaml:"from"`
}

type googleConfig struct {
	ClientID     string `toml:"client_id" yaml:"client_id"`
	ClientSecret string `toml:"client_secret" yaml:"client_secret"`
	RedirectURL  string `toml:"redirect_url" yaml:"redirect_url"`
}

func (g googleConfig) enabled() bool { return g.ClientID != "" }

// adminSeed creates the first admin account when the email is unknown.
type adminSeed struct {
	Email    string `toml:"email" yaml:"email"`
	Name     string `toml:"name" yaml:"name"`
	Password string `toml:"password" yaml:"password"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Listen:      ":8080",
		Environment: "production",
		Users:       usersConfig{Driver: "memory"},
		Sessions:    sessionsConfig{Driver: "memory", Prefix: "dualauth"},
		Mail:        mailConfig{Driver: "log", Port: 587},
	}
}

// loadConfig reads path (TOML unless the extension is .yaml or .yml),
// then applies DUALAUTH_* environment overrides. An empty path uses
// defaults plus the environment.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path != "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			b, err := os.ReadFile(path)
			if err != nil {
				return cfg, err
			}
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("decode yaml %s: %w", path, err)
			}
		default:
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("decode toml %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c *fileConfig) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DUALAUTH_LISTEN":               &c.Listen,
		"DUALAUTH_ENVIRONMENT":          &c.Environment,
		"DUALAUTH_JWT_SECRET":           &c.JWTSecret,
		"DUALAUTH_USERS_DRIVER":         &c.Users.Driver,
		"DUALAUTH_USERS_PATH":           &c.Users.Path,
		"DUALAUTH_SESSIONS_DRIVER":      &c.Sessions.Driver,
		"DUALAUTH_REDIS_ADDR":           &c.Sessions.RedisAddr,
		"DUALAUTH_REDIS_PASSWORD":       &c.Sessions.RedisPassword,
		"DUALAUTH_MAIL_DRIVER":          &c.Mail.Driver,
		"DUALAUTH_SMTP_HOST":            &c.Mail.Host,
		"DUALAUTH_SMTP_USERNAME":        &c.Mail.Username,
		"DUALAUTH_SMTP_PASSWORD":        &c.Mail.Password,
		"DUALAUTH_SMTP_FROM":            &c.Mail.From,
		"DUALAUTH_GOOGLE_CLIENT_ID":     &c.Google.ClientID,
		"DUALAUTH_GOOGLE_CLIENT_SECRET": &c.Google.ClientSecret,
		"DUALAUTH_GOOGLE_REDIRECT_URL":  &c.Google.RedirectURL,
		"DUALAUTH_RESET_LINK_BASE_URL":  &c.ResetLinkBaseURL,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("DUALAUTH_SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DUALAUTH_SMTP_PORT: %w", err)
		}
		c.Mail.Port = port
	}
	if v, ok := lookup("DUALAUTH_LOGIN_THROTTLE"); ok && v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DUALAUTH_LOGIN_THROTTLE: %w", err)
		}
		c.LoginThrottle = on
	}
	return nil
}

func (c fileConfig) validate() error {
	var errs []error
	switch c.Environment {
	case "production", "development":
	default:
		errs = append(errs, fmt.Errorf("environment must be production or development, got %q", c.Environment))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("jwt_secret must be at least 32 bytes"))
	}
	switch c.Users.Driver {
	case "memory":
	case "sqlite":
		if c.Users.Path == "" {
			errs = append(errs, errors.New("users.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown users.driver %q", c.Users.Driver))
	}
	switch c.Sessions.Driver {
	case "memory", "miniredis":
	case "redis":
		if c.Sessions.RedisAddr == "" {
			errs = append(errs, errors.New("sessions.redis_addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sessions.driver %q", c.Sessions.Driver))
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, errors.New("mail.host and mail.from are required for smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.driver %q", c.Mail.Driver))
	}
	if c.Google.enabled() && (c.Google.ClientSecret == "" || c.Google.RedirectURL == "") {
		errs = append(errs, errors.New("google.client_secret and google.redirect_url are required with google.client_id"))
	}
	for name, v := range map[string]string{
		"online_token_ttl":  c.OnlineTokenTTL,
		"offline_token_ttl": c.OfflineTokenTTL,
		"session_ttl":       c.SessionTTL,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// engineConfig maps the file configuration onto the engine's. Plaintext
// codes and links are echoed only when environment is "development".
func (c fileConfig) engineConfig() dualAuth.Config {
	cfg := dualAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	if c.Issuer != "" {
		cfg.JWT.Issuer = c.Issuer
	}
	if d, err := time.ParseDuration(c.OnlineTokenTTL); err == nil {
		cfg.JWT.OnlineTokenTTL = d
	}
	if d, err := time.ParseDuration(c.OfflineTokenTTL); err == nil {
		cfg.JWT.OfflineTokenTTL = d
	}
	if d, err := time.ParseDuration(c.SessionTTL); err == nil {
		cfg.Session.DefaultTTL = d
	}
	if c.Sessions.Prefix != "" {
		cfg.Session.RedisPrefix = c.Sessions.Prefix
	}
	if c.ResetLinkBaseURL != "" {
		cfg.PasswordReset.LinkBaseURL = c.ResetLinkBaseURL
	}
	if c.ProbeAddress != "" {
		cfg.Connectivity.Address = c.ProbeAddress
	}
	cfg.Security.ExposeDebugCodes = c.Environment == "development"
	cfg.Security.LoginThrottle.Enabled = c.LoginThrottle
	return cfg
}

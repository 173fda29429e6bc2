package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/mailer"
	"github.com/MrEthical07/dualAuth/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "dualauth.toml", `
listen = ":9090"
environment = "development"
jwt_secret = "`+secret+`"
online_token_ttl = "12h"
session_ttl = "30m"

[users]
driver = "sqlite"
path = "/var/lib/dualauth/users.db"

[sessions]
driver = "miniredis"
prefix = "da"

[mail]
driver = "smtp"
host = "smtp.example.com"
from = "no-reply@example.com"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "sqlite", cfg.Users.Driver)
	assert.Equal(t, "miniredis", cfg.Sessions.Driver)
	assert.Equal(t, 587, cfg.Mail.Port)

	ec := cfg.engineConfig()
	assert.True(t, ec.Security.ExposeDebugCodes)
	assert.Equal(t, 12*time.Hour, ec.JWT.OnlineTokenTTL)
	assert.Equal(t, 30*time.Minute, ec.Session.DefaultTTL)
	assert.Equal(t, "da", ec.Session.RedisPrefix)
	require.NoError(t, ec.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "dualauth.yaml", `
environment: production
jwt_secret: "`+secret+`"
sessions:
  driver: redis
  redis_addr: "127.0.0.1:6379"
google:
  client_id: abc
  client_secret: shh
  redirect_url: https://auth.example.com/oauth/google/callback
admin:
  email: boss@example.com
  password: Admin#Secret77x
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "redis", cfg.Sessions.Driver)
	assert.True(t, cfg.Google.enabled())
	assert.Equal(t, "boss@example.com", cfg.Admin.Email)
	assert.False(t, cfg.engineConfig().Security.ExposeDebugCodes)
}

func TestEnvOverrides(t *testing.T) {
	cfg := defaultFileConfig()
	env := map[string]string{
		"DUALAUTH_JWT_SECRET":     secret,
		"DUALAUTH_LISTEN":         ":7000",
		"DUALAUTH_SMTP_PORT":      "2525",
		"DUALAUTH_LOGIN_THROTTLE": "true",
		"DUALAUTH_USERS_DRIVER":   "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 2525, cfg.Mail.Port)
	assert.True(t, cfg.LoginThrottle)
	assert.Equal(t, "memory", cfg.Users.Driver)
	require.NoError(t, cfg.validate())
	assert.True(t, cfg.engineConfig().Security.LoginThrottle.Enabled)

	env["DUALAUTH_SMTP_PORT"] = "smtp"
	assert.Error(t, cfg.applyEnv(lookup))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*fileConfig){
		"short secret":    func(c *fileConfig) { c.JWTSecret = "short" },
		"environment":     func(c *fileConfig) { c.Environment = "staging" },
		"sqlite path":     func(c *fileConfig) { c.Users.Driver = "sqlite" },
		"users driver":    func(c *fileConfig) { c.Users.Driver = "postgres" },
		"redis addr":      func(c *fileConfig) { c.Sessions.Driver = "redis" },
		"smtp host":       func(c *fileConfig) { c.Mail.Driver = "smtp" },
		"google secret":   func(c *fileConfig) { c.Google.ClientID = "abc" },
		"bad duration":    func(c *fileConfig) { c.SessionTTL = "soon" },
		"sessions driver": func(c *fileConfig) { c.Sessions.Driver = "etcd" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultFileConfig()
			cfg.JWTSecret = secret
			mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)
	users, closeFn, err := openUsers(context.Background(), usersConfig{Driver: "memory"}, hasher)
	require.NoError(t, err)
	assert.Nil(t, closeFn)

	logger := log.New(io.Discard, "", 0)
	seed := adminSeed{Email: "boss@example.com", Password: "Admin#Secret77x"}
	require.NoError(t, seedAdmin(context.Background(), users, seed, logger))
	require.NoError(t, seedAdmin(context.Background(), users, seed, logger))

	u, err := users.GetUserByEmail(context.Background(), "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Role)
	assert.Equal(t, "Administrador", u.Name)
}

func TestOpenRedisAndMailer(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	client, closeFn, err := openRedis(sessionsConfig{Driver: "memory"}, logger)
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Nil(t, closeFn)

	client, closeFn, err = openRedis(sessionsConfig{Driver: "miniredis"}, logger)
	require.NoError(t, err)
	require.NoError(t, client.Ping(context.Background()).Err())
	require.NoError(t, closeFn())

	m, err := newMailer(mailConfig{Driver: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, mailer.LogMailer{}, m)

	m, err = newMailer(mailConfig{Driver: "smtp", Host: "smtp.example.com", From: "a@example.com"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &mailer.SMTPMailer{}, m)

	var _ dualAuth.Mailer = m
}

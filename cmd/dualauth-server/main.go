// Command dualauth-server runs the dualAuth HTTP API.
//
//	dualauth-server -config /etc/dualauth/config.toml
//
// Every file setting can be overridden with a DUALAUTH_* environment
// variable; see config.go.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/httpapi"
	"github.com/MrEthical07/dualAuth/mailer"
	"github.com/MrEthical07/dualAuth/metrics/export/prometheus"
	"github.com/MrEthical07/dualAuth/password"
	"github.com/MrEthical07/dualAuth/provider/google"
	"github.com/MrEthical07/dualAuth/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("DUALAUTH_CONFIG"), "path to a .toml or .yaml config file")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("dualauth-server: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("dualauth-server: %v", err)
	}
	logger.Printf("dualauth-server: stopped cleanly")
}

type closers []func() error

func (c closers) close(logger *log.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Printf("dualauth-server: close: %v", err)
		}
	}
}

func run(ctx context.Context, cfg fileConfig, logger *log.Logger) error {
	var cleanup closers
	defer func() { cleanup.close(logger) }()

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}

	users, closeUsers, err := openUsers(ctx, cfg.Users, hasher)
	if err != nil {
		return err
	}
	if closeUsers != nil {
		cleanup = append(cleanup, closeUsers)
	}
	if err := seedAdmin(ctx, users, cfg.Admin, logger); err != nil {
		return err
	}

	engineCfg := cfg.engineConfig()
	for _, w := range engineCfg.Lint() {
		logger.Printf("dualauth-server: config warning %s: %s", w.Code, w.Message)
	}

	builder := dualAuth.New().
		WithConfig(engineCfg).
		WithUserRepository(users).
		WithLogger(logger)

	client, closeRedis, err := openRedis(cfg.Sessions, logger)
	if err != nil {
		return err
	}
	if client != nil {
		cleanup = append(cleanup, closeRedis)
		builder.WithRedis(client)
	}

	m, err := newMailer(cfg.Mail, logger)
	if err != nil {
		return err
	}
	builder.WithMailer(m)

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	cleanup = append(cleanup, func() error { engine.Close(); return nil })

	opts := httpapi.Options{
		Metrics:         prometheus.New(engine).Handler(),
		InsecureCookies: cfg.Environment == "development",
		Logger:          logger,
	}
	if cfg.Google.enabled() {
		provider, err := google.New(ctx, google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		})
		if err != nil {
			return fmt.Errorf("google provider: %w", err)
		}
		opts.Google = provider
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.New(engine, opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("dualauth-server: listening on %s (%s)", cfg.Listen, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Printf("dualauth-server: shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type userStore interface {
	dualAuth.UserRepository
	dualAuth.AccountCreator
}

func openUsers(ctx context.Context, cfg usersConfig, hasher *password.Argon2) (userStore, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := userstore.OpenSQLite(ctx, cfg.Path, hasher)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := userstore.NewMemoryStore(hasher)
		return s, nil, err
	}
}

func seedAdmin(ctx context.Context, users userStore, seed adminSeed, logger *log.Logger) error {
	if seed.Email == "" {
		return nil
	}
	if _, err := users.GetUserByEmail(ctx, seed.Email); err == nil {
		return nil
	} else if !errors.Is(err, dualAuth.ErrUserNotFound) {
		return err
	}
	name := seed.Name
	if name == "" {
		name = "Administrador"
	}
	u, err := users.CreateUser(ctx, dualAuth.NewAccount{Email: seed.Email, Name: name, Password: seed.Password, Role: "admin"})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Printf("dualauth-server: created admin %s (%s)", u.Email, u.ID)
	return nil
}

// openRedis returns nil for the memory driver. miniredis runs an
// in-process server so the Redis store can be exercised without one.
func openRedis(cfg sessionsConfig, logger *log.Logger) (redis.UniversalClient, func() error, error) {
	switch cfg.Driver {
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
		})
		return client, client.Close, nil
	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		logger.Printf("dualauth-server: using miniredis at %s", mr.Addr())
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		return client, func() error {
			err := client.Close()
			mr.Close()
			return err
		}, nil
	default:
		return nil, nil, nil
	}
}

func newMailer(cfg mailConfig, logger *log.Logger) (dualAuth.Mailer, error) {
	if cfg.Driver == "smtp" {
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return mailer.LogMailer{Logger: logger}, nil
}

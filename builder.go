package dualAuth

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/dualAuth/connectivity"
	"github.com/MrEthical07/dualAuth/internal/audit"
	"github.com/MrEthical07/dualAuth/internal/codes"
	"github.com/MrEthical07/dualAuth/internal/throttle"
	"github.com/MrEthical07/dualAuth/jwt"
	"github.com/MrEthical07/dualAuth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. It is single-use: Build may succeed once.
type Builder struct {
	config Config

	users    UserRepository
	creator  AccountCreator
	mailer   Mailer
	checker  connectivity.Checker
	sessions session.Store
	redis    redis.UniversalClient
	sink     AuditSink
	logger   *log.Logger

	metricsSet bool
	latencySet bool
	metricsOn  bool
	latencyOn  bool

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserRepository sets the required user store. If it also implements
// AccountCreator it is used for account creation unless overridden.
func (b *Builder) WithUserRepository(repo UserRepository) *Builder {
	b.users = repo
	return b
}

func (b *Builder) WithAccountCreator(c AccountCreator) *Builder {
	b.creator = c
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithConnectivity replaces the TCP probe built from Config.Connectivity.
func (b *Builder) WithConnectivity(c connectivity.Checker) *Builder {
	b.checker = c
	return b
}

// WithSessionStore sets an explicit store. It takes precedence over WithRedis.
func (b *Builder) WithSessionStore(s session.Store) *Builder {
	b.sessions = s
	return b
}

// WithRedis backs sessions with Redis so every instance sees the same
// single-session state.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(l *log.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metricsSet = true
	b.metricsOn = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.latencySet = true
	b.latencyOn = enabled
	return b
}

// Build validates the configuration and starts the session sweeper. The
// returned Engine must be closed.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user repository is required")
	}

	cfg := cloneConfig(b.config)
	if b.metricsSet {
		cfg.Metrics.Enabled = b.metricsOn
	}
	if b.latencySet {
		cfg.Metrics.EnableLatencyHistograms = b.latencyOn
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	hasher, err := codes.NewHasher(cfg.Codes.OfflineHashCost)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}

	store := b.sessions
	if store == nil && b.redis != nil {
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}
	if store == nil {
		store = session.NewMemoryStore()
	}

	checker := b.checker
	if checker == nil {
		checker = connectivity.NewProbe(connectivity.Config{
			Address:        cfg.Connectivity.Address,
			DialTimeout:    cfg.Connectivity.DialTimeout,
			OverallTimeout: cfg.Connectivity.OverallTimeout,
		})
	}

	creator := b.creator
	if creator == nil {
		creator, _ = b.users.(AccountCreator)
	}

	sink := b.sink
	if sink == nil {
		sink = audit.NewLogSink(logger)
	}

	e := &Engine{
		config:   cfg,
		users:    b.users,
		creator:  creator,
		mailer:   b.mailer,
		checker:  checker,
		sessions: store,
		tokens:   tokens,
		hasher:   hasher,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, sink),
		now: defaultNow,
	}
	if t := cfg.Security.LoginThrottle; t.Enabled {
		if b.redis != nil {
			e.throttle = throttle.NewRedisWindow(b.redis, cfg.Session.RedisPrefix, t.PerMinute, time.Minute)
		} else {
			e.throttle = throttle.New(throttle.Config{PerMinute: t.PerMinute, Burst: t.Burst})
		}
	}
	e.sweeper = session.StartSweeper(store, cfg.Session.SweepInterval, e.reportSweep)

	b.built = true
	return e, nil
}

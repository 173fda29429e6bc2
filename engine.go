package dualAuth

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/dualAuth/connectivity"
	"github.com/MrEthical07/dualAuth/internal/audit"
	"github.com/MrEthical07/dualAuth/internal/codes"
	"github.com/MrEthical07/dualAuth/internal/throttle"
	"github.com/MrEthical07/dualAuth/jwt"
	"github.com/MrEthical07/dualAuth/password"
	"github.com/MrEthical07/dualAuth/session"
)

// Engine runs the login state machine, the token gate and the session
// administration operations. Create it with New().Build().
type Engine struct {
	config Config

	users    UserRepository
	creator  AccountCreator
	mailer   Mailer
	checker  connectivity.Checker
	sessions session.Store
	tokens   *jwt.Manager
	hasher   *codes.Hasher
	throttle throttle.Gate
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *log.Logger
	sweeper  *session.Sweeper

	mailWG sync.WaitGroup
	closed atomic.Bool
	now    func() time.Time
}

func defaultNow() time.Time { return time.Now() }

// Close stops the sweeper, waits for in-flight emails and flushes
// notifications. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.sweeper.Stop()
	e.mailWG.Wait()
	e.audit.Close()
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Sessions exposes the underlying store.
func (e *Engine) Sessions() session.Store {
	return e.sessions
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AssessPassword scores a candidate password. info may be nil.
func (e *Engine) AssessPassword(pw string, info *password.UserInfo) password.Assessment {
	return password.AssessWithClock(pw, info, e.now())
}

func (e *Engine) reportSweep(removed int, err error) {
	if p, ok := e.throttle.(interface{ Prune() int }); ok {
		p.Prune()
	}
	if err != nil {
		e.logger.Printf("dualAuth: session sweep failed: %v", err)
		return
	}
	e.metrics.Add(MetricSessionSwept, uint64(removed))
}

// loadUser maps repository absence to ErrUserNotFound and anything else
// to an internal error.
func (e *Engine) loadUser(ctx context.Context, op, userID string) (*User, error) {
	u, err := e.users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		return nil, internalError(op, err)
	case u == nil:
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (e *Engine) requireAdmin(ctx context.Context, op, callerID string) (*User, error) {
	caller, err := e.loadUser(ctx, op, callerID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if caller.Role != e.config.Security.AdminRole {
		return nil, ErrForbidden
	}
	return caller, nil
}

// evict removes a session and logs failures; callers never fail on it.
func (e *Engine) evict(ctx context.Context, userID, reason string) bool {
	if userID == "" {
		return false
	}
	existed, err := e.sessions.Remove(ctx, userID)
	if err != nil {
		e.logger.Printf("dualAuth: evict session user=%s reason=%s: %v", userID, reason, err)
		return false
	}
	if existed {
		e.metrics.Inc(MetricSessionInvalidated)
	}
	return existed
}

func (e *Engine) sendAsync(op string, send func(ctx context.Context) error) {
	e.mailWG.Add(1)
	go func() {
		defer e.mailWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.config.Codes.MailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			e.metrics.Inc(MetricOTPMailFailure)
			e.logger.Printf("dualAuth: %s: %v", op, err)
		}
	}()
}

package dualAuth

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/MrEthical07/dualAuth/session"
	"github.com/MrEthical07/dualAuth/validate"
)

// ForceLogout removes targetID's session. The caller must hold the admin
// role. Removing a session that does not exist is not an error.
func (e *Engine) ForceLogout(ctx context.Context, callerID, targetID string) (ForceLogoutResult, error) {
	if err := e.ready(); err != nil {
		return ForceLogoutResult{}, err
	}
	if err := validate.ValidateFormat(validate.FieldUserID, targetID); err != nil {
		return ForceLogoutResult{}, invalidInput(err)
	}
	if _, err := e.requireAdmin(ctx, "force logout", callerID); err != nil {
		return ForceLogoutResult{}, err
	}

	existed, err := e.sessions.Remove(ctx, targetID)
	if err != nil {
		return ForceLogoutResult{}, internalError("force logout", err)
	}
	if existed {
		e.metrics.Inc(MetricSessionInvalidated)
	}
	e.metrics.Inc(MetricForcedLogout)
	e.emitAudit(ctx, EventForcedLogout, targetID, true, "", map[string]string{
		"by":         callerID,
		"hadSession": strconv.FormatBool(existed),
	})
	return ForceLogoutResult{TargetID: targetID, HadSession: existed}, nil
}

// SessionStats lists every stored session, computed at call time.
func (e *Engine) SessionStats(ctx context.Context, callerID string) (*SessionStats, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.requireAdmin(ctx, "session stats", callerID); err != nil {
		return nil, err
	}

	all, err := e.sessions.List(ctx)
	if err != nil {
		return nil, internalError("session stats", err)
	}

	now := e.now()
	stats := &SessionStats{
		Total:       len(all),
		Sessions:    make([]SessionEntry, 0, len(all)),
		GeneratedAt: now,
	}
	for i := range all {
		s := &all[i]
		live := s.Live(now)
		if live {
			stats.Active++
		}
		stats.Sessions = append(stats.Sessions, SessionEntry{
			UserID:           s.UserID,
			AuthMode:         s.AuthMode,
			CreatedAt:        s.CreatedAt,
			LastActivity:     s.LastActivity,
			ExpiresAt:        s.ExpiresAt,
			MinutesRemaining: minutesCeil(s.Remaining(now)),
			Active:           live,
		})
	}
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].UserID < stats.Sessions[j].UserID
	})
	return stats, nil
}

// Logout removes the caller's own session.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	existed, err := e.sessions.Remove(ctx, userID)
	if err != nil {
		return internalError("logout", err)
	}
	if existed {
		e.metrics.Inc(MetricSessionInvalidated)
	}
	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, EventLogout, userID, true, "", nil)
	return nil
}

// CheckSession reports the caller's session. It may evict an expired entry
// but never extends one.
func (e *Engine) CheckSession(ctx context.Context, userID string) (SessionStatus, error) {
	if err := e.ready(); err != nil {
		return SessionStatus{}, err
	}
	sess, err := e.sessions.Get(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		return SessionStatus{}, nil
	}
	if err != nil {
		return SessionStatus{}, internalError("check session", err)
	}
	now := e.now()
	return SessionStatus{
		Active:           sess.Live(now),
		AuthMode:         sess.AuthMode,
		ExpiresAt:        sess.ExpiresAt,
		MinutesRemaining: minutesCeil(sess.Remaining(now)),
	}, nil
}

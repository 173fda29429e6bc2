package dualAuth

import (
	"time"
)

// LoginState is where a user stands in the two-step login.
type LoginState int

const (
	StateAnonymous LoginState = iota
	StatePendingOnline
	StatePendingOffline
	StateVerified
)

func (s LoginState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StatePendingOnline:
		return "pending_online"
	case StatePendingOffline:
		return "pending_offline"
	case StateVerified:
		return "verified"
	default:
		return "unknown"
	}
}

func (s LoginState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State derives the pending state at now. An expired code counts as absent.
// When both codes are somehow live the online one wins, matching the order
// VerifyCode tries them in.
func (p PendingVerification) State(now time.Time) LoginState {
	switch {
	case p.OTP != "" && now.Before(p.OTPExpires):
		return StatePendingOnline
	case p.OfflineCodeHash != "" && now.Before(p.OfflineCodeExpires):
		return StatePendingOffline
	default:
		return StateAnonymous
	}
}

func pendingStateFor(mode Mode) LoginState {
	if mode == ModeOffline {
		return StatePendingOffline
	}
	return StatePendingOnline
}

// codeHint guesses which code the caller needed from the recorded state
// and the submitted code length.
func codeHint(state LoginState, submitted string) string {
	switch state {
	case StatePendingOnline:
		return "expected the 6-digit code sent by email"
	case StatePendingOffline:
		return "expected the 4-digit code shown on screen"
	case StateVerified:
		return "code already used"
	case StateAnonymous:
		if len(submitted) == 4 {
			return "the 4-digit code may have expired; sign in again"
		}
		return "the code may have expired; sign in again"
	default:
		return "sign in again"
	}
}

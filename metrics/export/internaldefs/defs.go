package internaldefs

import (
	"context"
	"sort"
	"strconv"
	"time"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/session"
)

// Series is one engine counter exported as a label value of its family.
type Series struct {
	ID    dualAuth.MetricID
	Value string
}

// Family groups counters that share a name and differ by a single label.
// Label is empty for families with one unlabelled series.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// Families lists every exported counter family in a stable order.
var Families = []Family{
	{
		Name:  "dualauth_logins_total",
		Help:  "Password logins by outcome. code_issued logins still need the one-time code.",
		Label: "outcome",
		Series: []Series{
			{dualAuth.MetricLoginSuccess, "code_issued"},
			{dualAuth.MetricLoginFailure, "bad_credentials"},
			{dualAuth.MetricLoginConflict, "session_active"},
			{dualAuth.MetricLoginThrottled, "throttled"},
		},
	},
	{
		Name:  "dualauth_login_codes_total",
		Help:  "One-time codes issued, by the connectivity mode the login ran in.",
		Label: "mode",
		Series: []Series{
			{dualAuth.MetricLoginOnline, "online"},
			{dualAuth.MetricLoginOffline, "offline"},
		},
	},
	{
		Name:  "dualauth_code_verifications_total",
		Help:  "Second-step code checks by result.",
		Label: "result",
		Series: []Series{
			{dualAuth.MetricCodeVerifySuccess, "accepted"},
			{dualAuth.MetricCodeVerifyFailure, "rejected"},
		},
	},
	{
		Name:  "dualauth_token_gate_decisions_total",
		Help:  "Bearer tokens seen by the session-aware token gate, by decision.",
		Label: "decision",
		Series: []Series{
			{dualAuth.MetricGateAccepted, "accepted"},
			{dualAuth.MetricGateRejected, "rejected"},
		},
	},
	{
		Name:  "dualauth_session_events_total",
		Help:  "Session lifecycle transitions. swept counts entries the background sweeper found expired.",
		Label: "event",
		Series: []Series{
			{dualAuth.MetricSessionCreated, "created"},
			{dualAuth.MetricFederatedSession, "federated_bound"},
			{dualAuth.MetricSessionInvalidated, "invalidated"},
			{dualAuth.MetricSessionSwept, "swept"},
			{dualAuth.MetricLogout, "logout"},
			{dualAuth.MetricForcedLogout, "forced_logout"},
		},
	},
	{
		Name:  "dualauth_password_events_total",
		Help:  "Password lifecycle events, including candidates refused by the strength policy.",
		Label: "event",
		Series: []Series{
			{dualAuth.MetricPasswordChangeSuccess, "changed"},
			{dualAuth.MetricPasswordPolicyRejected, "policy_rejected"},
			{dualAuth.MetricPasswordResetIssued, "reset_issued"},
			{dualAuth.MetricPasswordResetConfirmed, "reset_confirmed"},
		},
	},
	{
		Name:   "dualauth_accounts_created_total",
		Help:   "Accounts registered through the engine or a federated first sign-in.",
		Series: []Series{{dualAuth.MetricAccountCreated, ""}},
	},
	{
		Name:   "dualauth_connectivity_offline_total",
		Help:   "Logins whose reachability check failed and fell back to offline codes.",
		Series: []Series{{dualAuth.MetricProbeOffline, ""}},
	},
	{
		Name:   "dualauth_otp_mail_failures_total",
		Help:   "Online login codes the mailer could not deliver.",
		Series: []Series{{dualAuth.MetricOTPMailFailure, ""}},
	},
}

// GateLatency describes the only engine histogram.
var GateLatency = struct {
	ID   dualAuth.MetricID
	Name string
	Help string
}{
	ID:   dualAuth.MetricValidateLatency,
	Name: "dualauth_token_gate_duration_seconds",
	Help: "Time to decide a bearer token, session and user lookups included.",
}

// Bounds are the finite bucket upper bounds in seconds. The engine keeps one
// extra overflow bucket after them.
var Bounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BoundLabel formats bucket i as a Prometheus le value; the overflow bucket
// is "+Inf".
func BoundLabel(i int) string {
	if i >= len(Bounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(Bounds[i], 'g', -1, 64)
}

// Cumulative turns per-bucket counts into running totals over len(Bounds)+1
// buckets. Missing entries count as zero and extra entries are ignored.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(Bounds)+1)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}

// SessionBucket counts stored sessions sharing an auth mode and liveness.
type SessionBucket struct {
	Mode  session.AuthMode
	State string
	Count uint64
}

// SessionBuckets lists the store and counts its entries as "live" or
// "stale" at now. Both known auth modes are always reported; buckets come
// back sorted by mode then state.
func SessionBuckets(ctx context.Context, store session.Store, now time.Time) ([]SessionBucket, error) {
	all, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	type key struct {
		mode  session.AuthMode
		state string
	}
	counts := map[key]uint64{
		{session.AuthLocal, "live"}:   0,
		{session.AuthLocal, "stale"}:  0,
		{session.AuthGoogle, "live"}:  0,
		{session.AuthGoogle, "stale"}: 0,
	}
	for i := range all {
		state := "stale"
		if all[i].Live(now) {
			state = "live"
		}
		counts[key{all[i].AuthMode, state}]++
	}

	out := make([]SessionBucket, 0, len(counts))
	for k, n := range counts {
		out = append(out, SessionBucket{Mode: k.mode, State: k.state, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mode != out[j].Mode {
			return out[i].Mode < out[j].Mode
		}
		return out[i].State < out[j].State
	})
	return out, nil
}

// Package connectivity decides whether the process can currently reach the
// outside world. The answer selects between the online (emailed OTP) and
// offline (locally displayed code) login paths.
package connectivity

import (
	"context"
	"net"
	"time"
)

// Checker reports reachability. Implementations must return quickly.
type Checker interface {
	Online(ctx context.Context) bool
}

// Config controls the TCP handshake probe.
type Config struct {
	Address        string
	DialTimeout    time.Duration
	OverallTimeout time.Duration
}

// DefaultConfig dials a public DNS resolver with sub-second budgets.
func DefaultConfig() Config {
	return Config{
		Address:        "8.8.8.8:53",
		DialTimeout:    800 * time.Millisecond,
		OverallTimeout: time.Second,
	}
}

// Probe performs a single TCP handshake per call. There are no retries.
type Probe struct {
	cfg    Config
	dialer net.Dialer
}

func NewProbe(cfg Config) *Probe {
	def := DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.OverallTimeout <= 0 {
		cfg.OverallTimeout = def.OverallTimeout
	}
	return &Probe{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

// Online returns true only when the handshake completes before both the dial
// timeout and the overall timeout. A handshake still pending when the overall
// timer fires is abandoned and its connection closed once it resolves.
func (p *Probe) Online(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan bool, 1)
	go func() {
		conn, err := p.dialer.DialContext(dialCtx, "tcp", p.cfg.Address)
		if err != nil {
			result <- false
			return
		}
		_ = conn.Close()
		result <- true
	}()

	timer := time.NewTimer(p.cfg.OverallTimeout)
	defer timer.Stop()

	select {
	case ok := <-result:
		return ok
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Static is a Checker with a fixed answer, used to force a mode.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }

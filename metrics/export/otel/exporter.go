package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/metrics/export/internaldefs"
	"github.com/MrEthical07/dualAuth/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source supplies counter snapshots. *dualAuth.Engine implements it.
type Source interface {
	MetricsSnapshot() dualAuth.MetricsSnapshot
	AuditDropped() uint64
}

// family pairs a counter instrument with the pre-built attribute set of each
// of its series.
type family struct {
	instrument metric.Int64ObservableCounter
	ids        []dualAuth.MetricID
	attrs      []metric.ObserveOption
}

// Exporter publishes engine metrics through one registered callback. Close
// unregisters it.
type Exporter struct {
	source       Source
	sessions     session.Store
	now          func() time.Time
	families     []family
	gateBuckets  metric.Int64ObservableGauge
	gateCount    metric.Int64ObservableGauge
	bucketAttrs  []metric.ObserveOption
	auditDropped metric.Int64ObservableCounter
	sessionGauge metric.Int64ObservableGauge
	storeUp      metric.Int64ObservableGauge
	registration metric.Registration
}

// New exports the engine's counters and the sessions in its store.
func New(meter metric.Meter, engine *dualAuth.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewFromSource(meter, engine, engine.Sessions())
}

// NewFromSource exports source; sessions may be nil to skip the session
// gauges.
func NewFromSource(meter metric.Meter, source Source, sessions session.Store) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	x := &Exporter{source: source, sessions: sessions, now: time.Now}
	var observables []metric.Observable

	for _, def := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		f := family{instrument: ins}
		for _, s := range def.Series {
			f.ids = append(f.ids, s.ID)
			if def.Label == "" {
				f.attrs = append(f.attrs, metric.WithAttributes())
			} else {
				f.attrs = append(f.attrs, metric.WithAttributes(attribute.String(def.Label, s.Value)))
			}
		}
		x.families = append(x.families, f)
		observables = append(observables, ins)
	}

	var err error
	gate := internaldefs.GateLatency
	if x.gateBuckets, err = meter.Int64ObservableGauge(gate.Name+"_bucket",
		metric.WithDescription(gate.Help+" Cumulative count per le bound.")); err != nil {
		return nil, fmt.Errorf("gauge %s_bucket: %w", gate.Name, err)
	}
	if x.gateCount, err = meter.Int64ObservableGauge(gate.Name+"_count",
		metric.WithDescription("Bearer tokens timed by the token gate.")); err != nil {
		return nil, fmt.Errorf("gauge %s_count: %w", gate.Name, err)
	}
	for i := 0; i <= len(internaldefs.Bounds); i++ {
		x.bucketAttrs = append(x.bucketAttrs, metric.WithAttributes(attribute.String("le", internaldefs.BoundLabel(i))))
	}
	if x.auditDropped, err = meter.Int64ObservableCounter("dualauth_audit_dropped_total",
		metric.WithDescription("Notification events dropped because the dispatch buffer was full.")); err != nil {
		return nil, fmt.Errorf("counter dualauth_audit_dropped_total: %w", err)
	}
	observables = append(observables, x.gateBuckets, x.gateCount, x.auditDropped)

	if sessions != nil {
		if x.sessionGauge, err = meter.Int64ObservableGauge("dualauth_sessions",
			metric.WithDescription("Stored sessions by auth mode. stale entries are expired but not yet swept.")); err != nil {
			return nil, fmt.Errorf("gauge dualauth_sessions: %w", err)
		}
		if x.storeUp, err = meter.Int64ObservableGauge("dualauth_session_store_up",
			metric.WithDescription("1 when the session store answered the last collection.")); err != nil {
			return nil, fmt.Errorf("gauge dualauth_session_store_up: %w", err)
		}
		observables = append(observables, x.sessionGauge, x.storeUp)
	}

	x.registration, err = meter.RegisterCallback(x.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return x, nil
}

func (x *Exporter) observe(ctx context.Context, o metric.Observer) error {
	snapshot := x.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, f := range x.families {
			for i, id := range f.ids {
				o.ObserveInt64(f.instrument, int64(snapshot.Counters[id]), f.attrs[i])
			}
		}
	}

	if raw, ok := snapshot.Histograms[internaldefs.GateLatency.ID]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, v := range cumulative {
			o.ObserveInt64(x.gateBuckets, int64(v), x.bucketAttrs[i])
		}
		o.ObserveInt64(x.gateCount, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(x.auditDropped, int64(x.source.AuditDropped()))

	if x.sessions == nil {
		return nil
	}
	buckets, err := internaldefs.SessionBuckets(ctx, x.sessions, x.now())
	if err != nil {
		o.ObserveInt64(x.storeUp, 0)
		return nil
	}
	o.ObserveInt64(x.storeUp, 1)
	for _, b := range buckets {
		o.ObserveInt64(x.sessionGauge, int64(b.Count), metric.WithAttributes(
			attribute.String("auth_mode", string(b.Mode)),
			attribute.String("state", b.State),
		))
	}
	return nil
}

func (x *Exporter) Close() error {
	if x == nil || x.registration == nil {
		return nil
	}
	return x.registration.Unregister()
}

package prometheus

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	dualAuth "github.com/MrEthical07/dualAuth"
	"github.com/MrEthical07/dualAuth/metrics/export/internaldefs"
	"github.com/MrEthical07/dualAuth/session"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source supplies counter snapshots. *dualAuth.Engine implements it.
type Source interface {
	MetricsSnapshot() dualAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine counters and, when a session store is attached,
// a gauge of stored sessions by auth mode and liveness.
type Exporter struct {
	source   Source
	sessions session.Store
	now      func() time.Time
}

// New exports engine counters plus the sessions held by the engine's store.
func New(engine *dualAuth.Engine) *Exporter {
	return &Exporter{source: engine, sessions: engine.Sessions(), now: time.Now}
}

// NewFromSource exports source. sessions may be nil to omit the session
// gauges.
func NewFromSource(source Source, sessions session.Store) *Exporter {
	return &Exporter{source: source, sessions: sessions, now: time.Now}
}

// Handler serves Render for the request context.
func (x *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(x.Render(r.Context())))
	})
}

// Render returns the exposition text. Counter families are left out while
// engine metrics are disabled.
func (x *Exporter) Render(ctx context.Context) string {
	if x == nil || x.source == nil {
		return ""
	}

	var w writer
	snapshot := x.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, f := range internaldefs.Families {
			w.header(f.Name, f.Help, "counter")
			for _, s := range f.Series {
				w.sample(f.Name, snapshot.Counters[s.ID], f.Label, s.Value)
			}
		}
	}

	if raw, ok := snapshot.Histograms[internaldefs.GateLatency.ID]; ok {
		name := internaldefs.GateLatency.Name
		cumulative := internaldefs.Cumulative(raw)
		w.header(name, internaldefs.GateLatency.Help, "histogram")
		for i, v := range cumulative {
			w.sample(name+"_bucket", v, "le", internaldefs.BoundLabel(i))
		}
		// bucket counts only; no _sum is tracked
		w.sample(name+"_count", cumulative[len(cumulative)-1])
	}

	if dropped := x.source.AuditDropped(); dropped > 0 || len(snapshot.Counters) > 0 {
		w.header("dualauth_audit_dropped_total", "Notification events dropped because the dispatch buffer was full.", "counter")
		w.sample("dualauth_audit_dropped_total", dropped)
	}

	if x.sessions != nil {
		x.renderSessions(ctx, &w)
	}
	return w.String()
}

func (x *Exporter) renderSessions(ctx context.Context, w *writer) {
	buckets, err := internaldefs.SessionBuckets(ctx, x.sessions, x.now())

	w.header("dualauth_session_store_up", "1 when the session store answered the last scrape.", "gauge")
	if err != nil {
		w.sample("dualauth_session_store_up", 0)
		return
	}
	w.sample("dualauth_session_store_up", 1)

	w.header("dualauth_sessions", "Stored sessions by auth mode. stale entries are expired but not yet swept.", "gauge")
	for _, b := range buckets {
		w.sample("dualauth_sessions", b.Count, "auth_mode", string(b.Mode), "state", b.State)
	}
}

type writer struct {
	strings.Builder
}

func (w *writer) header(name, help, kind string) {
	w.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.WriteString("# TYPE " + name + " " + kind + "\n")
}

// sample writes one line. labels alternate name and value; pairs with an
// empty name are skipped.
func (w *writer) sample(name string, v uint64, labels ...string) {
	w.WriteString(name)
	open := false
	for i := 0; i+1 < len(labels); i += 2 {
		if labels[i] == "" {
			continue
		}
		if open {
			w.WriteByte(',')
		} else {
			w.WriteByte('{')
			open = true
		}
		w.WriteString(labels[i] + `="` + escapeLabel(labels[i+1]) + `"`)
	}
	if open {
		w.WriteByte('}')
	}
	w.WriteString(" " + strconv.FormatUint(v, 10) + "\n")
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

func escapeLabel(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`).Replace(s)
}

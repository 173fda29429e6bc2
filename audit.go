package dualAuth

import (
	"context"
	"io"
	"log"

	"github.com/MrEthical07/dualAuth/internal/audit"
	"github.com/google/uuid"
)

// AuditEvent is a notification delivered to the configured sink.
type AuditEvent = audit.Event

// AuditSink receives notification events. Emit runs on the dispatcher
// goroutine; a slow sink delays later events but never an Engine call.
type AuditSink = audit.Sink

type NoOpSink = audit.NoOpSink
type ChannelSink = audit.ChannelSink
type JSONWriterSink = audit.JSONWriterSink
type LogSink = audit.LogSink

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewLogSink(logger *log.Logger) *LogSink { return audit.NewLogSink(logger) }

// Event types. The wire names are part of the notification contract.
const (
	EventLoginSuccess        = "login_exitoso"
	EventVerifySuccess       = "verificacion_exitosa"
	EventSuspiciousActivity  = "actividad_sospechosa"
	EventSessionConflict     = "sesion_activa_rechazada"
	EventLogout              = "logout"
	EventForcedLogout        = "logout_forzado"
	EventPasswordChanged     = "password_cambiado"
	EventPasswordResetIssued = "password_reset_emitido"
	EventFederatedSession    = "sesion_federada"
	EventAccountCreated      = "cuenta_creada"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, userID string, success bool, reason string, meta map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	e.audit.Emit(ctx, AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Success:   success,
		Error:     reason,
		Metadata:  meta,
	})
}

// AuditDropped returns how many events were dropped because the buffer
// was full or the sink panicked.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}


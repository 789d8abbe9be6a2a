package core

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	obserrors "github.com/target/mmk-auth/internal/observability/errors"
	"github.com/target/mmk-auth/internal/observability/statsd"
	"github.com/target/mmk-auth/internal/ports"
)

// auditStripes bounds the number of per-identity locks.
const auditStripes = 64

// AuditLogOptions groups dependencies for AuditLog.
type AuditLogOptions struct {
	Sink    ports.AuditSink // Optional: events are only logged when nil
	Clock   ports.Clock     // Optional
	Logger  *slog.Logger    // Optional
	Metrics statsd.Sink     // Optional
}

// AuditLog appends security events to the sink. It never returns an error:
// sink failures are logged and counted so they cannot change an
// authentication decision.
type AuditLog struct {
	// stripes serialize writes per username so the sink sees each identity's
	// events in invocation order.
	stripes [auditStripes]sync.Mutex

	sink    ports.AuditSink
	clock   ports.Clock
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewAuditLog constructs an AuditLog.
func NewAuditLog(opts AuditLogOptions) *AuditLog {
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{
		sink:    opts.Sink,
		clock:   clock,
		logger:  logger.With("component", "audit_log"),
		metrics: opts.Metrics,
	}
}

// Record stamps event with an id and timestamp when missing and appends it.
func (a *AuditLog) Record(ctx context.Context, event domainauth.AuditEvent) {
	mu := &a.stripes[stripe(event.Username)]
	mu.Lock()
	defer mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = a.clock.Now()
	}

	a.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"outcome", event.Outcome,
		"username", event.Username,
		"detail", event.Detail,
	)

	if a.sink == nil {
		return
	}
	if err := a.sink.AppendAuditEvent(ctx, event); err != nil {
		a.logger.ErrorContext(ctx, "append audit event failed",
			"event_id", event.ID,
			"action", event.Action,
			"username", event.Username,
			"error", err,
		)
		if a.metrics != nil {
			a.metrics.Count("auth.audit.write_failed", 1, map[string]string{
				"action":      string(event.Action),
				"error_class": obserrors.Classify(err),
			})
		}
	}
}

func stripe(username string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return h.Sum32() % auditStripes
}

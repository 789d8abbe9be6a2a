// Package metrics holds the metric names and tag conventions emitted by the
// auth core.
package metrics

import (
	"time"

	obserrors "github.com/target/mmk-auth/internal/observability/errors"
	"github.com/target/mmk-auth/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// AuthMetric captures one authentication attempt for metric emission.
type AuthMetric struct {
	Result   string
	Code     string
	Duration time.Duration
	Err      error
}

// EmitAuthAttempt counts an authentication attempt and records its latency.
func EmitAuthAttempt(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Code != "" {
		tags["code"] = in.Code
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.attempt", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.duration", in.Duration, CloneTags(tags))
	}
}

// EmitLockout counts a key crossing the lockout threshold.
func EmitLockout(sink statsd.Sink, kind string) {
	if sink == nil {
		return
	}
	sink.Count("auth.lockout", 1, map[string]string{"kind": kind})
}

// EmitSessionEnded counts sessions leaving the live index by reason.
func EmitSessionEnded(sink statsd.Sink, reason string, n int) {
	if sink == nil || n <= 0 {
		return
	}
	sink.Count("session.ended", int64(n), map[string]string{"reason": reason})
}

// LiveState is a point-in-time view of the in-memory tables.
type LiveState struct {
	Sessions       int
	LockoutKeys    int
	PermissionsRev uint64
}

// EmitLiveState publishes gauges for the in-memory tables.
func EmitLiveState(sink statsd.Sink, st LiveState) {
	if sink == nil {
		return
	}
	sink.Gauge("session.live", float64(st.Sessions), nil)
	sink.Gauge("lockout.tracked_keys", float64(st.LockoutKeys), nil)
	sink.Gauge("permissions.version", float64(st.PermissionsRev), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

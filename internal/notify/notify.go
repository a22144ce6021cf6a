package notify

import (
	"context"
	"fmt"
	"time"

	"promptvc.dev/internal/leak"
	"promptvc.dev/internal/obs"
)

// Outcome classifies a single delivery attempt. Callers must inspect it or
// deliberately discard it; nothing here is retried or propagated to clients.
type Outcome string

const (
	OutcomeDelivered           Outcome = "delivered"
	OutcomeSkippedUnconfigured Outcome = "skipped_unconfigured"
	OutcomeSkippedNoWorkspace  Outcome = "skipped_no_workspace"
	OutcomeNetworkError        Outcome = "network_error"
	OutcomeHTTPError           Outcome = "http_error"
)

// Result is the explicit return of a delivery attempt.
type Result struct {
	Outcome Outcome
	Status  int // HTTP status when Outcome is OutcomeHTTPError
	Err     error
}

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeHTTPError:
		return fmt.Sprintf("%s (status %d)", r.Outcome, r.Status)
	case OutcomeNetworkError:
		return fmt.Sprintf("%s (%v)", r.Outcome, r.Err)
	default:
		return string(r.Outcome)
	}
}

// Sink delivers one enriched event to an external destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, workspaceID string, evt leak.Event) Result
}

// Hub fans an event out to every configured sink, each in its own goroutine.
// Delivery is best-effort: results are logged and counted, never surfaced to
// the reporting connection.
type Hub struct {
	sinks   []Sink
	timeout time.Duration
}

// NewHub creates a Hub over the given sinks. timeout bounds each delivery;
// zero means 10 seconds.
func NewHub(timeout time.Duration, sinks ...Sink) *Hub {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Hub{sinks: sinks, timeout: timeout}
}

// Dispatch hands the event to all sinks without blocking the caller.
func (h *Hub) Dispatch(workspaceID string, evt leak.Event) {
	for _, sink := range h.sinks {
		go func(s Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
			defer cancel()
			res := s.Deliver(ctx, workspaceID, evt)
			obs.NotifyDeliveriesTotal.WithLabelValues(string(res.Outcome)).Inc()
			fields := map[string]any{
				"sink":      s.Name(),
				"workspace": workspaceID,
				"session":   evt.SessionID,
				"rule":      evt.RuleID,
				"outcome":   res.String(),
			}
			switch res.Outcome {
			case OutcomeDelivered:
				obs.Info("notification_delivered", fields)
			case OutcomeSkippedUnconfigured:
				// Unconfigured sinks stay quiet; nothing is wrong.
			default:
				if res.Err != nil {
					fields["error"] = res.Err.Error()
				}
				obs.Warn("notification_not_delivered", fields)
			}
		}(sink)
	}
}

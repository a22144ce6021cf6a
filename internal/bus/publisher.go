package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"promptvc.dev/internal/leak"
	"promptvc.dev/internal/notify"
	"promptvc.dev/internal/obs"
)

const subjectPrefix = "leaks."

// Publisher mirrors relayed leak events onto a NATS subject per workspace so
// other backend consumers (indexers, alerting) can subscribe without touching
// the gateway. An unconfigured publisher is a silent no-op.
type Publisher struct {
	conn *nats.Conn
}

var _ notify.Sink = (*Publisher)(nil)

// Connect dials NATS. An empty URL returns a disabled publisher, not an error.
func Connect(natsURL string) (*Publisher, error) {
	if natsURL == "" {
		return &Publisher{}, nil
	}
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	obs.Info("bus_connected", map[string]any{"url": natsURL})
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Name() string { return "bus" }

// Enabled reports whether a NATS connection was configured.
func (p *Publisher) Enabled() bool { return p.conn != nil }

func (p *Publisher) Deliver(ctx context.Context, workspaceID string, evt leak.Event) notify.Result {
	if p.conn == nil {
		return notify.Result{Outcome: notify.OutcomeSkippedUnconfigured}
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return notify.Result{Outcome: notify.OutcomeNetworkError, Err: err}
	}
	if err := p.conn.Publish(Subject(workspaceID), data); err != nil {
		return notify.Result{Outcome: notify.OutcomeNetworkError, Err: err}
	}
	return notify.Result{Outcome: notify.OutcomeDelivered}
}

// Subject returns the per-workspace subject leak events are published on.
func Subject(workspaceID string) string {
	return subjectPrefix + workspaceID
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		obs.Info("bus_disconnected", nil)
	}
}

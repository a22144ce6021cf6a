package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"promptvc.dev/internal/leak"
	"promptvc.dev/internal/store"
)

// notifierPayload is the wire format of the external notifier microservice.
type notifierPayload struct {
	UserID        string     `json:"userId"`
	WorkspaceSlug string     `json:"workspaceSlug"`
	Event         leak.Event `json:"event"`
}

// HTTPDispatcher posts enriched events to the notifier microservice,
// addressed to the owner of the workspace. An empty endpoint disables it.
type HTTPDispatcher struct {
	endpoint string
	store    store.Store
	client   *http.Client
}

var _ Sink = (*HTTPDispatcher)(nil)

func NewHTTPDispatcher(endpoint string, st store.Store, timeout time.Duration) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPDispatcher{
		endpoint: endpoint,
		store:    st,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDispatcher) Name() string { return "notifier" }

// Deliver resolves workspace metadata and posts the event. A workspace
// deleted between join and dispatch is a logged no-op, not a failure: room
// membership is independent of workspace existence in the datastore.
func (d *HTTPDispatcher) Deliver(ctx context.Context, workspaceID string, evt leak.Event) Result {
	if d.endpoint == "" {
		return Result{Outcome: OutcomeSkippedUnconfigured}
	}

	ws, err := d.store.FindWorkspaceMetadata(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{Outcome: OutcomeSkippedNoWorkspace}
		}
		return Result{Outcome: OutcomeNetworkError, Err: fmt.Errorf("workspace lookup: %w", err)}
	}

	body, err := json.Marshal(notifierPayload{
		UserID:        ws.OwnerID,
		WorkspaceSlug: ws.Slug,
		Event:         evt,
	})
	if err != nil {
		return Result{Outcome: OutcomeNetworkError, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/notify", bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeNetworkError, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{Outcome: OutcomeNetworkError, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Outcome: OutcomeHTTPError, Status: resp.StatusCode}
	}
	return Result{Outcome: OutcomeDelivered, Status: resp.StatusCode}
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"promptvc.dev/internal/leak"
	"promptvc.dev/internal/store"
)

type metaStore struct {
	workspaces map[string]*store.Workspace
	err        error
}

func (m *metaStore) FindSessionByToken(ctx context.Context, token string) (*store.Session, error) {
	return nil, store.ErrNotFound
}

func (m *metaStore) FindWorkspaceAccess(ctx context.Context, workspaceID, userID string) (bool, error) {
	return false, nil
}

func (m *metaStore) FindWorkspaceMetadata(ctx context.Context, workspaceID string) (*store.Workspace, error) {
	if m.err != nil {
		return nil, m.err
	}
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ws, nil
}

func testEvent() leak.Event {
	return leak.Event{
		SessionID: "s1",
		RuleID:    "aws-key",
		Severity:  leak.SeverityHigh,
		Message:   "AWS Secret Key exposed",
		Snippet:   "AKIA...",
		Source:    "cli",
		Timestamp: "2024-01-01T00:00:00Z",
		Username:  "ada",
	}
}

func TestHTTPDispatcherDelivers(t *testing.T) {
	var gotPath string
	var gotBody notifierPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := &metaStore{workspaces: map[string]*store.Workspace{
		"ws-1": {ID: "ws-1", Slug: "acme", Name: "Acme", OwnerID: "owner-1"},
	}}
	d := NewHTTPDispatcher(srv.URL, st, time.Second)

	res := d.Deliver(context.Background(), "ws-1", testEvent())
	if res.Outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %s", res)
	}
	if gotPath != "/notify" {
		t.Fatalf("expected POST /notify, got %s", gotPath)
	}
	if gotBody.UserID != "owner-1" || gotBody.WorkspaceSlug != "acme" {
		t.Fatalf("payload not addressed to workspace owner: %+v", gotBody)
	}
	if gotBody.Event.Username != "ada" || gotBody.Event.RuleID != "aws-key" {
		t.Fatalf("event fields lost in payload: %+v", gotBody.Event)
	}
}

func TestHTTPDispatcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := &metaStore{workspaces: map[string]*store.Workspace{
		"ws-1": {ID: "ws-1", Slug: "acme", OwnerID: "owner-1"},
	}}
	d := NewHTTPDispatcher(srv.URL, st, time.Second)

	res := d.Deliver(context.Background(), "ws-1", testEvent())
	if res.Outcome != OutcomeHTTPError || res.Status != http.StatusInternalServerError {
		t.Fatalf("expected http_error 500, got %s", res)
	}
}

func TestHTTPDispatcherNetworkError(t *testing.T) {
	st := &metaStore{workspaces: map[string]*store.Workspace{
		"ws-1": {ID: "ws-1", Slug: "acme", OwnerID: "owner-1"},
	}}
	// Nothing listens on this port.
	d := NewHTTPDispatcher("http://127.0.0.1:1", st, 200*time.Millisecond)

	res := d.Deliver(context.Background(), "ws-1", testEvent())
	if res.Outcome != OutcomeNetworkError {
		t.Fatalf("expected network_error, got %s", res)
	}
}

func TestHTTPDispatcherDeletedWorkspace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("notifier must not be called for a deleted workspace")
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL, &metaStore{}, time.Second)

	res := d.Deliver(context.Background(), "ws-gone", testEvent())
	if res.Outcome != OutcomeSkippedNoWorkspace {
		t.Fatalf("expected skipped_no_workspace, got %s", res)
	}
}

func TestHTTPDispatcherUnconfigured(t *testing.T) {
	d := NewHTTPDispatcher("", &metaStore{err: errors.New("must not be queried")}, time.Second)

	res := d.Deliver(context.Background(), "ws-1", testEvent())
	if res.Outcome != OutcomeSkippedUnconfigured {
		t.Fatalf("expected skipped_unconfigured, got %s", res)
	}
}

type recordingSink struct {
	name string
	mu   sync.Mutex
	got  []leak.Event
	done chan struct{}
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Deliver(ctx context.Context, workspaceID string, evt leak.Event) Result {
	r.mu.Lock()
	r.got = append(r.got, evt)
	r.mu.Unlock()
	close(r.done)
	return Result{Outcome: OutcomeDelivered}
}

func TestHubFansOutToAllSinks(t *testing.T) {
	a := &recordingSink{name: "a", done: make(chan struct{})}
	b := &recordingSink{name: "b", done: make(chan struct{})}
	hub := NewHub(time.Second, a, b)

	hub.Dispatch("ws-1", testEvent())

	for _, s := range []*recordingSink{a, b} {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("sink %s never received the event", s.name)
		}
	}
}

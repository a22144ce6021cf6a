package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"promptvc.dev/internal/audit"
	"promptvc.dev/internal/auth"
	"promptvc.dev/internal/ids"
	"promptvc.dev/internal/leak"
	"promptvc.dev/internal/obs"
	"promptvc.dev/internal/rooms"
)

// Handshake refusal messages. These are part of the client contract: CLI
// agents match on them to distinguish misconfiguration from rejection.
const (
	msgMissingToken     = "Authentication error: Missing session token"
	msgMissingWorkspace = "Authentication error: Missing workspaceId"
	msgInvalidToken     = "Authentication error: Invalid or expired token"
	msgForbidden        = "Authorization error: User does not have access to this workspace"
	msgInternal         = "Internal server error during authentication"
)

const eventLeakDetected = "leak_detected"

// envelope is the framing for every message on the socket.
type envelope struct {
	Type  string     `json:"type"`
	Event leak.Event `json:"event"`
}

// Dispatcher receives enriched events for out-of-band delivery. Implemented
// by notify.Hub; calls must not block the relay.
type Dispatcher interface {
	Dispatch(workspaceID string, evt leak.Event)
}

// Gateway authenticates WebSocket connections, joins them to workspace rooms
// and relays leak events between them.
type Gateway struct {
	verifier         *auth.Verifier
	registry         *rooms.Registry
	dispatcher       Dispatcher
	upgrader         websocket.Upgrader
	handshakeTimeout time.Duration
}

// New constructs a Gateway. allowedOrigins restricts browser connections;
// empty allows any origin (CLI agents send no Origin header at all).
func New(verifier *auth.Verifier, registry *rooms.Registry, dispatcher Dispatcher, allowedOrigins []string, handshakeTimeout time.Duration) *Gateway {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	g := &Gateway{
		verifier:         verifier,
		registry:         registry,
		dispatcher:       dispatcher,
		handshakeTimeout: handshakeTimeout,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return g
}

// Registry exposes the room registry, used by probes and tests.
func (g *Gateway) Registry() *rooms.Registry { return g.registry }

// credentials are accepted interchangeably from the query string or request
// headers; the headers are the handshake payload of an HTTP upgrade.
func credentialsFrom(r *http.Request) (token, workspaceID string) {
	q := r.URL.Query()
	token = q.Get("token")
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	workspaceID = q.Get("workspaceId")
	if workspaceID == "" {
		workspaceID = r.Header.Get("X-Workspace-Id")
	}
	return token, workspaceID
}

// HandleWS is the connection entry point. Authentication runs to completion
// before the upgrade: an unauthenticated request never becomes a socket, so
// no event handling or room join can happen for it.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	token, workspaceID := credentialsFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), g.handshakeTimeout)
	defer cancel()

	identity, err := g.verifier.Verify(ctx, token, workspaceID)
	if err != nil {
		g.refuse(w, r, workspaceID, err)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own response.
		return
	}

	conn := newConn(ids.New(), ws, identity, workspaceID)
	_ = audit.LogEvent(r.Context(), "connection_authenticated", map[string]any{
		"connection": conn.id,
		"user":       identity.UserID,
		"workspace":  workspaceID,
	})
	g.run(conn)
}

func (g *Gateway) refuse(w http.ResponseWriter, r *http.Request, workspaceID string, err error) {
	var status int
	var msg, reason string
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		status, msg, reason = http.StatusUnauthorized, msgMissingToken, "missing_token"
	case errors.Is(err, auth.ErrMissingWorkspaceID):
		status, msg, reason = http.StatusUnauthorized, msgMissingWorkspace, "missing_workspace"
	case errors.Is(err, auth.ErrInvalidToken):
		status, msg, reason = http.StatusUnauthorized, msgInvalidToken, "invalid_token"
	case errors.Is(err, auth.ErrForbidden):
		status, msg, reason = http.StatusForbidden, msgForbidden, "forbidden"
	default:
		status, msg, reason = http.StatusInternalServerError, msgInternal, "internal"
		obs.Error("handshake_internal_error", map[string]any{
			"workspace": workspaceID,
			"error":     err.Error(),
		})
	}
	obs.AuthFailuresTotal.WithLabelValues(reason).Inc()
	_ = audit.LogEvent(r.Context(), "connection_rejected", map[string]any{
		"workspace": workspaceID,
		"reason":    reason,
	})
	http.Error(w, msg, status)
}

// run drives an authenticated connection through join, relay and teardown.
// It returns when the client disconnects or a protocol error occurs.
func (g *Gateway) run(c *Conn) {
	obs.ConnectionsActive.Inc()
	defer func() {
		c.close()
		g.registry.Leave(c)
		obs.ConnectionsActive.Dec()
		obs.Info("connection_closed", map[string]any{
			"connection": c.id,
			"workspace":  c.workspaceID,
		})
	}()

	// Completion-race guard: the client may have vanished while the
	// handshake was finishing. A closed connection never enters a room.
	if !c.markJoined() {
		return
	}
	g.registry.Join(c, c.workspaceID)
	if c.closed() {
		g.registry.Leave(c)
		return
	}
	if !c.markActive() {
		g.registry.Leave(c)
		return
	}

	obs.Info("connection_joined", map[string]any{
		"connection": c.id,
		"user":       c.identity.UserID,
		"workspace":  c.workspaceID,
		"room_size":  g.registry.Size(c.workspaceID),
	})

	go c.writePump()

	c.ws.SetReadLimit(64 * 1024)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Single read loop per connection keeps per-connection event order.
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		g.handleMessage(c, raw)
	}
}

// handleMessage processes one inbound frame. A malformed frame is dropped
// and logged; it never terminates the connection.
func (g *Gateway) handleMessage(c *Conn, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		g.dropEvent(c, "malformed_json", err)
		return
	}
	if env.Type != eventLeakDetected {
		g.dropEvent(c, "unknown_type", errors.New("unknown event type "+env.Type))
		return
	}
	if err := env.Event.Validate(); err != nil {
		g.dropEvent(c, "invalid_event", err)
		return
	}

	enriched := env.Event.Enriched(c.identity.Username, c.workspaceID)

	payload, err := json.Marshal(envelope{Type: eventLeakDetected, Event: enriched})
	if err != nil {
		g.dropEvent(c, "marshal", err)
		return
	}

	// Dashboards in the room get the event; the reporting CLI does not see
	// its own report echoed back.
	delivered := g.registry.Broadcast(c.workspaceID, payload, c)
	obs.EventsRelayedTotal.Inc()
	obs.Info("event_relayed", map[string]any{
		"connection": c.id,
		"workspace":  c.workspaceID,
		"session":    enriched.SessionID,
		"rule":       enriched.RuleID,
		"severity":   string(enriched.Severity),
		"delivered":  delivered,
	})

	// Fire-and-forget: delivery outcomes are visible only in server logs.
	if g.dispatcher != nil {
		g.dispatcher.Dispatch(c.workspaceID, enriched)
	}
}

func (g *Gateway) dropEvent(c *Conn, reason string, err error) {
	obs.EventsDroppedTotal.WithLabelValues(reason).Inc()
	obs.Warn("event_dropped", map[string]any{
		"connection": c.id,
		"workspace":  c.workspaceID,
		"reason":     reason,
		"error":      err.Error(),
	})
}

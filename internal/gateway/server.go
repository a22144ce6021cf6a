package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"promptvc.dev/internal/obs"
)

// ReadyProbe reports whether the datastore collaborator is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Server is the HTTP surface around the gateway: the WebSocket endpoint plus
// health, readiness and metrics.
type Server struct {
	mux        *http.ServeMux
	gateway    *Gateway
	readyProbe ReadyProbe
	version    string
}

func NewServer(gw *Gateway, rp ReadyProbe, version string, rateBurst, ratePerSecond int) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		gateway:    gw,
		readyProbe: rp,
		version:    version,
	}

	s.mux.Handle("/ws", RateLimit(http.HandlerFunc(gw.HandleWS), rateBurst, ratePerSecond))
	s.mux.HandleFunc("/healthz", s.Healthz)
	s.mux.HandleFunc("/readyz", s.Ready)
	s.mux.Handle("/metrics", obs.Handler())
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return s
}

// Handler returns the fully wrapped handler for the HTTP server.
func (s *Server) Handler() http.Handler {
	return obs.Instrument(RequestID(LoggingJSON(SecurityHeaders(s.mux))))
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "pvc-gateway",
		"version": s.version,
	})
}

func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session or workspace does not exist.
var ErrNotFound = errors.New("store: not found")

// Session is a row from the web application's session table. The gateway
// never creates or mutates sessions.
type Session struct {
	Token     string
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Workspace is the read-only metadata the gateway needs for enrichment.
type Workspace struct {
	ID      string
	Slug    string
	Name    string
	OwnerID string
}

// Store describes the datastore reads the gateway depends on. The relational
// schema is owned by the web application; this side only queries it.
type Store interface {
	// FindSessionByToken resolves an opaque session token. Returns ErrNotFound
	// when no session row matches; expiry is the caller's concern.
	FindSessionByToken(ctx context.Context, token string) (*Session, error)

	// FindWorkspaceAccess reports whether the user owns the workspace or is
	// listed among its contributors.
	FindWorkspaceAccess(ctx context.Context, workspaceID, userID string) (bool, error)

	// FindWorkspaceMetadata fetches slug, name and owner for enrichment.
	// Returns ErrNotFound when the workspace has been deleted.
	FindWorkspaceMetadata(ctx context.Context, workspaceID string) (*Workspace, error)
}

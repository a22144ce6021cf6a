package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptvc.dev/internal/store"
)

// Verifier resolves session tokens and checks workspace membership. It is
// strictly read-only against the datastore.
type Verifier struct {
	store store.Store
	now   func() time.Time
}

// Option configures Verifier behavior.
type Option func(*Verifier)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// NewVerifier constructs a Verifier over the given datastore.
func NewVerifier(st store.Store, opts ...Option) *Verifier {
	v := &Verifier{store: st, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify authenticates a token and authorizes it against a workspace.
//
// Both inputs are mandatory and absence is reported distinctly so clients can
// tell misconfiguration from rejection. Datastore failures are wrapped and
// must be converted to a generic refusal by the caller; they never leak
// storage details to the client.
func (v *Verifier) Verify(ctx context.Context, token, workspaceID string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrMissingToken
	}
	if strings.TrimSpace(workspaceID) == "" {
		return Identity{}, ErrMissingWorkspaceID
	}

	sess, err := v.store.FindSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, fmt.Errorf("auth: session lookup: %w", err)
	}
	if sess.Expired(v.now()) {
		return Identity{}, ErrInvalidToken
	}

	ok, err := v.store.FindWorkspaceAccess(ctx, workspaceID, sess.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: workspace access lookup: %w", err)
	}
	if !ok {
		return Identity{}, ErrForbidden
	}

	return Identity{UserID: sess.UserID, Username: sess.Username}, nil
}

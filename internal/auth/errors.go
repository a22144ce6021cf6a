package auth

import "errors"

var (
	// ErrMissingToken: handshake carried no session token.
	ErrMissingToken = errors.New("auth: missing session token")
	// ErrMissingWorkspaceID: handshake carried no workspace id.
	ErrMissingWorkspaceID = errors.New("auth: missing workspace id")
	// ErrInvalidToken: no matching unexpired session.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrForbidden: user is neither owner nor contributor of the workspace.
	ErrForbidden = errors.New("auth: user does not have access to this workspace")
)

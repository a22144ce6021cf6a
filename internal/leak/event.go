package leak

import (
	"errors"
	"fmt"
	"strings"
)

// Severity of a detected exposure.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Event is an immutable fact describing a detected secret exposure inside a
// monitored prompt session. Username and WorkspaceID are filled in by the
// gateway after authentication; CLI agents never set them.
type Event struct {
	SessionID   string   `json:"sessionId"`
	RuleID      string   `json:"ruleId"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Snippet     string   `json:"snippet,omitempty"`
	Source      string   `json:"source,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Username    string   `json:"username,omitempty"`
	WorkspaceID string   `json:"workspaceId,omitempty"`
}

// Validate checks the fields a CLI agent is required to send.
func (e Event) Validate() error {
	if strings.TrimSpace(e.SessionID) == "" {
		return errors.New("leak: sessionId is required")
	}
	if strings.TrimSpace(e.RuleID) == "" {
		return errors.New("leak: ruleId is required")
	}
	if !e.Severity.Valid() {
		return fmt.Errorf("leak: invalid severity %q", e.Severity)
	}
	if strings.TrimSpace(e.Message) == "" {
		return errors.New("leak: message is required")
	}
	return nil
}

// Enriched returns a copy carrying the authenticated reporter and workspace.
// The original value is never mutated.
func (e Event) Enriched(username, workspaceID string) Event {
	e.Username = username
	e.WorkspaceID = workspaceID
	return e
}

package connector

import (
	"context"

	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
)

// System identifies a downstream CRM/email-marketing target.
type System string

const (
	SystemMailchimp System = "mailchimp"
	SystemPipedrive System = "pipedrive"
)

// ReasonNotConfigured is reported when a connector's credentials are absent.
const ReasonNotConfigured = "not configured"

// SubmitResult is the disposition of a single submit call. Reason is opaque
// to callers; it is aggregated and surfaced, never interpreted.
type SubmitResult struct {
	OK     bool
	Reason string
}

// Success builds a successful result.
func Success() SubmitResult {
	return SubmitResult{OK: true}
}

// Failure builds a failed result with the given reason.
func Failure(reason string) SubmitResult {
	return SubmitResult{Reason: reason}
}

// Connector pushes one contact record to one downstream system.
// Submit never returns an error: downstream failures come back as a failed
// SubmitResult so the review loop is never aborted by a connector.
type Connector interface {
	System() System
	Enabled() bool
	Submit(ctx context.Context, rec contact.Record) SubmitResult
}

// Set holds the configured connectors in a fixed dispatch order
// (Mailchimp before Pipedrive).
type Set struct {
	order []Connector
	byKey map[System]Connector
}

// NewSet builds a Set preserving the given dispatch order.
func NewSet(conns ...Connector) *Set {
	s := &Set{byKey: make(map[System]Connector, len(conns))}
	for _, c := range conns {
		if c == nil {
			continue
		}
		if _, dup := s.byKey[c.System()]; dup {
			continue
		}
		s.order = append(s.order, c)
		s.byKey[c.System()] = c
	}
	return s
}

// Get returns the connector for a system regardless of enablement.
func (s *Set) Get(sys System) (Connector, bool) {
	c, ok := s.byKey[sys]
	return c, ok
}

// All returns every connector in dispatch order.
func (s *Set) All() []Connector {
	return s.order
}

// Enabled returns the systems whose full credential set is configured.
// Action buttons are offered only for these.
func (s *Set) Enabled() []System {
	var out []System
	for _, c := range s.order {
		if c.Enabled() {
			out = append(out, c.System())
		}
	}
	return out
}

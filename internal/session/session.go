package session

import (
	"sync"
	"time"

	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
)

// OutcomeKind tags the disposition of a reviewed row.
type OutcomeKind string

const (
	OutcomePending        OutcomeKind = "pending"
	OutcomeSkipped        OutcomeKind = "skipped"
	OutcomeSent           OutcomeKind = "sent"
	OutcomePartialFailure OutcomeKind = "partial_failure"
)

// Outcome records where a row was sent and which submissions failed.
// Reasons keeps the connector failure text for the aggregate summary.
type Outcome struct {
	Kind    OutcomeKind                 `json:"kind"`
	Sent    []connector.System          `json:"sent,omitempty"`
	Failed  []connector.System          `json:"failed,omitempty"`
	Reasons map[connector.System]string `json:"reasons,omitempty"`
}

// Pending is the initial outcome of every row.
func Pending() Outcome {
	return Outcome{Kind: OutcomePending}
}

// Skipped marks a row the reviewer chose not to send anywhere.
func Skipped() Outcome {
	return Outcome{Kind: OutcomeSkipped}
}

// SentTo marks a fully successful dispatch.
func SentTo(systems ...connector.System) Outcome {
	return Outcome{Kind: OutcomeSent, Sent: systems}
}

// PartialFailure marks a dispatch where at least one target failed.
func PartialFailure(sent, failed []connector.System, reasons map[connector.System]string) Outcome {
	return Outcome{Kind: OutcomePartialFailure, Sent: sent, Failed: failed, Reasons: reasons}
}

// Session is the reviewable state for one uploaded CSV. It exclusively owns
// its records and outcomes; nothing is shared across sessions.
type Session struct {
	id           string
	parseSkipped int

	mu         sync.Mutex
	rows       []contact.Record
	cursor     int
	results    []Outcome
	lastActive time.Time
	inFlight   bool
}

// ID returns the opaque session token.
func (s *Session) ID() string { return s.id }

// ParseSkipped returns how many upload rows were dropped at parse time.
// Carried so the final summary can report them next to the review tallies.
func (s *Session) ParseSkipped() int { return s.parseSkipped }

// Len returns the number of reviewable rows.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Cursor returns the index of the next unreviewed row.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Row returns the record at index i.
func (s *Session) Row(i int) (contact.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.rows) {
		return contact.Record{}, false
	}
	return s.rows[i], true
}

// Rows returns a copy of all records in CSV order.
func (s *Session) Rows() []contact.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contact.Record, len(s.rows))
	copy(out, s.rows)
	return out
}

// Results returns a copy of the per-row outcomes.
func (s *Session) Results() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outcome, len(s.results))
	copy(out, s.results)
	return out
}

// Done reports whether the cursor has passed the last row.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor >= len(s.rows)
}

// BeginAction claims the session's single review slot. It fails when another
// action for this session is still running, which serializes events per
// session without blocking other sessions.
func (s *Session) BeginAction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	s.lastActive = time.Now()
	return true
}

// EndAction releases the review slot claimed by BeginAction.
func (s *Session) EndAction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	s.lastActive = time.Now()
}

func (s *Session) record(rowIndex int, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rowIndex != s.cursor || rowIndex >= len(s.rows) {
		return &InvalidStateError{SessionID: s.id, RowIndex: rowIndex, Cursor: s.cursor}
	}
	s.results[rowIndex] = out
	s.lastActive = time.Now()
	return nil
}

func (s *Session) advance() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < len(s.rows) {
		s.cursor++
	}
	s.lastActive = time.Now()
	return s.cursor, s.cursor >= len(s.rows)
}

// idleSince reports idleness without racing an in-flight action.
func (s *Session) idleSince(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	return now.Sub(s.lastActive) > timeout
}

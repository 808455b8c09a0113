package review

import (
	"context"
	"time"

	"log/slog"

	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"
)

// Action is one review decision for the current row.
type Action string

const (
	ActionMailchimp Action = "mailchimp"
	ActionPipedrive Action = "pipedrive"
	ActionBoth      Action = "both"
	ActionSkip      Action = "skip"
)

// Prompt describes the next decision the reviewer must make. Actions lists
// the buttons offered, fixed once per session from configured connectors.
type Prompt struct {
	SessionID string
	RowIndex  int
	Total     int
	Record    contact.Record
	Actions   []Action
}

// Summary tallies a completed session per outcome category. Failures carries
// one line per failed submission for the aggregate report.
type Summary struct {
	SessionID string `json:"session_id"`
	Total     int    `json:"total"`
	Skipped   int    `json:"skipped"`
	Sent      int    `json:"sent"`
	Partial   int    `json:"partial"`
	// ParseSkipped counts upload rows dropped before review began.
	ParseSkipped int                      `json:"parse_skipped"`
	SentBy       map[connector.System]int `json:"sent_by,omitempty"`
	Failures     []FailureLine            `json:"failures,omitempty"`
}

// FailureLine is one failed submission surfaced in the summary.
type FailureLine struct {
	RowIndex int              `json:"row_index"`
	Name     string           `json:"name"`
	System   connector.System `json:"system"`
	Reason   string           `json:"reason"`
}

// UploadResult reports what an upload produced. Session and Prompt are nil
// when the CSV held no valid rows.
type UploadResult struct {
	Session *session.Session
	Prompt  *Prompt
	Total   int
	Valid   int
	Skipped int
}

// StepResult reports the effect of one review action. Exactly one of Next
// and Summary is set: Next while rows remain, Summary once complete.
type StepResult struct {
	Record  contact.Record
	Outcome session.Outcome
	Next    *Prompt
	Summary *Summary
}

// Orchestrator advances sessions through their rows, dispatching accepted
// rows to connectors and folding failures into recorded outcomes.
type Orchestrator struct {
	parser *contact.Parser
	store  *session.Store
	conns  *connector.Set
}

// New wires the orchestrator with its collaborators.
func New(parser *contact.Parser, store *session.Store, conns *connector.Set) *Orchestrator {
	return &Orchestrator{parser: parser, store: store, conns: conns}
}

// Store exposes the session store for read-only collaborators.
func (o *Orchestrator) Store() *session.Store { return o.store }

// Connectors exposes the connector set for availability checks.
func (o *Orchestrator) Connectors() *connector.Set { return o.conns }

// Upload parses the CSV and opens a session when at least one row is valid.
// A FormatError propagates; zero valid rows yields a nil Session.
func (o *Orchestrator) Upload(ctx context.Context, raw []byte) (*UploadResult, error) {
	start := time.Now()
	parsed, err := o.parser.Parse(raw)
	if err != nil {
		logger.CSV.Warn("upload rejected",
			slog.String("event", "parse.fail"),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	res := &UploadResult{
		Total:   parsed.Total,
		Valid:   len(parsed.Records),
		Skipped: parsed.Skipped,
	}

	logger.CSV.Info("upload parsed",
		slog.String("event", "parse.ok"),
		slog.Int("rows", parsed.Total),
		slog.Int("valid", len(parsed.Records)),
		slog.Int("skipped", parsed.Skipped),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	if len(parsed.Records) == 0 {
		return res, nil
	}

	sess := o.store.Create(parsed.Records, parsed.Skipped)
	res.Session = sess
	res.Prompt = o.prompt(sess, 0)
	return res, nil
}

// Review applies one action to the session's current row. Connector failures
// never abort the loop; they are recorded and surfaced in the summary.
func (o *Orchestrator) Review(ctx context.Context, sessionID string, rowIndex int, action Action) (*StepResult, error) {
	sess, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.BeginAction() {
		// Another event for this session is still running.
		return nil, &session.InvalidStateError{SessionID: sessionID, RowIndex: rowIndex, Cursor: sess.Cursor()}
	}
	defer sess.EndAction()

	// Stale or duplicate button presses are rejected before any connector
	// call, so an already-advanced cursor never double-invokes a connector.
	cursor := sess.Cursor()
	if rowIndex != cursor {
		return nil, &session.InvalidStateError{SessionID: sessionID, RowIndex: rowIndex, Cursor: cursor}
	}
	rec, ok := sess.Row(rowIndex)
	if !ok {
		return nil, &session.InvalidStateError{SessionID: sessionID, RowIndex: rowIndex, Cursor: cursor}
	}

	ctx = logger.WithSessionID(ctx, sessionID)
	outcome := o.dispatch(ctx, rec, rowIndex, action)

	if err := o.store.Record(sessionID, rowIndex, outcome); err != nil {
		return nil, err
	}
	_, done, err := o.store.Advance(sessionID)
	if err != nil {
		return nil, err
	}

	step := &StepResult{Record: rec, Outcome: outcome}
	if !done {
		step.Next = o.prompt(sess, rowIndex+1)
		return step, nil
	}

	step.Summary = o.summarize(sess)
	o.store.Evict(sessionID)
	logger.REVIEW.Info("session complete",
		slog.String("event", "complete"),
		slog.String("session_id", sessionID),
		slog.Int("rows", step.Summary.Total),
		slog.Int("skipped", step.Summary.Skipped),
		slog.Int("sent", step.Summary.Sent),
		slog.Int("partial", step.Summary.Partial),
	)
	return step, nil
}

// dispatch executes the chosen action, Mailchimp before Pipedrive.
func (o *Orchestrator) dispatch(ctx context.Context, rec contact.Record, rowIndex int, action Action) session.Outcome {
	if action == ActionSkip {
		return session.Skipped()
	}

	var targets []connector.System
	switch action {
	case ActionMailchimp:
		targets = []connector.System{connector.SystemMailchimp}
	case ActionPipedrive:
		targets = []connector.System{connector.SystemPipedrive}
	case ActionBoth:
		targets = []connector.System{connector.SystemMailchimp, connector.SystemPipedrive}
	default:
		return session.Skipped()
	}

	var (
		sent    []connector.System
		failed  []connector.System
		reasons map[connector.System]string
	)
	for _, sys := range targets {
		conn, ok := o.conns.Get(sys)
		var res connector.SubmitResult
		if !ok {
			res = connector.Failure(connector.ReasonNotConfigured)
		} else {
			res = conn.Submit(ctx, rec)
		}

		if res.OK {
			sent = append(sent, sys)
			continue
		}
		failed = append(failed, sys)
		if reasons == nil {
			reasons = make(map[connector.System]string)
		}
		reasons[sys] = res.Reason
		logger.REVIEW.Warn("submission failed",
			slog.String("event", "submit.fail"),
			slog.Int("row", rowIndex),
			slog.String("system", string(sys)),
			slog.String("reason", logger.SanitizeLimit(res.Reason, 256)),
		)
	}

	if len(failed) == 0 {
		return session.SentTo(sent...)
	}
	return session.PartialFailure(sent, failed, reasons)
}

func (o *Orchestrator) prompt(sess *session.Session, rowIndex int) *Prompt {
	rec, _ := sess.Row(rowIndex)
	return &Prompt{
		SessionID: sess.ID(),
		RowIndex:  rowIndex,
		Total:     sess.Len(),
		Record:    rec,
		Actions:   o.availableActions(),
	}
}

// availableActions derives the offered buttons from configured connectors.
// Skip is always offered; Both only when both connectors are enabled.
func (o *Orchestrator) availableActions() []Action {
	enabled := make(map[connector.System]bool)
	for _, sys := range o.conns.Enabled() {
		enabled[sys] = true
	}

	var actions []Action
	if enabled[connector.SystemMailchimp] {
		actions = append(actions, ActionMailchimp)
	}
	if enabled[connector.SystemPipedrive] {
		actions = append(actions, ActionPipedrive)
	}
	if enabled[connector.SystemMailchimp] && enabled[connector.SystemPipedrive] {
		actions = append(actions, ActionBoth)
	}
	actions = append(actions, ActionSkip)
	return actions
}

func (o *Orchestrator) summarize(sess *session.Session) *Summary {
	rows := sess.Rows()
	results := sess.Results()

	sum := &Summary{
		SessionID:    sess.ID(),
		Total:        len(results),
		ParseSkipped: sess.ParseSkipped(),
		SentBy:       make(map[connector.System]int),
	}
	for i, out := range results {
		switch out.Kind {
		case session.OutcomeSkipped:
			sum.Skipped++
		case session.OutcomeSent:
			sum.Sent++
		case session.OutcomePartialFailure:
			sum.Partial++
		}
		for _, sys := range out.Sent {
			sum.SentBy[sys]++
		}
		for _, sys := range out.Failed {
			line := FailureLine{
				RowIndex: i,
				System:   sys,
				Reason:   out.Reasons[sys],
			}
			if i < len(rows) {
				line.Name = rows[i].Name
			}
			sum.Failures = append(sum.Failures, line)
		}
	}
	return sum
}

package review

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type mockConnector struct {
	mock.Mock
	system  connector.System
	enabled bool
}

func (m *mockConnector) System() connector.System { return m.system }
func (m *mockConnector) Enabled() bool            { return m.enabled }

func (m *mockConnector) Submit(ctx context.Context, rec contact.Record) connector.SubmitResult {
	args := m.Called(ctx, rec)
	return args.Get(0).(connector.SubmitResult)
}

func newOrchestrator(t *testing.T, mailchimp, pipedrive *mockConnector) *Orchestrator {
	t.Helper()
	cols := coreconfig.CSVConfig{
		NameColumn:      "name",
		EmailColumn:     "email",
		LinkedInColumn:  "What is your LinkedIn profile?",
		FirstNameColumn: "first_name",
		LastNameColumn:  "last_name",
	}
	return New(
		contact.NewParser(cols),
		session.NewStore(time.Minute),
		connector.NewSet(mailchimp, pipedrive),
	)
}

func csvRows(n int) []byte {
	raw := "name,email,What is your LinkedIn profile?\n"
	names := []string{"Ada Lovelace", "Alan Turing", "Grace Hopper", "Edsger Dijkstra"}
	for i := 0; i < n; i++ {
		name := names[i%len(names)]
		raw += name + ",person" + string(rune('a'+i)) + "@example.com,https://linkedin.com/in/p\n"
	}
	return []byte(raw)
}

func TestUploadOpensSessionWithFirstPrompt(t *testing.T) {
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: true}
	o := newOrchestrator(t, mc, pd)

	res, err := o.Upload(context.Background(), csvRows(2))
	require.NoError(t, err)

	require.NotNil(t, res.Session)
	require.NotNil(t, res.Prompt)
	assert.Equal(t, 2, res.Valid)
	assert.Equal(t, 0, res.Prompt.RowIndex)
	assert.Equal(t, 2, res.Prompt.Total)
	assert.Equal(t,
		[]Action{ActionMailchimp, ActionPipedrive, ActionBoth, ActionSkip},
		res.Prompt.Actions,
	)
}

func TestUploadNoValidRowsCreatesNoSession(t *testing.T) {
	o := newOrchestrator(t,
		&mockConnector{system: connector.SystemMailchimp, enabled: true},
		&mockConnector{system: connector.SystemPipedrive, enabled: true},
	)

	raw := []byte("name,email,What is your LinkedIn profile?\nAda,not-an-email,https://linkedin.com/in/a\n")
	res, err := o.Upload(context.Background(), raw)
	require.NoError(t, err)

	assert.Nil(t, res.Session)
	assert.Nil(t, res.Prompt)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, o.Store().Len())
}

func TestUploadFormatErrorPropagates(t *testing.T) {
	o := newOrchestrator(t,
		&mockConnector{system: connector.SystemMailchimp, enabled: true},
		&mockConnector{system: connector.SystemPipedrive, enabled: true},
	)

	_, err := o.Upload(context.Background(), []byte("name,linkedin\nAda,x\n"))
	require.Error(t, err)
	assert.True(t, contact.IsFormatError(err))
	assert.Equal(t, 0, o.Store().Len())
}

func TestAllSkippedSummary(t *testing.T) {
	// Scenario: three rows, all skipped, connectors never called.
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: true}
	o := newOrchestrator(t, mc, pd)

	res, err := o.Upload(context.Background(), csvRows(3))
	require.NoError(t, err)
	id := res.Session.ID()

	var step *StepResult
	for i := 0; i < 3; i++ {
		step, err = o.Review(context.Background(), id, i, ActionSkip)
		require.NoError(t, err)
	}

	require.NotNil(t, step.Summary)
	assert.Nil(t, step.Next)
	assert.Equal(t, 3, step.Summary.Total)
	assert.Equal(t, 3, step.Summary.Skipped)
	assert.Equal(t, 0, step.Summary.Sent)
	assert.Equal(t, 0, step.Summary.Partial)

	mc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	pd.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)

	// Session is evicted after the summary.
	_, err = o.Store().Get(id)
	assert.True(t, session.IsNotFound(err))
}

func TestAddBothWithDisabledConnector(t *testing.T) {
	// Scenario: Mailchimp succeeds, Pipedrive is not configured. The explicit
	// AddBoth action still records Pipedrive's failure.
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	mc.On("Submit", mock.Anything, mock.Anything).Return(connector.Success()).Once()
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: false}
	pd.On("Submit", mock.Anything, mock.Anything).Return(connector.Failure(connector.ReasonNotConfigured)).Once()

	o := newOrchestrator(t, mc, pd)

	res, err := o.Upload(context.Background(), csvRows(1))
	require.NoError(t, err)

	// The Pipedrive button is withheld, Both included only when both enabled.
	assert.Equal(t, []Action{ActionMailchimp, ActionSkip}, res.Prompt.Actions)

	step, err := o.Review(context.Background(), res.Session.ID(), 0, ActionBoth)
	require.NoError(t, err)

	assert.Equal(t, session.OutcomePartialFailure, step.Outcome.Kind)
	assert.Equal(t, []connector.System{connector.SystemMailchimp}, step.Outcome.Sent)
	assert.Equal(t, []connector.System{connector.SystemPipedrive}, step.Outcome.Failed)
	assert.Equal(t, connector.ReasonNotConfigured, step.Outcome.Reasons[connector.SystemPipedrive])

	require.NotNil(t, step.Summary)
	assert.Equal(t, 1, step.Summary.Partial)
	require.Len(t, step.Summary.Failures, 1)
	assert.Equal(t, connector.SystemPipedrive, step.Summary.Failures[0].System)

	mc.AssertExpectations(t)
	pd.AssertExpectations(t)
}

func TestMailchimpThenPipedriveOrder(t *testing.T) {
	var order []connector.System
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	mc.On("Submit", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		order = append(order, connector.SystemMailchimp)
	}).Return(connector.Success())
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: true}
	pd.On("Submit", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		order = append(order, connector.SystemPipedrive)
	}).Return(connector.Success())

	o := newOrchestrator(t, mc, pd)
	res, err := o.Upload(context.Background(), csvRows(1))
	require.NoError(t, err)

	step, err := o.Review(context.Background(), res.Session.ID(), 0, ActionBoth)
	require.NoError(t, err)

	assert.Equal(t, session.OutcomeSent, step.Outcome.Kind)
	assert.Equal(t, []connector.System{connector.SystemMailchimp, connector.SystemPipedrive}, order)
}

func TestDuplicatePressNeverDoubleSubmits(t *testing.T) {
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	mc.On("Submit", mock.Anything, mock.Anything).Return(connector.Success()).Once()
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: true}

	o := newOrchestrator(t, mc, pd)
	res, err := o.Upload(context.Background(), csvRows(2))
	require.NoError(t, err)
	id := res.Session.ID()

	step, err := o.Review(context.Background(), id, 0, ActionMailchimp)
	require.NoError(t, err)
	require.NotNil(t, step.Next)
	assert.Equal(t, 1, step.Next.RowIndex)

	// Replaying the same press targets a stale row.
	_, err = o.Review(context.Background(), id, 0, ActionMailchimp)
	require.Error(t, err)
	assert.True(t, session.IsInvalidState(err))

	mc.AssertNumberOfCalls(t, "Submit", 1)
}

func TestReviewUnknownSession(t *testing.T) {
	o := newOrchestrator(t,
		&mockConnector{system: connector.SystemMailchimp, enabled: true},
		&mockConnector{system: connector.SystemPipedrive, enabled: true},
	)

	_, err := o.Review(context.Background(), "missing", 0, ActionSkip)
	require.Error(t, err)
	assert.True(t, session.IsNotFound(err))
}

func TestSingleConnectorFailureRecordsPartial(t *testing.T) {
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	mc.On("Submit", mock.Anything, mock.Anything).Return(connector.Failure("status 500: boom")).Once()
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: true}

	o := newOrchestrator(t, mc, pd)
	res, err := o.Upload(context.Background(), csvRows(2))
	require.NoError(t, err)
	id := res.Session.ID()

	step, err := o.Review(context.Background(), id, 0, ActionMailchimp)
	require.NoError(t, err)

	// The failure is recorded and the loop continues to the next row.
	assert.Equal(t, session.OutcomePartialFailure, step.Outcome.Kind)
	require.NotNil(t, step.Next)
	assert.Equal(t, 1, step.Next.RowIndex)
}

func TestCompletedSessionHasNoPendingOutcomes(t *testing.T) {
	mc := &mockConnector{system: connector.SystemMailchimp, enabled: true}
	mc.On("Submit", mock.Anything, mock.Anything).Return(connector.Success())
	pd := &mockConnector{system: connector.SystemPipedrive, enabled: true}
	pd.On("Submit", mock.Anything, mock.Anything).Return(connector.Success())

	o := newOrchestrator(t, mc, pd)
	res, err := o.Upload(context.Background(), csvRows(3))
	require.NoError(t, err)
	id := res.Session.ID()

	actions := []Action{ActionMailchimp, ActionBoth, ActionSkip}
	var step *StepResult
	for i, a := range actions {
		step, err = o.Review(context.Background(), id, i, a)
		require.NoError(t, err)
	}

	require.NotNil(t, step.Summary)
	assert.Equal(t, 3, step.Summary.Total)
	assert.Equal(t, 2, step.Summary.Sent)
	assert.Equal(t, 1, step.Summary.Skipped)
	assert.Equal(t, 0, step.Summary.Partial)
	assert.Equal(t, step.Summary.Total, step.Summary.Sent+step.Summary.Skipped+step.Summary.Partial)
	assert.Equal(t, 2, step.Summary.SentBy[connector.SystemMailchimp])
	assert.Equal(t, 1, step.Summary.SentBy[connector.SystemPipedrive])
	assert.Equal(t, 0, step.Summary.ParseSkipped)
}

func TestRenderSummaryIncludesFailures(t *testing.T) {
	s := &Summary{
		SessionID:    "s1",
		Total:        2,
		Sent:         1,
		Partial:      1,
		ParseSkipped: 1,
		SentBy:       map[connector.System]int{connector.SystemMailchimp: 2},
		Failures: []FailureLine{
			{RowIndex: 1, Name: "Ada Lovelace", System: connector.SystemPipedrive, Reason: "not configured"},
		},
	}
	text := s.RenderSummary()
	assert.Contains(t, text, "All contacts processed")
	assert.Contains(t, text, "Pipedrive")
	assert.Contains(t, text, "not configured")
	assert.Contains(t, text, "Dropped at parse: 1")
	assert.Contains(t, text, "Mailchimp: 2")
}

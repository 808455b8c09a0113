package session

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

func testRows(n int) []contact.Record {
	rows := make([]contact.Record, n)
	for i := range rows {
		rows[i] = contact.Record{
			Name:        "Contact",
			Email:       "contact@example.com",
			LinkedInURL: "https://linkedin.com/in/contact",
		}
	}
	return rows
}

func TestCreateAndGet(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Create(testRows(3), 0)

	require.NotEmpty(t, s.ID())
	assert.Equal(t, 0, s.Cursor())
	assert.Equal(t, 3, s.Len())

	for _, out := range s.Results() {
		assert.Equal(t, OutcomePending, out.Kind)
	}

	got, err := st.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestGetUnknownID(t *testing.T) {
	st := NewStore(time.Minute)
	_, err := st.Get("nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRecordRequiresCursorMatch(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Create(testRows(2), 0)

	// Wrong index is rejected and state is untouched.
	err := st.Record(s.ID(), 1, Skipped())
	require.Error(t, err)
	assert.True(t, IsInvalidState(err))
	assert.Equal(t, OutcomePending, s.Results()[1].Kind)

	require.NoError(t, st.Record(s.ID(), 0, Skipped()))
	assert.Equal(t, OutcomeSkipped, s.Results()[0].Kind)

	// Same index again is stale once recorded and advanced.
	_, _, err = st.Advance(s.ID())
	require.NoError(t, err)
	err = st.Record(s.ID(), 0, Skipped())
	assert.True(t, IsInvalidState(err))
}

func TestAdvancePastEndIsNoOp(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Create(testRows(1), 0)

	cursor, done, err := st.Advance(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, cursor)
	assert.True(t, done)

	cursor, done, err = st.Advance(s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, cursor)
	assert.True(t, done)
}

func TestEvict(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Create(testRows(1), 0)

	st.Evict(s.ID())
	_, err := st.Get(s.ID())
	assert.True(t, IsNotFound(err))

	// Double eviction is harmless.
	st.Evict(s.ID())
}

func TestActionSlotSerializesEvents(t *testing.T) {
	st := NewStore(time.Minute)
	s := st.Create(testRows(1), 0)

	require.True(t, s.BeginAction())
	assert.False(t, s.BeginAction())
	s.EndAction()
	assert.True(t, s.BeginAction())
	s.EndAction()
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	st := NewStore(10 * time.Millisecond)
	s := st.Create(testRows(1), 0)

	st.sweep(time.Now().Add(time.Second))
	_, err := st.Get(s.ID())
	assert.True(t, IsNotFound(err))
}

func TestSweepSkipsInFlightSessions(t *testing.T) {
	st := NewStore(10 * time.Millisecond)
	s := st.Create(testRows(1), 0)

	require.True(t, s.BeginAction())
	st.sweep(time.Now().Add(time.Second))

	_, err := st.Get(s.ID())
	assert.NoError(t, err)
	s.EndAction()
}

func TestOutcomeConstructors(t *testing.T) {
	out := SentTo(connector.SystemMailchimp, connector.SystemPipedrive)
	assert.Equal(t, OutcomeSent, out.Kind)
	assert.Len(t, out.Sent, 2)

	out = PartialFailure(
		[]connector.System{connector.SystemMailchimp},
		[]connector.System{connector.SystemPipedrive},
		map[connector.System]string{connector.SystemPipedrive: "not configured"},
	)
	assert.Equal(t, OutcomePartialFailure, out.Kind)
	assert.Equal(t, "not configured", out.Reasons[connector.SystemPipedrive])
}

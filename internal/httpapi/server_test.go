package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type stubConnector struct {
	system  connector.System
	enabled bool
	result  connector.SubmitResult
	calls   int
}

func (s *stubConnector) System() connector.System { return s.system }
func (s *stubConnector) Enabled() bool            { return s.enabled }

func (s *stubConnector) Submit(context.Context, contact.Record) connector.SubmitResult {
	s.calls++
	return s.result
}

func newTestHandler(conns ...connector.Connector) http.Handler {
	cols := coreconfig.CSVConfig{
		NameColumn:      "name",
		EmailColumn:     "email",
		LinkedInColumn:  "What is your LinkedIn profile?",
		FirstNameColumn: "first_name",
		LastNameColumn:  "last_name",
	}
	orch := review.New(
		contact.NewParser(cols),
		session.NewStore(30*time.Minute),
		connector.NewSet(conns...),
	)
	srv := NewServer(orch, coreconfig.HTTPConfig{}, 2)
	return srv.Handler()
}

func multipartCSV(t *testing.T, filename, body string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func uploadCSV(t *testing.T, h http.Handler, body string) uploadResponse {
	t.Helper()
	buf, contentType := multipartCSV(t, "contacts.csv", body)
	req := httptest.NewRequest(http.MethodPost, "/upload-csv", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postReview(t *testing.T, h http.Handler, sessionID string, index int, action string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(reviewRequest{SessionID: sessionID, ContactIndex: index, Action: action})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/review-contact", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const sampleCSV = "name,email,What is your LinkedIn profile?\n" +
	"Ada Lovelace,ada@example.com,linkedin.com/in/ada\n" +
	"Grace Hopper,grace@example.com,https://linkedin.com/in/grace\n" +
	"Alan Turing,alan@example.com,linkedin.com/in/alan\n"

func TestRootAndHealth(t *testing.T) {
	h := newTestHandler()

	for path, want := range map[string]string{
		"/":       "CSV Contact Manager Agent is running!",
		"/health": "healthy",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), want)
	}
}

func TestUploadReturnsSessionAndPreview(t *testing.T) {
	h := newTestHandler()

	resp := uploadCSV(t, h, sampleCSV)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 3, resp.TotalRows)
	assert.Equal(t, 3, resp.ValidRows)
	assert.Equal(t, 0, resp.SkippedRows)
	// Preview is capped below the row count.
	require.Len(t, resp.Contacts, 2)
	assert.Equal(t, "ada@example.com", resp.Contacts[0].Email)
}

func TestUploadRejectsNonCSV(t *testing.T) {
	h := newTestHandler()

	buf, contentType := multipartCSV(t, "contacts.xlsx", sampleCSV)
	req := httptest.NewRequest(http.MethodPost, "/upload-csv", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File must be a CSV")
}

func TestUploadMissingColumnIsBadRequest(t *testing.T) {
	h := newTestHandler()

	buf, contentType := multipartCSV(t, "contacts.csv", "name,phone\nAda,555-1234\n")
	req := httptest.NewRequest(http.MethodPost, "/upload-csv", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email")
}

func TestUploadWithoutValidRows(t *testing.T) {
	h := newTestHandler()

	csv := "name,email,What is your LinkedIn profile?\nAda,not-an-email,linkedin.com/in/ada\n"
	buf, contentType := multipartCSV(t, "contacts.csv", csv)
	req := httptest.NewRequest(http.MethodPost, "/upload-csv", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No valid contacts found")
}

func TestContactsEndpoint(t *testing.T) {
	h := newTestHandler()
	resp := uploadCSV(t, h, sampleCSV)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contacts/"+resp.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got contactsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, resp.SessionID, got.SessionID)
	assert.Equal(t, 3, got.TotalContacts)
	assert.Equal(t, 0, got.Cursor)
	require.Len(t, got.Results, 3)
	assert.Equal(t, session.OutcomePending, got.Results[0].Kind)
}

func TestContactsUnknownSession(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contacts/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewAdvancesAndSummarizes(t *testing.T) {
	mc := &stubConnector{system: connector.SystemMailchimp, enabled: true, result: connector.Success()}
	h := newTestHandler(mc)
	up := uploadCSV(t, h, sampleCSV)

	rec := postReview(t, h, up.SessionID, 0, "mailchimp")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var step reviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.True(t, step.Processed)
	assert.Equal(t, session.OutcomeSent, step.Outcome.Kind)
	require.NotNil(t, step.Next)
	assert.Equal(t, 1, step.Next.RowIndex)
	assert.Nil(t, step.Summary)

	rec = postReview(t, h, up.SessionID, 1, "skip")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postReview(t, h, up.SessionID, 2, "skip")
	require.Equal(t, http.StatusOK, rec.Code)

	// Decode into a fresh value: the summary response omits "next", so
	// reusing the struct above would keep the stale prompt pointer.
	var final reviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Nil(t, final.Next)
	require.NotNil(t, final.Summary)
	assert.Equal(t, 3, final.Summary.Total)
	assert.Equal(t, 1, final.Summary.Sent)
	assert.Equal(t, 2, final.Summary.Skipped)
	assert.Equal(t, 1, mc.calls)

	// The session is evicted once summarized.
	rec = postReview(t, h, up.SessionID, 0, "skip")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewStaleIndexConflicts(t *testing.T) {
	h := newTestHandler()
	up := uploadCSV(t, h, sampleCSV)

	rec := postReview(t, h, up.SessionID, 0, "skip")
	require.Equal(t, http.StatusOK, rec.Code)

	// Re-submitting the already reviewed row must not advance anything.
	rec = postReview(t, h, up.SessionID, 0, "skip")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already reviewed")
}

func TestReviewUnknownAction(t *testing.T) {
	h := newTestHandler()
	up := uploadCSV(t, h, sampleCSV)

	rec := postReview(t, h, up.SessionID, 0, "forward")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewUnconfiguredConnectorFailsRow(t *testing.T) {
	// No connectors registered: an explicit mailchimp action records a
	// failure with a reason instead of reaching the network.
	h := newTestHandler()
	up := uploadCSV(t, h, sampleCSV)

	rec := postReview(t, h, up.SessionID, 0, "mailchimp")
	require.Equal(t, http.StatusOK, rec.Code)

	var step reviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &step))
	assert.Equal(t, session.OutcomePartialFailure, step.Outcome.Kind)
	assert.Equal(t, connector.ReasonNotConfigured, step.Outcome.Reasons[connector.SystemMailchimp])
}

func TestReviewRequestBodyValidation(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/review-contact", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewUnknownSession(t *testing.T) {
	h := newTestHandler()

	rec := postReview(t, h, fmt.Sprintf("missing-%d", time.Now().UnixNano()), 0, "skip")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

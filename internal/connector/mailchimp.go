package connector

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
)

// Mailchimp upserts contacts as audience members keyed by the MD5 hash of the
// lowercased email, so re-submitting an existing member is not a failure.
type Mailchimp struct {
	cfg     coreconfig.MailchimpConfig
	baseURL string
	http    *http.Client
}

type mailchimpMember struct {
	EmailAddress string               `json:"email_address"`
	StatusIfNew  string               `json:"status_if_new"`
	Status       string               `json:"status"`
	MergeFields  mailchimpMergeFields `json:"merge_fields"`
}

type mailchimpMergeFields struct {
	FNAME    string `json:"FNAME"`
	LNAME    string `json:"LNAME"`
	LinkedIn string `json:"LINKEDIN"`
}

type mailchimpError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

// NewMailchimp builds the Mailchimp connector. The connector is constructed
// even when credentials are absent; Submit then short-circuits.
func NewMailchimp(cfg coreconfig.MailchimpConfig) *Mailchimp {
	return &Mailchimp{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://%s.api.mailchimp.com/3.0", cfg.ServerPrefix),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// System implements Connector.
func (m *Mailchimp) System() System { return SystemMailchimp }

// Enabled implements Connector.
func (m *Mailchimp) Enabled() bool { return m.cfg.Enabled() }

// Submit upserts the contact into the configured audience.
func (m *Mailchimp) Submit(ctx context.Context, rec contact.Record) SubmitResult {
	if !m.Enabled() {
		return Failure(ReasonNotConfigured)
	}

	hash := fmt.Sprintf("%x", md5.Sum([]byte(strings.ToLower(rec.Email))))
	url := fmt.Sprintf("%s/lists/%s/members/%s", m.baseURL, m.cfg.ListID, hash)

	payload := mailchimpMember{
		EmailAddress: rec.Email,
		StatusIfNew:  "subscribed",
		Status:       "subscribed",
		MergeFields: mailchimpMergeFields{
			FNAME:    rec.GivenName(),
			LNAME:    rec.FamilyName(),
			LinkedIn: rec.LinkedInURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Failure(fmt.Sprintf("encode member: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return Failure(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		logger.CRM.Warn("mailchimp request failed",
			slog.String("event", "submit.fail"),
			slog.String("system", string(SystemMailchimp)),
			slog.String("err", err.Error()),
		)
		return Failure(fmt.Sprintf("request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		logger.CRM.Debug("mailchimp upsert ok",
			slog.String("event", "submit.ok"),
			slog.String("system", string(SystemMailchimp)),
		)
		return Success()
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr mailchimpError
	_ = json.Unmarshal(raw, &apiErr)

	// Already being a member is the idempotent-conflict case, not a failure.
	if resp.StatusCode == http.StatusBadRequest && apiErr.Title == "Member Exists" {
		return Success()
	}

	reason := apiErr.Detail
	if reason == "" {
		reason = strings.TrimSpace(string(raw))
	}
	logger.CRM.Warn("mailchimp rejected member",
		slog.String("event", "submit.fail"),
		slog.String("system", string(SystemMailchimp)),
		slog.Int("status", resp.StatusCode),
		slog.String("reason", logger.SanitizeLimit(reason, 256)),
	)
	return Failure(fmt.Sprintf("status %d: %s", resp.StatusCode, reason))
}

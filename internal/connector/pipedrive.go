package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
)

// Pipedrive creates a new person per submitted contact. Creation is not
// idempotent downstream; deduplication is left to Pipedrive itself.
type Pipedrive struct {
	cfg     coreconfig.PipedriveConfig
	baseURL string
	http    *http.Client
}

type pipedriveEmail struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
	Label   string `json:"label"`
}

type pipedriveCreated struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// NewPipedrive builds the Pipedrive connector.
func NewPipedrive(cfg coreconfig.PipedriveConfig) *Pipedrive {
	return &Pipedrive{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://%s.pipedrive.com/api/v1", cfg.Domain),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// System implements Connector.
func (p *Pipedrive) System() System { return SystemPipedrive }

// Enabled implements Connector.
func (p *Pipedrive) Enabled() bool { return p.cfg.Enabled() }

// Submit creates a person with name, email and the LinkedIn custom field.
func (p *Pipedrive) Submit(ctx context.Context, rec contact.Record) SubmitResult {
	if !p.Enabled() {
		return Failure(ReasonNotConfigured)
	}

	person := map[string]any{
		"name": rec.Name,
		"email": []pipedriveEmail{
			{Value: rec.Email, Primary: true, Label: "work"},
		},
		p.linkedinField(): rec.LinkedInURL,
	}

	body, err := json.Marshal(person)
	if err != nil {
		return Failure(fmt.Sprintf("encode person: %v", err))
	}

	endpoint := fmt.Sprintf("%s/persons?%s", p.baseURL, url.Values{"api_token": {p.cfg.APIKey}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Failure(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		logger.CRM.Warn("pipedrive request failed",
			slog.String("event", "submit.fail"),
			slog.String("system", string(SystemPipedrive)),
			slog.String("err", err.Error()),
		)
		return Failure(fmt.Sprintf("request: %v", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var created pipedriveCreated
		_ = json.Unmarshal(raw, &created)
		logger.CRM.Debug("pipedrive person created",
			slog.String("event", "submit.ok"),
			slog.String("system", string(SystemPipedrive)),
			slog.Int64("person_id", created.Data.ID),
		)
		return Success()
	}

	reason := strings.TrimSpace(string(raw))
	logger.CRM.Warn("pipedrive rejected person",
		slog.String("event", "submit.fail"),
		slog.String("system", string(SystemPipedrive)),
		slog.Int("status", resp.StatusCode),
		slog.String("reason", logger.SanitizeLimit(reason, 256)),
	)
	return Failure(fmt.Sprintf("status %d: %s", resp.StatusCode, reason))
}

func (p *Pipedrive) linkedinField() string {
	if p.cfg.LinkedInField != "" {
		return p.cfg.LinkedInField
	}
	return "linkedin"
}

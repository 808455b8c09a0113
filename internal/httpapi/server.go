package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"
)

const maxUploadBytes = 10 << 20

// Server exposes the review workflow over REST for non-Telegram clients.
// It shares the orchestrator (and therefore the session store) with the bot.
type Server struct {
	orch        *review.Orchestrator
	corsOrigins []string
	previewRows int
}

// NewServer builds the REST surface.
func NewServer(orch *review.Orchestrator, httpCfg coreconfig.HTTPConfig, previewRows int) *Server {
	if previewRows <= 0 {
		previewRows = 5
	}
	return &Server{
		orch:        orch,
		corsOrigins: httpCfg.CORSOrigins,
		previewRows: previewRows,
	}
}

// Handler assembles the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.logRequests)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/upload-csv", s.handleUpload)
	r.Get("/contacts/{sessionID}", s.handleContacts)
	r.Post("/review-contact", s.handleReview)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.HTTP.Info("request handled",
			slog.String("event", "request"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "CSV Contact Manager Agent is running!",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type uploadResponse struct {
	SessionID   string           `json:"session_id"`
	TotalRows   int              `json:"total_rows"`
	ValidRows   int              `json:"valid_rows"`
	SkippedRows int              `json:"skipped_rows"`
	Contacts    []contact.Record `json:"contacts"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "File must be a CSV")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	res, err := s.orch.Upload(r.Context(), raw)
	if err != nil {
		if contact.IsFormatError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if res.Session == nil {
		writeError(w, http.StatusBadRequest, "No valid contacts found in CSV")
		return
	}

	rows := res.Session.Rows()
	preview := rows
	if len(preview) > s.previewRows {
		preview = preview[:s.previewRows]
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID:   res.Session.ID(),
		TotalRows:   res.Total,
		ValidRows:   res.Valid,
		SkippedRows: res.Skipped,
		Contacts:    preview,
	})
}

type contactsResponse struct {
	SessionID     string            `json:"session_id"`
	TotalContacts int               `json:"total_contacts"`
	Cursor        int               `json:"cursor"`
	Contacts      []contact.Record  `json:"contacts"`
	Results       []session.Outcome `json:"results"`
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.orch.Store().Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Review session not found")
		return
	}

	writeJSON(w, http.StatusOK, contactsResponse{
		SessionID:     sess.ID(),
		TotalContacts: sess.Len(),
		Cursor:        sess.Cursor(),
		Contacts:      sess.Rows(),
		Results:       sess.Results(),
	})
}

type reviewRequest struct {
	SessionID    string `json:"session_id"`
	ContactIndex int    `json:"contact_index"`
	Action       string `json:"action"`
}

type reviewResponse struct {
	Contact   contact.Record  `json:"contact"`
	Outcome   session.Outcome `json:"outcome"`
	Processed bool            `json:"processed"`
	Next      *nextPrompt     `json:"next,omitempty"`
	Summary   *review.Summary `json:"summary,omitempty"`
}

type nextPrompt struct {
	RowIndex int             `json:"row_index"`
	Total    int             `json:"total"`
	Contact  contact.Record  `json:"contact"`
	Actions  []review.Action `json:"actions"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	action, ok := parseAction(req.Action)
	if !ok {
		writeError(w, http.StatusBadRequest, "action must be one of: mailchimp, pipedrive, both, skip")
		return
	}

	step, err := s.orch.Review(r.Context(), req.SessionID, req.ContactIndex, action)
	if err != nil {
		switch {
		case session.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Review session not found")
		case session.IsInvalidState(err):
			writeError(w, http.StatusConflict, "Contact already reviewed or review in progress")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := reviewResponse{
		Contact:   step.Record,
		Outcome:   step.Outcome,
		Processed: true,
		Summary:   step.Summary,
	}
	if step.Next != nil {
		resp.Next = &nextPrompt{
			RowIndex: step.Next.RowIndex,
			Total:    step.Next.Total,
			Contact:  step.Next.Record,
			Actions:  step.Next.Actions,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseAction(raw string) (review.Action, bool) {
	switch review.Action(strings.ToLower(strings.TrimSpace(raw))) {
	case review.ActionMailchimp:
		return review.ActionMailchimp, true
	case review.ActionPipedrive:
		return review.ActionPipedrive, true
	case review.ActionBoth:
		return review.ActionBoth, true
	case review.ActionSkip:
		return review.ActionSkip, true
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		logger.HTTP.Warn("response encode failed",
			slog.String("event", "encode.fail"),
			slog.String("err", err.Error()),
		)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

package bot

import (
	"io"
	"strings"

	"log/slog"

	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	tghelpers "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/helpers"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"

	tele "gopkg.in/telebot.v4"
)

// Telegram bot API caps document downloads at 20 MiB anyway.
const maxUploadBytes = 10 << 20

// handleDocument accepts a CSV upload and opens a review session.
func (a *App) handleDocument(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Document == nil {
		return nil
	}
	doc := msg.Document

	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".csv") {
		return tghelpers.SendText(c, "❌ Please upload a CSV file (.csv extension)")
	}

	if err := tghelpers.SendText(c, "📥 Processing your CSV file..."); err != nil {
		return err
	}

	rc, err := c.Bot().File(&doc.File)
	if err != nil {
		logger.CSV.Warn("document download failed",
			slog.String("event", "download.fail"),
			slog.String("file", logger.SanitizeLimit(doc.FileName, 128)),
			slog.String("err", err.Error()),
		)
		return tghelpers.SendText(c, "❌ Could not download the file, please try again.")
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxUploadBytes))
	if err != nil {
		return tghelpers.SendText(c, "❌ Could not read the file, please try again.")
	}

	ctx := tghelpers.BuildContext(c)
	res, err := a.orch.Upload(ctx, raw)
	if err != nil {
		if contact.IsFormatError(err) {
			return tghelpers.SendText(c, "❌ Error processing CSV: "+err.Error())
		}
		return err
	}
	a.uploads.Add(1)

	if res.Session == nil {
		return tghelpers.SendText(c, "No valid contacts found in the CSV, nothing to review.")
	}

	tghelpers.WithSession(c, res.Session.ID())
	return a.sendPrompt(c, res.Prompt)
}

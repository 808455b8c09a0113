package bot

import (
	"fmt"
	"strings"
	"time"

	tg "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/commands"
	tghelpers "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/helpers"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"

	tele "gopkg.in/telebot.v4"
)

const startText = `🤖 *CSV Contact Manager Bot*

Upload a CSV file with contacts (name, email, LinkedIn URL) and I'll help you review and add them to Mailchimp and/or Pipedrive.

*How to use:*
1. Send me a CSV file
2. I'll parse the contacts and show them to you
3. Review each contact and choose where to add them
4. Single tap to approve/reject for each service

*Supported CSV format:*
- name: full name
- email: email address
- What is your LinkedIn profile?: LinkedIn URL
- first_name and last_name (optional)

Ready to upload your CSV file! 📁`

const helpText = `📋 *Available Commands:*

/start - Start the bot and see instructions
/help - Show this help message

*To process contacts:*
1. Send a CSV file to the bot
2. Review each contact one by one
3. Use the buttons to add to Mailchimp and/or Pipedrive
4. Skip contacts you don't want to add

*Contact Review:*
- ✅ Mailchimp: add to your email list
- ✅ Pipedrive: add as a person/contact
- ❌ Skip: don't add anywhere`

func (a *App) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the bot and see instructions",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "Show usage help",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Show runtime statistics",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (a *App) handleStart(c tele.Context) error {
	return tghelpers.SendMD(c, startText)
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendMD(c, helpText)
}

func (a *App) handleStats(c tele.Context) error {
	uptime := time.Since(a.startedAt).Round(time.Second)

	var enabled []string
	for _, sys := range a.orch.Connectors().Enabled() {
		enabled = append(enabled, review.SystemTitle(sys))
	}
	conns := "none"
	if len(enabled) > 0 {
		conns = strings.Join(enabled, ", ")
	}

	text := fmt.Sprintf(
		"📈 *Stats*\n\nUptime: %s\nLive sessions: %d\nUploads: %d\nReview actions: %d\nConnectors: %s\nSend errors: %d",
		uptime,
		a.orch.Store().Len(),
		a.uploads.Load(),
		a.reviews.Load(),
		conns,
		tghelpers.DispatcherErrors(),
	)
	return tghelpers.SendMD(c, text)
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, "Send me a CSV file to review contacts, or /help for instructions.")
}

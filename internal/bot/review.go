package bot

import (
	"fmt"

	tg "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/callbacks"
	tghelpers "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/helpers"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/keyboard"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"

	tele "gopkg.in/telebot.v4"
)

// Callback keys for the review buttons. The payload carries
// "<session_id>:<row_index>" so a stale press identifies its row.
const (
	cbMailchimp = "review_mailchimp"
	cbPipedrive = "review_pipedrive"
	cbBoth      = "review_both"
	cbSkip      = "review_skip"
)

var actionKeys = map[review.Action]string{
	review.ActionMailchimp: cbMailchimp,
	review.ActionPipedrive: cbPipedrive,
	review.ActionBoth:      cbBoth,
	review.ActionSkip:      cbSkip,
}

func (a *App) registerCallbacks(reg *tg.Registry) {
	for action, key := range actionKeys {
		_ = reg.RegisterCallback(key, a.handleReview(action))
	}
}

func (a *App) handleReview(action review.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		sessionID, rowIndex, err := callbacks.PayloadKeyIndex(c, ":")
		if err != nil {
			_ = c.Respond(&tele.CallbackResponse{Text: "Malformed action"})
			return nil
		}

		ctx := tghelpers.WithSession(c, sessionID)
		step, err := a.orch.Review(ctx, sessionID, rowIndex, action)
		if err != nil {
			switch {
			case session.IsNotFound(err):
				return tghelpers.EditOrSendMD(c, "❌ This review session has expired. Please re-upload your CSV file.")
			case session.IsInvalidState(err):
				// Stale or duplicate press; the prompt already advanced.
				_ = c.Respond(&tele.CallbackResponse{Text: "Already reviewed"})
				return nil
			}
			return err
		}
		a.reviews.Add(1)

		if err := tghelpers.EditMD(c, review.RenderOutcome(step.Record.Name, step)); err != nil {
			return err
		}

		if step.Next != nil {
			return a.sendPrompt(c, step.Next)
		}
		return tghelpers.SendMD(c, step.Summary.RenderSummary())
	}
}

func (a *App) sendPrompt(c tele.Context, p *review.Prompt) error {
	return tghelpers.SendMD(c, p.RenderPrompt(), promptKeyboard(p))
}

// promptKeyboard lays the offered actions out two per row.
func promptKeyboard(p *review.Prompt) *tele.ReplyMarkup {
	payload := fmt.Sprintf("%s:%d", p.SessionID, p.RowIndex)
	btns := make([]keyboard.InlineBtn, 0, len(p.Actions))
	for _, action := range p.Actions {
		btns = append(btns, keyboard.InlineBtn{
			Text:   review.ActionTitle(action),
			Unique: actionKeys[action],
			Data:   payload,
		})
	}
	return keyboard.InlineButtonsNPerRow(btns, 2)
}

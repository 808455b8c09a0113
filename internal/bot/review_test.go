package bot

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

func TestPromptKeyboardLayout(t *testing.T) {
	p := &review.Prompt{
		SessionID: "sess-1",
		RowIndex:  2,
		Total:     5,
		Record:    contact.Record{Name: "Ada Lovelace"},
		Actions: []review.Action{
			review.ActionMailchimp,
			review.ActionPipedrive,
			review.ActionBoth,
			review.ActionSkip,
		},
	}

	markup := promptKeyboard(p)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[1], 2)

	// Every button targets the same session row.
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			assert.Contains(t, btn.Data, "sess-1:2")
		}
	}
}

func TestPromptKeyboardPartialActions(t *testing.T) {
	p := &review.Prompt{
		SessionID: "sess-2",
		Actions:   []review.Action{review.ActionMailchimp, review.ActionSkip},
	}

	markup := promptKeyboard(p)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Len(t, markup.InlineKeyboard[0], 2)
}

func TestActionKeysCoverAllActions(t *testing.T) {
	for _, a := range []review.Action{
		review.ActionMailchimp,
		review.ActionPipedrive,
		review.ActionBoth,
		review.ActionSkip,
	} {
		key, ok := actionKeys[a]
		assert.True(t, ok, "action %s has no callback key", a)
		assert.NotEmpty(t, key)
	}
}

func TestRenderOutcomeSkip(t *testing.T) {
	step := &review.StepResult{Outcome: session.Skipped()}
	text := review.RenderOutcome("Ada Lovelace", step)
	assert.Contains(t, text, "Skipped")
	assert.Contains(t, text, "Ada Lovelace")
}

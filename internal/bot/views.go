package bot

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"draftbot/internal/content"
	"draftbot/internal/draft"
	"draftbot/internal/workflow"
	"draftbot/pkg/tgui"
)

func cbData(action workflow.ActionKind, payload string) string {
	return tgui.Data(workflow.CallbackScope, string(action), payload)
}

// approvalKeyboard is the main preview keyboard: publish, revise, or discard.
func approvalKeyboard(id string) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	kb.Row(tgui.Btn("✅ Publish", cbData(workflow.ActionApprove, id)))
	kb.Row(
		tgui.Btn("✏️ Edit", cbData(workflow.ActionEdit, id)),
		tgui.Btn("🔄 Regenerate", cbData(workflow.ActionRegenerate, id)),
	)
	kb.Row(tgui.Btn("❌ Cancel", cbData(workflow.ActionCancel, id)))
	return kb.Markup()
}

// editKeyboard offers the canned revisions in two columns, then the custom
// instruction entry and the way back.
func editKeyboard(id string) *tele.ReplyMarkup {
	quick := make([]tele.Btn, 0, len(content.EditKinds()))
	for _, k := range content.EditKinds() {
		quick = append(quick, tgui.Btn(k.Label(), cbData(workflow.ActionQuickEdit, workflow.QuickEditPayload(id, k))))
	}
	kb := tgui.NewInline()
	for i := 0; i < len(quick); i += 2 {
		end := i + 2
		if end > len(quick) {
			end = len(quick)
		}
		kb.Row(quick[i:end]...)
	}
	kb.Row(tgui.Btn("📝 Custom instruction", cbData(workflow.ActionCustomEdit, id)))
	kb.Row(tgui.Btn("⬅️ Back", cbData(workflow.ActionBack, id)))
	return kb.Markup()
}

// cancelKeyboard is shown while waiting for a custom instruction.
func cancelKeyboard(id string) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	kb.Row(tgui.Btn("❌ Cancel", cbData(workflow.ActionCancel, id)))
	return kb.Markup()
}

// previewText renders the draft preview. CurrentContent is already
// Telegram-ready HTML and is embedded raw.
func previewText(p draft.Post, ttl time.Duration) string {
	head := tgui.JoinH("",
		tgui.Raw("📋 "), tgui.B("Draft preview"),
		tgui.Raw("\n"), tgui.I("Topic: "), tgui.Esc(p.Topic),
	)
	foot := tgui.I(fmt.Sprintf("Unpublished drafts are discarded after %s.", shortDuration(ttl)))
	return head.String() + "\n\n" + p.CurrentContent + "\n\n" + foot.String()
}

func editMenuText(p draft.Post) string {
	head := tgui.JoinH("",
		tgui.Raw("✏️ "), tgui.B("How should this draft change?"),
		tgui.Raw("\n"), tgui.I("Topic: "), tgui.Esc(p.Topic),
	)
	return head.String() + "\n\n" + p.CurrentContent
}

func customPromptText() string {
	return tgui.JoinH("",
		tgui.Raw("📝 "), tgui.B("Send the edit instruction as a message."),
		tgui.Raw("\n"),
		tgui.I("Example: \"shorten to two paragraphs and add a call to action\""),
	).String()
}

func shortDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	if d <= 0 {
		return "0m"
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

package bot

import (
	"context"
	"errors"
	"time"

	"draftbot/internal/publisher"
	"draftbot/internal/transport/telegram/router"
	"draftbot/internal/workflow"
	logx "draftbot/pkg/logx"
	"draftbot/pkg/tgui"
)

const staleDraftNotice = "This draft is no longer available."

func (b *Bot) callbacks() []router.CallbackRoute {
	route := func(kind workflow.ActionKind, timeout time.Duration, h func(ctx context.Context, req *router.Request, a workflow.Action) error) router.CallbackRoute {
		return router.CallbackRoute{
			Scope:   workflow.CallbackScope,
			Action:  string(kind),
			Access:  router.CallbackAccessOwnerOnly,
			Timeout: timeout,
			Handle: func(ctx context.Context, req *router.Request, payload string) error {
				a, err := workflow.ParseAction(string(kind), payload)
				if err != nil {
					// Malformed callback data never reaches the engine.
					req.Logger.Warn("malformed callback", logx.String("payload", payload), logx.Err(err))
					return b.answer(ctx, req, staleDraftNotice)
				}
				return h(ctx, req, a)
			},
		}
	}

	return []router.CallbackRoute{
		route(workflow.ActionApprove, 30*time.Second, b.cbApprove),
		route(workflow.ActionEdit, 10*time.Second, b.cbEditMenu),
		route(workflow.ActionQuickEdit, 90*time.Second, b.cbQuickEdit),
		route(workflow.ActionCustomEdit, 10*time.Second, b.cbCustomEdit),
		route(workflow.ActionBack, 10*time.Second, b.cbBack),
		route(workflow.ActionRegenerate, 90*time.Second, b.cbRegenerate),
		route(workflow.ActionCancel, 10*time.Second, b.cbCancel),
	}
}

func (b *Bot) answer(ctx context.Context, req *router.Request, text string) error {
	return req.Answer(ctx, text)
}

func (b *Bot) cbApprove(ctx context.Context, req *router.Request, a workflow.Action) error {
	rcpt, p, err := b.engine.Approve(ctx, req.FromID, a.DraftID)
	if errors.Is(err, workflow.ErrNotFound) {
		return b.answer(ctx, req, staleDraftNotice)
	}
	if err != nil {
		req.Logger.Warn("publish failed", logx.String("id", a.DraftID), logx.Err(err))
		// The draft survives a failed publish; tell the owner what went
		// wrong and leave the preview with its buttons intact.
		_, serr := req.Adapter.SendText(ctx, req.Chat, publishFailureNotice(err), nil)
		return serr
	}

	done := tgui.JoinH("",
		tgui.Raw("✅ "), tgui.B("Published."),
		tgui.Raw("\n"), tgui.I("Topic: "), tgui.Esc(p.Topic),
		tgui.Raw("\n"),
	).String() + p.CurrentContent
	if err := req.Adapter.EditText(ctx, ref(req), done, htmlOpts(nil)); err != nil {
		// The post IS out; never let a cosmetic edit read as a failure.
		req.Logger.Warn("preview edit after publish failed", logx.Int("message_id", rcpt.MessageID), logx.Err(err))
	}
	return nil
}

func publishFailureNotice(err error) string {
	var perr *publisher.Error
	if !errors.As(err, &perr) {
		return "Publish failed; the draft is kept. Try again."
	}
	switch perr.Kind {
	case publisher.KindChannelNotFound:
		return "Publish failed: channel not found. Check the channel id; the draft is kept."
	case publisher.KindInsufficientRights:
		return "Publish failed: the bot cannot post to the channel. Grant it posting rights; the draft is kept."
	case publisher.KindBlocked:
		return "Publish failed: the bot was removed from the channel. Re-add it; the draft is kept."
	}
	return "Publish failed; the draft is kept. Try again."
}

func (b *Bot) cbEditMenu(ctx context.Context, req *router.Request, a workflow.Action) error {
	p, err := b.engine.OpenEditMenu(ctx, req.FromID, a.DraftID)
	if err != nil {
		return b.answer(ctx, req, staleDraftNotice)
	}
	return req.Adapter.EditText(ctx, ref(req), editMenuText(p), htmlOpts(editKeyboard(p.ID)))
}

func (b *Bot) cbQuickEdit(ctx context.Context, req *router.Request, a workflow.Action) error {
	p, err := b.engine.QuickEdit(ctx, req.FromID, a.DraftID, a.EditKind)
	if errors.Is(err, workflow.ErrNotFound) {
		return b.answer(ctx, req, staleDraftNotice)
	}
	if err != nil {
		// Still in the edit menu with content unchanged.
		req.Logger.Warn("quick edit failed", logx.String("id", a.DraftID), logx.Err(err))
		return b.answer(ctx, req, "Edit failed; the draft is unchanged.")
	}
	return req.Adapter.EditText(ctx, ref(req), previewText(p, b.ttl), htmlOpts(approvalKeyboard(p.ID)))
}

func (b *Bot) cbCustomEdit(ctx context.Context, req *router.Request, a workflow.Action) error {
	p, err := b.engine.RequestCustomEdit(ctx, req.FromID, a.DraftID)
	if err != nil {
		return b.answer(ctx, req, staleDraftNotice)
	}
	return req.Adapter.EditText(ctx, ref(req), customPromptText(), htmlOpts(cancelKeyboard(p.ID)))
}

func (b *Bot) cbBack(ctx context.Context, req *router.Request, a workflow.Action) error {
	p, err := b.engine.BackToPost(ctx, req.FromID, a.DraftID)
	if err != nil {
		return b.answer(ctx, req, staleDraftNotice)
	}
	return req.Adapter.EditText(ctx, ref(req), previewText(p, b.ttl), htmlOpts(approvalKeyboard(p.ID)))
}

func (b *Bot) cbRegenerate(ctx context.Context, req *router.Request, a workflow.Action) error {
	p, err := b.engine.Regenerate(ctx, req.FromID, a.DraftID)
	switch {
	case errors.Is(err, workflow.ErrRateLimited):
		return b.answer(ctx, req, "Too many drafts at once; wait a minute.")
	case errors.Is(err, workflow.ErrNotFound):
		return b.answer(ctx, req, staleDraftNotice)
	case err != nil:
		req.Logger.Warn("regenerate failed", logx.String("id", a.DraftID), logx.Err(err))
		return b.answer(ctx, req, "Generation failed; the old draft is kept.")
	}
	// The preview now belongs to the fresh draft; old buttons are dead.
	return req.Adapter.EditText(ctx, ref(req), previewText(p, b.ttl), htmlOpts(approvalKeyboard(p.ID)))
}

func (b *Bot) cbCancel(ctx context.Context, req *router.Request, a workflow.Action) error {
	if _, err := b.engine.Cancel(ctx, req.FromID, a.DraftID); err != nil {
		return b.answer(ctx, req, staleDraftNotice)
	}
	return req.Adapter.EditText(ctx, ref(req), "❌ Draft discarded.", nil)
}

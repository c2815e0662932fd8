// Package bot is the Telegram-facing surface of the approval workflow: the
// owner commands, the inline preview/edit-menu callbacks, and the free-text
// capture for custom edit instructions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"draftbot/internal/publisher"
	"draftbot/internal/storage"
	kit "draftbot/internal/transport"
	"draftbot/internal/transport/telegram/router"
	"draftbot/internal/workflow"
	logx "draftbot/pkg/logx"
	"draftbot/pkg/tgui"
)

type Bot struct {
	engine  *workflow.Engine
	pub     *publisher.Telegram
	history storage.Store // nil when disabled
	ttl     time.Duration
	log     logx.Logger

	startedAt time.Time
}

func New(engine *workflow.Engine, pub *publisher.Telegram, history storage.Store, ttl time.Duration, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Bot{
		engine:    engine,
		pub:       pub,
		history:   history,
		ttl:       ttl,
		log:       log,
		startedAt: time.Now(),
	}
}

// Install registers the bot's commands, callbacks and text capture on r.
func (b *Bot) Install(r *router.Router) {
	r.Register(b.commands(), b.callbacks())
	r.OnText(b.handleText)
}

func (b *Bot) commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Description: "what this bot does",
			Usage:       "/start",
			Access:      router.AccessEveryone,
			Handle:      b.cmdStart,
		},
		{
			Name:        "help",
			Description: "list commands",
			Usage:       "/help",
			Access:      router.AccessEveryone,
			Handle:      b.cmdHelp,
		},
		{
			Name:        "news",
			Description: "draft a channel post about a topic",
			Usage:       "/news <topic>",
			Access:      router.AccessOwnerOnly,
			Timeout:     90 * time.Second,
			Handle:      b.cmdNews,
		},
		{
			Name:        "status",
			Description: "bot and channel diagnostics",
			Usage:       "/status",
			Access:      router.AccessOwnerOnly,
			Timeout:     15 * time.Second,
			Handle:      b.cmdStatus,
		},
	}
}

func (b *Bot) cmdStart(ctx context.Context, req *router.Request) error {
	text := tgui.JoinH("\n",
		tgui.JoinH("", tgui.Raw("👋 "), tgui.B("Draft review bot")),
		tgui.Esc("I draft channel posts and hold them for your review."),
		tgui.Raw(""),
		tgui.JoinH("", tgui.Code("/news <topic>"), tgui.Esc(" — draft a post about a topic")),
		tgui.Esc("Then publish, revise or discard it from the preview buttons."),
	).String()
	_, err := req.Adapter.SendText(ctx, req.Chat, text, htmlOpts(nil))
	return err
}

func (b *Bot) cmdHelp(ctx context.Context, req *router.Request) error {
	parts := []tgui.H{tgui.JoinH("", tgui.Raw("ℹ️ "), tgui.B("Commands"))}
	for _, c := range b.commands() {
		parts = append(parts, tgui.JoinH("", tgui.Code(c.Usage), tgui.Esc(" — "+c.Description)))
	}
	_, err := req.Adapter.SendText(ctx, req.Chat, tgui.JoinH("\n", parts...).String(), htmlOpts(nil))
	return err
}

func (b *Bot) cmdNews(ctx context.Context, req *router.Request) error {
	topic := strings.TrimSpace(strings.Join(req.Args, " "))
	if topic == "" {
		_, err := req.Adapter.SendText(ctx, req.Chat, "Usage: /news <topic>", nil)
		return err
	}
	if !b.pub.Configured() {
		_, err := req.Adapter.SendText(ctx, req.Chat, "No channel configured; set the channel id first.", nil)
		return err
	}

	// The backend call can take a while; let the owner know we heard them.
	_, _ = req.Adapter.SendText(ctx, req.Chat, "⏳ Drafting…", nil)

	p, err := b.engine.Generate(ctx, req.FromID, topic)
	if errors.Is(err, workflow.ErrRateLimited) {
		_, serr := req.Adapter.SendText(ctx, req.Chat, "Too many drafts at once; wait a minute and retry.", nil)
		return serr
	}
	if err != nil {
		req.Logger.Warn("draft generation failed", logx.String("topic", topic), logx.Err(err))
		_, serr := req.Adapter.SendText(ctx, req.Chat, "Generation failed; nothing was created. Try again.", nil)
		return serr
	}

	_, err = req.Adapter.SendText(ctx, req.Chat, previewText(p, b.ttl), htmlOpts(approvalKeyboard(p.ID)))
	return err
}

func (b *Bot) cmdStatus(ctx context.Context, req *router.Request) error {
	lines := []tgui.H{
		tgui.JoinH("", tgui.Raw("📊 "), tgui.B("Status")),
		tgui.Esc(fmt.Sprintf("Uptime: %s", shortDuration(time.Since(b.startedAt)))),
		tgui.Esc(fmt.Sprintf("Pending drafts: %d (TTL %s)", b.engine.Store().Len(), shortDuration(b.ttl))),
	}

	lines = append(lines, b.channelStatus(ctx, req))

	if b.history != nil {
		recent, err := b.history.RecentPublishes(ctx, 5)
		if err != nil {
			lines = append(lines, tgui.Esc("History: unavailable"))
		} else {
			lines = append(lines, tgui.Esc(fmt.Sprintf("Recent publishes: %d", len(recent))))
			for _, rec := range recent {
				lines = append(lines, tgui.JoinH("",
					tgui.Esc("  • "+rec.At.Format("Jan 2 15:04")+" "),
					tgui.I(rec.Topic),
				))
			}
		}
	}

	_, err := req.Adapter.SendText(ctx, req.Chat, tgui.JoinH("\n", lines...).String(), htmlOpts(nil))
	return err
}

func (b *Bot) channelStatus(ctx context.Context, req *router.Request) tgui.H {
	if !b.pub.Configured() {
		return tgui.Esc("Channel: not configured")
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	info, err := req.Adapter.ChatByID(cctx, b.pub.ChannelID())
	if err != nil {
		return tgui.Esc(fmt.Sprintf("Channel %d: unreachable", b.pub.ChannelID()))
	}
	return tgui.JoinH("", tgui.Esc("Channel: "), tgui.B(info.Title), tgui.Esc(fmt.Sprintf(" (%s, %d)", info.Type, info.ID)))
}

// handleText feeds free text into an open custom-edit session. Unconsumed
// text falls back to the router's usage hint.
func (b *Bot) handleText(ctx context.Context, req *router.Request) (bool, error) {
	instruction := strings.TrimSpace(req.Text)
	if instruction == "" {
		return false, nil
	}

	p, err := b.engine.SubmitCustomEdit(ctx, req.FromID, instruction)
	switch {
	case errors.Is(err, workflow.ErrNoSession):
		return false, nil
	case errors.Is(err, workflow.ErrNotFound):
		_, serr := req.Adapter.SendText(ctx, req.Chat, "That draft is no longer available.", nil)
		return true, serr
	case err != nil:
		req.Logger.Warn("custom edit failed", logx.String("id", p.ID), logx.Err(err))
		_, _ = req.Adapter.SendText(ctx, req.Chat, "Edit failed; the draft is unchanged.", nil)
		_, serr := req.Adapter.SendText(ctx, req.Chat, previewText(p, b.ttl), htmlOpts(approvalKeyboard(p.ID)))
		return true, serr
	}

	_, serr := req.Adapter.SendText(ctx, req.Chat, previewText(p, b.ttl), htmlOpts(approvalKeyboard(p.ID)))
	return true, serr
}

func htmlOpts(markup any) *kit.SendOptions {
	return &kit.SendOptions{
		ParseMode:          "HTML",
		DisablePreview:     true,
		ReplyMarkupAdapter: markup,
	}
}

// ref resolves the message carrying the pressed inline button.
func ref(req *router.Request) kit.MessageRef {
	cb := req.Update.Callback
	return kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
}
